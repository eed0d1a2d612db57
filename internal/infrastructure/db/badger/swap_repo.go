package badgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

type swapRepository struct {
	store *badgerhold.Store
}

// NewSwapRepository returns an in-memory swap journal. Swaps do not survive
// a restart.
func NewSwapRepository(logger badger.Logger) (domain.SwapRepository, error) {
	store, err := createDB(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap store: %s", err)
	}
	return &swapRepository{store}, nil
}

func (r *swapRepository) GetAll(ctx context.Context) ([]domain.Swap, error) {
	var swapDataList []swapData
	query := (&badgerhold.Query{}).SortBy("CreatedAt", "Id")
	if err := r.store.Find(&swapDataList, query); err != nil {
		return nil, fmt.Errorf("failed to get all swaps: %w", err)
	}

	swaps := make([]domain.Swap, 0, len(swapDataList))
	for _, s := range swapDataList {
		swaps = append(swaps, s.toSwap())
	}
	return swaps, nil
}

func (r *swapRepository) Get(ctx context.Context, swapId string) (*domain.Swap, error) {
	var swapData swapData
	err := r.store.Get(swapId, &swapData)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swapId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap: %w", err)
	}

	swap := swapData.toSwap()
	return &swap, nil
}

// Add stores a new Swap in the database
func (r *swapRepository) Add(ctx context.Context, swap domain.Swap) error {
	if err := r.store.Insert(swap.Id, toSwapData(swap)); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("%w: %s", domain.ErrSwapAlreadyExists, swap.Id)
		}
		return fmt.Errorf("failed to add swap: %w", err)
	}
	return nil
}

// Update replaces a stored Swap
func (r *swapRepository) Update(ctx context.Context, swap domain.Swap) error {
	if err := r.store.Update(swap.Id, toSwapData(swap)); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSwapNotFound, swap.Id)
		}
		return fmt.Errorf("failed to update swap: %w", err)
	}
	return nil
}

func (r *swapRepository) Close() {
	// nolint:all
	r.store.Close()
}

func createDB(logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

type swapData struct {
	Id           string
	Type         int
	RedeemScript string
	BlindingKey  string
	Preimage     string
	Timelock     uint32
	Address      string
	Destination  string
	Fee          uint64
	Status       int
	FundingTxId  string
	RedeemTxId   string
	Error        string
	CreatedAt    int64
	UpdatedAt    int64
}

func toSwapData(swap domain.Swap) swapData {
	return swapData{
		Id:           swap.Id,
		Type:         int(swap.Type),
		RedeemScript: swap.RedeemScript,
		BlindingKey:  swap.BlindingKey,
		Preimage:     swap.Preimage,
		Timelock:     swap.Timelock,
		Address:      swap.Address,
		Destination:  swap.Destination,
		Fee:          swap.Fee,
		Status:       int(swap.Status),
		FundingTxId:  swap.FundingTxId,
		RedeemTxId:   swap.RedeemTxId,
		Error:        swap.Error,
		CreatedAt:    swap.CreatedAt,
		UpdatedAt:    swap.UpdatedAt,
	}
}

func (s *swapData) toSwap() domain.Swap {
	return domain.Swap{
		Id:           s.Id,
		Type:         swapscript.SwapType(s.Type),
		RedeemScript: s.RedeemScript,
		BlindingKey:  s.BlindingKey,
		Preimage:     s.Preimage,
		Timelock:     s.Timelock,
		Address:      s.Address,
		Destination:  s.Destination,
		Fee:          s.Fee,
		Status:       domain.SwapStatus(s.Status),
		FundingTxId:  s.FundingTxId,
		RedeemTxId:   s.RedeemTxId,
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
