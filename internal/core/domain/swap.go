package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/utils"
)

var (
	ErrSwapNotFound      = errors.New("swap not found")
	ErrSwapAlreadyExists = errors.New("swap already exists")
	ErrSwapFinalized     = errors.New("swap is finalized")
)

type SwapStatus int

const (
	SwapPending SwapStatus = iota
	SwapFunded
	SwapClaimed
	SwapRefunded
	SwapFailed
)

func (s SwapStatus) String() string {
	switch s {
	case SwapPending:
		return "pending"
	case SwapFunded:
		return "funded"
	case SwapClaimed:
		return "claimed"
	case SwapRefunded:
		return "refunded"
	case SwapFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Swap struct {
	Id           string
	Type         swapscript.SwapType
	RedeemScript string // hex encoded
	BlindingKey  string // hex encoded private key
	Preimage     string // hex encoded, optional; set to claim reverse swaps automatically
	Timelock     uint32
	Address      string // confidential address funding the swap
	Destination  string // confidential address the funds are swept to
	Fee          uint64
	Status       SwapStatus
	FundingTxId  string
	RedeemTxId   string // the txid of the transaction spending the swap output, by either "claiming" or "refunding"
	Error        string
	CreatedAt    int64
	UpdatedAt    int64
}

// Script decodes the stored redeem script.
func (s Swap) Script() (*swapscript.SwapScript, error) {
	blindingKey, err := utils.ParseBlindingKey(s.BlindingKey)
	if err != nil {
		return nil, err
	}
	return swapscript.DecodeString(s.RedeemScript, s.Type, blindingKey)
}

// IsFinal reports whether the swap output was spent or given up on.
func (s Swap) IsFinal() bool {
	return s.Status == SwapClaimed || s.Status == SwapRefunded || s.Status == SwapFailed
}

// SwapRepository stores the swaps tracked by the service.
type SwapRepository interface {
	GetAll(ctx context.Context) ([]Swap, error)
	Get(ctx context.Context, swapId string) (*Swap, error)
	Add(ctx context.Context, swap Swap) error
	Update(ctx context.Context, swap Swap) error
	Close()
}
