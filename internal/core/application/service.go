package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/internal/core/ports"
	"github.com/ArkLabsHQ/liquid-swap/pkg/boltz"
	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/ArkLabsHQ/liquid-swap/utils"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ccoveille/go-safecast"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/transaction"
)

const redeemTimeout = 30 * time.Second

var (
	ErrSwapInProgress    = errors.New("swap is already being redeemed")
	ErrMissingSigningKey = errors.New("no signing key configured")
	ErrMissingPreimage   = errors.New("missing preimage")
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type ImportSwapArgs struct {
	Id           string
	Type         swapscript.SwapType
	RedeemScript string
	BlindingKey  string
	Destination  string
	Fee          uint64
	Preimage     string
}

type Service struct {
	BuildInfo BuildInfo

	chain        chain.Config
	params       *network.Network
	ledger       swaptx.Ledger
	swapRepo     domain.SwapRepository
	schedulerSvc ports.SchedulerService
	signingKey   *btcec.PrivateKey
	defaultFee   uint64

	boltzApi      *boltz.Api
	subscriptions *subscriptionHandler

	lock     sync.Mutex
	inFlight map[string]struct{}
}

// NewService returns the swap service. boltzApi is optional, without it
// swaps are redeemed only on demand or by the refund scheduler.
func NewService(
	buildInfo BuildInfo,
	chainCfg chain.Config,
	ledger swaptx.Ledger,
	repoManager ports.RepoManager,
	schedulerSvc ports.SchedulerService,
	signingKey *btcec.PrivateKey,
	defaultFee uint64,
	boltzApi *boltz.Api,
) (*Service, error) {
	if err := chainCfg.Validate(); err != nil {
		return nil, err
	}
	params, err := chainCfg.Params()
	if err != nil {
		return nil, err
	}

	svc := &Service{
		BuildInfo:    buildInfo,
		chain:        chainCfg,
		params:       params,
		ledger:       ledger,
		swapRepo:     repoManager.Swap(),
		schedulerSvc: schedulerSvc,
		signingKey:   signingKey,
		defaultFee:   defaultFee,
		boltzApi:     boltzApi,
		inFlight:     make(map[string]struct{}),
	}
	if boltzApi != nil {
		svc.subscriptions = newSubscriptionHandler(boltzApi, svc.handleSwapUpdate)
	}
	return svc, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.schedulerSvc.Start()
	log.Info("scheduler started")

	if s.subscriptions == nil {
		return nil
	}

	swaps, err := s.swapRepo.GetAll(ctx)
	if err != nil {
		return err
	}
	swapIds := make([]string, 0, len(swaps))
	for _, swap := range swaps {
		if !swap.IsFinal() {
			swapIds = append(swapIds, swap.Id)
		}
	}
	if err := s.subscriptions.subscribe(swapIds...); err != nil {
		log.WithError(err).Warn("failed to subscribe to swap updates")
	}
	s.subscriptions.start()
	log.Info("listening for boltz swap updates")
	return nil
}

func (s *Service) Stop() {
	s.schedulerSvc.Stop()
	log.Info("scheduler stopped")

	if s.subscriptions != nil {
		s.subscriptions.stop()
	}
}

func (s *Service) Network() chain.Config {
	return s.chain
}

// ImportSwap starts tracking a negotiated swap.
func (s *Service) ImportSwap(ctx context.Context, args ImportSwapArgs) (*domain.Swap, error) {
	blindingKey, err := utils.ParseBlindingKey(args.BlindingKey)
	if err != nil {
		return nil, err
	}
	script, err := swapscript.DecodeString(args.RedeemScript, args.Type, blindingKey)
	if err != nil {
		return nil, err
	}

	fee := args.Fee
	if fee == 0 {
		fee = s.defaultFee
	}
	// Both spending paths pay the same destination.
	if _, err := swaptx.NewClaim(script, args.Destination, fee, s.chain); err != nil {
		return nil, err
	}

	if len(args.Preimage) > 0 {
		preimage, err := utils.ParsePreimage(args.Preimage)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(utils.PreimageHashlock(preimage), script.Hashlock) {
			return nil, swaptx.ErrPreimageMismatch
		}
	}

	addr, err := script.Address(s.params)
	if err != nil {
		return nil, err
	}

	id := args.Id
	if len(id) <= 0 {
		id = script.HashlockHex()
	}

	now := time.Now().Unix()
	swap := domain.Swap{
		Id:           id,
		Type:         script.Type,
		RedeemScript: script.Hex(),
		BlindingKey:  hex.EncodeToString(blindingKey.Serialize()),
		Preimage:     args.Preimage,
		Timelock:     script.Timelock,
		Address:      addr,
		Destination:  args.Destination,
		Fee:          fee,
		Status:       domain.SwapPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.swapRepo.Add(ctx, swap); err != nil {
		return nil, err
	}
	log.WithField("swap", id).Infof("imported %s swap, funding address %s", script.Type, addr)

	if s.subscriptions != nil {
		if err := s.subscriptions.subscribe(id); err != nil {
			log.WithError(err).WithField("swap", id).Warn("failed to subscribe to swap updates")
		}
	}
	return &swap, nil
}

func (s *Service) ListSwaps(ctx context.Context) ([]domain.Swap, error) {
	return s.swapRepo.GetAll(ctx)
}

func (s *Service) GetSwap(ctx context.Context, swapId string) (*domain.Swap, error) {
	return s.swapRepo.Get(ctx, swapId)
}

// ClaimSwap spends the swap output through the preimage branch. An empty
// preimage falls back to the one stored with the swap.
func (s *Service) ClaimSwap(ctx context.Context, swapId, preimage string) (string, error) {
	return s.redeem(ctx, swapId, swaptx.Claim, preimage, nil)
}

// RefundSwap spends the swap output through the timelock branch.
func (s *Service) RefundSwap(ctx context.Context, swapId string) (string, error) {
	return s.redeem(ctx, swapId, swaptx.Refund, "", nil)
}

// ScheduleRefund refunds the swap as soon as the chain tip reaches its
// timelock.
func (s *Service) ScheduleRefund(ctx context.Context, swapId string) (uint32, error) {
	if s.signingKey == nil {
		return 0, ErrMissingSigningKey
	}
	swap, err := s.swapRepo.Get(ctx, swapId)
	if err != nil {
		return 0, err
	}
	if swap.IsFinal() {
		return 0, fmt.Errorf("%w: %s is %s", domain.ErrSwapFinalized, swapId, swap.Status)
	}

	if err := s.schedulerSvc.ScheduleRefundAtHeight(
		swapId, swap.Timelock, s.refundTask(swapId, swap.Timelock),
	); err != nil {
		return 0, err
	}
	log.WithField("swap", swapId).Infof("refund scheduled at height %d", swap.Timelock)
	return swap.Timelock, nil
}

// refundTask refunds the swap once the scheduler fires. Failures worth
// retrying put the task back, so it runs again at the next tip poll.
func (s *Service) refundTask(swapId string, height uint32) func() {
	return func() {
		logger := log.WithField("swap", swapId)
		logger.Infof("running scheduled refund at %s", time.Now())

		ctx, cancel := context.WithTimeout(context.Background(), redeemTimeout)
		defer cancel()
		txid, err := s.RefundSwap(ctx, swapId)
		if err == nil {
			logger.Infof("refunded in tx %s", txid)
			return
		}
		if !isRetryable(err) {
			logger.WithError(err).Warn("failed to refund")
			return
		}

		logger.WithError(err).Warn("failed to refund, retrying at next poll")
		if err := s.schedulerSvc.ScheduleRefundAtHeight(
			swapId, height, s.refundTask(swapId, height),
		); err != nil {
			logger.WithError(err).Error("failed to reschedule refund")
		}
	}
}

func isRetryable(err error) bool {
	return swaperr.ErrNetwork.Matches(err) ||
		errors.Is(err, ErrSwapInProgress) ||
		errors.Is(err, swaptx.ErrTimelockNotExpired)
}

// WaitAndClaim claims the swap as soon as it is funded. It gives up when
// ctx expires or on any error other than the swap not being funded yet.
func (s *Service) WaitAndClaim(
	ctx context.Context, swapId, preimage string, interval time.Duration,
) (string, error) {
	var txid string
	err := boltz.Retry(ctx, interval, func(ctx context.Context) (bool, error) {
		id, err := s.ClaimSwap(ctx, swapId, preimage)
		if errors.Is(err, swaptx.ErrNoFunding) {
			id, err = s.claimFromBoltzLockup(ctx, swapId, preimage)
		}
		switch {
		case err == nil:
			txid = id
			return true, nil
		case errors.Is(err, swaptx.ErrNoFunding), errors.Is(err, ErrSwapInProgress):
			return false, nil
		case swaperr.ErrNetwork.Matches(err):
			log.WithError(err).WithField("swap", swapId).Warn("claim failed, retrying")
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return "", err
	}
	return txid, nil
}

// claimFromBoltzLockup claims a reverse swap with the lockup transaction
// the server reports, for ledgers slow to index it.
func (s *Service) claimFromBoltzLockup(ctx context.Context, swapId, preimage string) (string, error) {
	if s.boltzApi == nil {
		return "", swaptx.ErrNoFunding
	}
	swap, err := s.swapRepo.Get(ctx, swapId)
	if err != nil {
		return "", err
	}
	if swap.Type != swapscript.ReverseSubmarine {
		return "", swaptx.ErrNoFunding
	}

	res, err := s.boltzApi.GetReverseSwapTransaction(ctx, swapId)
	if err != nil || len(res.Hex) <= 0 {
		log.WithError(err).WithField("swap", swapId).Debug("no lockup from boltz")
		return "", swaptx.ErrNoFunding
	}
	lockup, err := transaction.NewTxFromHex(res.Hex)
	if err != nil {
		return "", swaperr.ErrTransaction.Wrap(err, "invalid lockup transaction")
	}
	return s.redeem(ctx, swapId, swaptx.Claim, preimage, lockup)
}

func (s *Service) handleSwapUpdate(update boltz.SwapUpdate) {
	logger := log.WithField("swap", update.Id)
	ctx, cancel := context.WithTimeout(context.Background(), redeemTimeout)
	defer cancel()

	swap, err := s.swapRepo.Get(ctx, update.Id)
	if err != nil {
		logger.WithError(err).Debug("skipping update")
		return
	}
	if swap.IsFinal() {
		return
	}

	event := update.Event()
	switch swap.Type {
	case swapscript.ReverseSubmarine:
		if event.IsLockup() {
			if len(swap.Preimage) <= 0 {
				logger.Info("swap funded, waiting for a claim request")
				return
			}

			var lockup *transaction.Transaction
			if len(update.Transaction.Hex) > 0 {
				if lockup, err = transaction.NewTxFromHex(update.Transaction.Hex); err != nil {
					logger.WithError(err).Warn("invalid lockup transaction, looking it up")
					lockup = nil
				}
			}
			txid, err := s.redeem(ctx, swap.Id, swaptx.Claim, "", lockup)
			if err != nil {
				logger.WithError(err).Warn("failed to claim")
				return
			}
			logger.Infof("claimed in tx %s", txid)
			return
		}
		if event.IsFailure() && len(swap.FundingTxId) <= 0 {
			s.finalize(ctx, swap, domain.SwapFailed, update.Status)
		}

	case swapscript.Submarine:
		if event == boltz.TransactionClaimed {
			s.finalize(ctx, swap, domain.SwapClaimed, "")
			return
		}
		if event.IsFailure() && event != boltz.TransactionRefunded {
			if _, err := s.ScheduleRefund(ctx, swap.Id); err != nil {
				logger.WithError(err).Warn("failed to schedule refund")
			}
		}
	}
}

func (s *Service) redeem(
	ctx context.Context, swapId string, kind swaptx.Kind, preimage string,
	lockup *transaction.Transaction,
) (string, error) {
	if s.signingKey == nil {
		return "", ErrMissingSigningKey
	}
	if !s.acquire(swapId) {
		return "", fmt.Errorf("%w: %s", ErrSwapInProgress, swapId)
	}
	defer s.release(swapId)

	swap, err := s.swapRepo.Get(ctx, swapId)
	if err != nil {
		return "", err
	}
	if swap.IsFinal() {
		return "", fmt.Errorf("%w: %s is %s", domain.ErrSwapFinalized, swapId, swap.Status)
	}

	var secret []byte
	if kind == swaptx.Claim {
		if len(preimage) <= 0 {
			preimage = swap.Preimage
		}
		if len(preimage) <= 0 {
			return "", ErrMissingPreimage
		}
		p, err := utils.ParsePreimage(preimage)
		if err != nil {
			return "", err
		}
		secret = p[:]
	}

	script, err := swap.Script()
	if err != nil {
		return "", err
	}
	newBuilder := swaptx.NewClaim
	if kind == swaptx.Refund {
		newBuilder = swaptx.NewRefund
	}
	builder, err := newBuilder(script, swap.Destination, swap.Fee, s.chain)
	if err != nil {
		return "", err
	}

	logger := log.WithField("swap", swapId)
	tx, err := s.sign(ctx, builder, secret, lockup)
	if funding := builder.Funding(); funding != nil && swap.FundingTxId != funding.TxID {
		swap.FundingTxId = funding.TxID
		swap.Status = domain.SwapFunded
		logger.Infof("funded by %s:%d with %d sats", funding.TxID, funding.Vout, funding.Value)
	}
	if err != nil {
		if !errors.Is(err, swaptx.ErrNoFunding) {
			s.saveError(ctx, swap, err)
		}
		return "", err
	}

	// The signature must match the key the script expects on this branch.
	pubkey := script.ReceiverPubkey
	if kind == swaptx.Refund {
		pubkey = script.SenderPubkey
	}
	funding := builder.Funding()
	if err := swaptx.VerifyInputSignature(
		tx, 0, script.Encode(), funding.ValueCommitment, pubkey,
	); err != nil {
		err = swaperr.Wrapf(err, "signing key does not match the %s branch", kind)
		s.saveError(ctx, swap, err)
		return "", err
	}

	txid, err := builder.Broadcast(ctx, s.ledger, tx)
	if err != nil {
		s.saveError(ctx, swap, err)
		return "", err
	}
	logger.Infof("broadcast %s tx %s", kind, txid)

	status := domain.SwapClaimed
	if kind == swaptx.Refund {
		status = domain.SwapRefunded
	}
	swap.RedeemTxId = txid
	s.finalize(ctx, swap, status, "")
	return txid, nil
}

func (s *Service) sign(
	ctx context.Context, builder *swaptx.SwapTx, preimage []byte, lockup *transaction.Transaction,
) (*transaction.Transaction, error) {
	if lockup == nil {
		return builder.Drain(ctx, s.ledger, s.signingKey, preimage)
	}

	lockingScript := builder.Script.LockingScript()
	txid := lockup.TxHash().String()
	for i, out := range lockup.Outputs {
		if !bytes.Equal(out.Script, lockingScript) {
			continue
		}
		vout, err := safecast.ToUint32(i)
		if err != nil {
			return nil, swaperr.ErrTransaction.Wrap(err, "invalid lockup output index")
		}
		if err := builder.SetFunding(txid, vout, out); err != nil {
			return nil, err
		}
		return builder.SignClaim(s.signingKey, preimage)
	}
	return nil, swaperr.Wrapf(swaptx.ErrFundingOutputNotFound, "lockup transaction %s", txid)
}

func (s *Service) finalize(ctx context.Context, swap *domain.Swap, status domain.SwapStatus, reason string) {
	swap.Status = status
	swap.Error = reason
	swap.UpdatedAt = time.Now().Unix()
	if err := s.swapRepo.Update(ctx, *swap); err != nil {
		log.WithError(err).WithField("swap", swap.Id).Warn("failed to update swap")
	}

	s.schedulerSvc.CancelRefund(swap.Id)
	if s.subscriptions != nil {
		s.subscriptions.unsubscribe(swap.Id)
	}
}

func (s *Service) saveError(ctx context.Context, swap *domain.Swap, cause error) {
	swap.Error = cause.Error()
	swap.UpdatedAt = time.Now().Unix()
	if err := s.swapRepo.Update(ctx, *swap); err != nil {
		log.WithError(err).WithField("swap", swap.Id).Warn("failed to update swap")
	}
}

func (s *Service) acquire(swapId string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.inFlight[swapId]; ok {
		return false
	}
	s.inFlight[swapId] = struct{}{}
	return true
}

func (s *Service) release(swapId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.inFlight, swapId)
}
