package swaptx

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/elementsutil"
	"github.com/vulpemventures/go-elements/transaction"
)

const txVersion = 2

const (
	claimSequence  = wire.MaxTxInSequenceNum
	refundSequence = wire.MaxTxInSequenceNum - 1
)

var (
	ErrInsufficientFunds     = swaperr.ErrTransaction.New("insufficient funds")
	ErrNoFunding             = swaperr.ErrTransaction.New("swap output not funded yet")
	ErrFundingOutputNotFound = swaperr.ErrTransaction.New("funding output not found")
	ErrTimelockNotExpired    = swaperr.ErrTransaction.New("timelock not expired")
	ErrWrongKind             = swaperr.ErrTransaction.New("operation not supported for this kind")
	ErrPreimageMismatch      = swaperr.ErrInput.New("preimage does not match hashlock")
)

type Kind int

const (
	Claim Kind = iota
	Refund
)

func (k Kind) String() string {
	switch k {
	case Claim:
		return "claim"
	case Refund:
		return "refund"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Status int

const (
	StatusCreated Status = iota
	StatusFunded
	StatusSigned
	StatusBroadcast
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusFunded:
		return "funded"
	case StatusSigned:
		return "signed"
	case StatusBroadcast:
		return "broadcast"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Funding is the swap output found on chain, with its unblinded secrets.
type Funding struct {
	TxID   string
	Vout   uint32
	Script []byte
	// Value and AssetCommitment are the output fields as serialized on
	// chain, confidential commitments for blinded outputs.
	ValueCommitment []byte
	AssetCommitment []byte
	Unblinded
}

func (f *Funding) copy() *Funding {
	c := *f
	c.Script = bytes.Clone(f.Script)
	c.ValueCommitment = bytes.Clone(f.ValueCommitment)
	c.AssetCommitment = bytes.Clone(f.AssetCommitment)
	c.Asset = bytes.Clone(f.Asset)
	c.AssetBlindingFactor = bytes.Clone(f.AssetBlindingFactor)
	c.ValueBlindingFactor = bytes.Clone(f.ValueBlindingFactor)
	return &c
}

type Option func(*SwapTx)

// WithRandom sets the source blinding factors and ephemeral keys are drawn
// from. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *SwapTx) {
		s.random = r
	}
}

// SwapTx drives a single swap output from discovery to broadcast. It is not
// safe for concurrent use: run one instance per swap.
type SwapTx struct {
	Kind   Kind
	Script *swapscript.SwapScript
	Fee    uint64

	network            chain.Config
	destination        string
	destinationScript  []byte
	destinationBlinder []byte
	random             io.Reader

	funding *Funding
	status  Status
	txid    string
}

func NewClaim(
	script *swapscript.SwapScript, destination string, fee uint64, network chain.Config, opts ...Option,
) (*SwapTx, error) {
	return newSwapTx(Claim, script, destination, fee, network, opts...)
}

func NewRefund(
	script *swapscript.SwapScript, destination string, fee uint64, network chain.Config, opts ...Option,
) (*SwapTx, error) {
	return newSwapTx(Refund, script, destination, fee, network, opts...)
}

func newSwapTx(
	kind Kind, script *swapscript.SwapScript, destination string, fee uint64,
	network chain.Config, opts ...Option,
) (*SwapTx, error) {
	if script == nil {
		return nil, swaperr.ErrInput.New("missing swap script")
	}
	if !network.Network.IsConfidential() {
		return nil, swaperr.ErrInput.Newf("%s is not a confidential chain", network.Network)
	}

	ca, err := address.FromConfidential(destination)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "destination must be a confidential address")
	}
	if _, err := btcec.ParsePubKey(ca.BlindingKey); err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid destination blinding key")
	}
	outputScript, err := address.ToOutputScript(destination)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid destination address")
	}

	s := &SwapTx{
		Kind:               kind,
		Script:             script,
		Fee:                fee,
		network:            network,
		destination:        destination,
		destinationScript:  outputScript,
		destinationBlinder: ca.BlindingKey,
		random:             rand.Reader,
		status:             StatusCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SwapTx) Status() Status {
	return s.status
}

func (s *SwapTx) Destination() string {
	return s.destination
}

// TxID returns the id of the broadcast transaction, if any.
func (s *SwapTx) TxID() string {
	return s.txid
}

// Funding returns a copy of the discovered funding, nil before discovery.
func (s *SwapTx) Funding() *Funding {
	if s.funding == nil {
		return nil
	}
	return s.funding.copy()
}

// SetFunding records a funding output obtained elsewhere, ie. from a
// status stream. The output is unblinded with the script blinding key.
func (s *SwapTx) SetFunding(txid string, vout uint32, out *transaction.TxOutput) error {
	if !bytes.Equal(out.Script, s.Script.LockingScript()) {
		return swaperr.Wrapf(ErrFundingOutputNotFound, "output %s:%d does not pay the swap script", txid, vout)
	}

	unblinded, err := UnblindOutput(out, s.Script.BlindingKey)
	if err != nil {
		return err
	}
	if err := s.checkAsset(unblinded.Asset); err != nil {
		return err
	}

	s.funding = &Funding{
		TxID:            txid,
		Vout:            vout,
		Script:          bytes.Clone(out.Script),
		ValueCommitment: bytes.Clone(out.Value),
		AssetCommitment: bytes.Clone(out.Asset),
		Unblinded:       *unblinded,
	}
	s.status = StatusFunded
	return nil
}

// DiscoverFunding looks for the output funding the swap script. It returns
// false with no error if the script has no history yet.
func (s *SwapTx) DiscoverFunding(ctx context.Context, ledger Ledger) (bool, error) {
	lockingScript := s.Script.LockingScript()

	history, err := ledger.GetHistory(ctx, lockingScript)
	if err != nil {
		return false, wrapNetwork(err, "failed to get script history")
	}
	if len(history) <= 0 {
		return false, nil
	}

	// A swap script is funded exactly once, the first entry is the funding.
	txid := history[0].TxID
	raw, err := ledger.GetRawTransaction(ctx, txid)
	if err != nil {
		return false, wrapNetwork(err, "failed to fetch funding transaction")
	}
	tx, err := transaction.NewTxFromBuffer(bytes.NewBuffer(raw))
	if err != nil {
		return false, swaperr.ErrTransaction.Wrapf(err, "failed to parse funding transaction %s", txid)
	}
	if got := tx.TxHash().String(); got != txid {
		return false, swaperr.ErrTransaction.Newf("ledger returned transaction %s for %s", got, txid)
	}

	for vout, out := range tx.Outputs {
		if !bytes.Equal(out.Script, lockingScript) {
			continue
		}
		if err := s.SetFunding(txid, uint32(vout), out); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, swaperr.Wrapf(ErrFundingOutputNotFound, "transaction %s", txid)
}

// SignClaim spends the funding through the preimage branch.
func (s *SwapTx) SignClaim(key *btcec.PrivateKey, preimage []byte) (*transaction.Transaction, error) {
	if s.Kind != Claim {
		return nil, swaperr.Wrapf(ErrWrongKind, "cannot claim with a %s builder", s.Kind)
	}
	if !bytes.Equal(btcutil.Hash160(preimage), s.Script.Hashlock) {
		return nil, ErrPreimageMismatch
	}
	return s.sign(key, claimSequence, preimage)
}

// SignRefund spends the funding through the timelock branch. tipHeight is
// the current chain height, the refund is valid once it reaches the
// script timelock.
func (s *SwapTx) SignRefund(key *btcec.PrivateKey, tipHeight uint32) (*transaction.Transaction, error) {
	if s.Kind != Refund {
		return nil, swaperr.Wrapf(ErrWrongKind, "cannot refund with a %s builder", s.Kind)
	}
	if tipHeight < s.Script.Timelock {
		return nil, swaperr.Wrapf(
			ErrTimelockNotExpired, "tip %d, timelock %d", tipHeight, s.Script.Timelock,
		)
	}
	return s.sign(key, refundSequence, []byte{})
}

// Drain discovers the funding and signs the spend matching the builder
// kind. preimage is ignored for refunds.
func (s *SwapTx) Drain(
	ctx context.Context, ledger Ledger, key *btcec.PrivateKey, preimage []byte,
) (*transaction.Transaction, error) {
	funded, err := s.DiscoverFunding(ctx, ledger)
	if err != nil {
		return nil, err
	}
	if !funded {
		return nil, ErrNoFunding
	}

	if s.Kind == Claim {
		return s.SignClaim(key, preimage)
	}

	tip, err := ledger.GetTipHeight(ctx)
	if err != nil {
		return nil, wrapNetwork(err, "failed to get tip height")
	}
	return s.SignRefund(key, tip)
}

// Broadcast submits the signed transaction and returns its id.
func (s *SwapTx) Broadcast(
	ctx context.Context, ledger Ledger, tx *transaction.Transaction,
) (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", swaperr.ErrTransaction.Wrap(err, "failed to serialize transaction")
	}

	txid, err := ledger.Broadcast(ctx, raw)
	if err != nil {
		s.status = StatusFailed
		return "", wrapNetwork(err, "failed to broadcast transaction")
	}
	s.txid = txid
	s.status = StatusBroadcast
	return txid, nil
}

func (s *SwapTx) sign(key *btcec.PrivateKey, sequence uint32, branch []byte) (*transaction.Transaction, error) {
	if s.funding == nil {
		return nil, ErrNoFunding
	}
	if key == nil {
		return nil, swaperr.ErrInput.New("missing signing key")
	}
	if s.Fee >= s.funding.Value {
		return nil, swaperr.Wrapf(
			ErrInsufficientFunds, "fee %d, funding value %d", s.Fee, s.funding.Value,
		)
	}
	outValue := s.funding.Value - s.Fee

	payment, _, err := BlindOutput(s.random, BlindArgs{
		Value:          outValue,
		Asset:          s.funding.Asset,
		Script:         s.destinationScript,
		BlindingPubkey: s.destinationBlinder,
		Inputs:         []Unblinded{s.funding.Unblinded},
		ExplicitValues: []uint64{s.Fee},
	})
	if err != nil {
		return nil, err
	}

	feeOutput, err := explicitOutput(s.funding.Asset, s.Fee, nil)
	if err != nil {
		return nil, err
	}

	prevHash, err := chainhash.NewHashFromStr(s.funding.TxID)
	if err != nil {
		return nil, swaperr.ErrTransaction.Wrap(err, "invalid funding txid")
	}
	input := transaction.NewTxInput(prevHash.CloneBytes(), s.funding.Vout)
	input.Sequence = sequence
	input.Script = s.Script.SignatureScript()

	tx := transaction.NewTx(txVersion)
	tx.Locktime = s.Script.Timelock
	tx.AddInput(input)
	tx.AddOutput(payment)
	tx.AddOutput(feeOutput)

	redeemScript := s.Script.Encode()
	sig, err := witnessSignature(tx, redeemScript, s.funding.ValueCommitment, key)
	if err != nil {
		return nil, err
	}
	tx.Inputs[0].Witness = transaction.TxWitness{sig, branch, redeemScript}

	s.status = StatusSigned
	return tx, nil
}

func (s *SwapTx) checkAsset(asset []byte) error {
	feeAsset := s.network.FeeAsset()
	if len(feeAsset) <= 0 {
		return nil
	}
	policy, err := elementsutil.AssetHashToBytes(feeAsset)
	if err != nil {
		return swaperr.ErrInput.Wrap(err, "invalid policy asset")
	}
	if !bytes.Equal(policy[1:], asset) {
		assetHash, err := chainhash.NewHash(asset)
		if err != nil {
			return swaperr.ErrTransaction.Wrap(err, "invalid funding asset")
		}
		return swaperr.ErrTransaction.Newf("funding asset %s is not the policy asset", assetHash)
	}
	return nil
}

func explicitOutput(asset []byte, value uint64, script []byte) (*transaction.TxOutput, error) {
	explicitValue, err := elementsutil.ValueToBytes(value)
	if err != nil {
		return nil, swaperr.ErrTransaction.Wrap(err, "invalid output value")
	}
	explicitAsset := append([]byte{0x01}, asset...)
	return transaction.NewTxOutput(explicitAsset, explicitValue, script), nil
}

func wrapNetwork(err error, msg string) error {
	if swaperr.KindOf(err) != nil {
		return swaperr.Wrap(err, msg)
	}
	return swaperr.ErrNetwork.Wrap(err, msg)
}
