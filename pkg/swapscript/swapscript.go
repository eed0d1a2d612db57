package swapscript

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

const (
	hash160Len  = 20
	preimageLen = 32

	// Reverse swap timelocks must be pushed as exactly 3 bytes.
	minReverseTimelock = 1 << 15
	maxReverseTimelock = 1<<23 - 1
	// Smaller values are encoded as OP_1..OP_16 rather than pushes.
	minTimelock = 17
)

type SwapType int

const (
	Submarine SwapType = iota
	ReverseSubmarine
)

func (t SwapType) String() string {
	switch t {
	case Submarine:
		return "submarine"
	case ReverseSubmarine:
		return "reverse"
	default:
		return fmt.Sprintf("swaptype(%d)", int(t))
	}
}

func ParseSwapType(s string) (SwapType, error) {
	switch s {
	case "submarine":
		return Submarine, nil
	case "reverse", "reverse-submarine":
		return ReverseSubmarine, nil
	default:
		return 0, swaperr.ErrInput.Newf("unknown swap type %q", s)
	}
}

type Opts struct {
	Type           SwapType
	Hashlock       []byte
	ReceiverPubkey *btcec.PublicKey
	SenderPubkey   *btcec.PublicKey
	Timelock       uint32
	BlindingKey    *btcec.PrivateKey
}

func (o Opts) validate() error {
	if o.Type != Submarine && o.Type != ReverseSubmarine {
		return swaperr.ErrInput.Newf("unknown swap type %d", int(o.Type))
	}
	if o.ReceiverPubkey == nil || o.SenderPubkey == nil {
		return swaperr.ErrInput.New("receiver and sender pubkeys are required")
	}
	if o.BlindingKey == nil {
		return swaperr.ErrInput.New("blinding key is required")
	}
	if len(o.Hashlock) != hash160Len {
		return swaperr.ErrInput.Newf("hashlock must be %d bytes, got %d", hash160Len, len(o.Hashlock))
	}
	if o.Timelock < minTimelock {
		return swaperr.ErrInput.Newf("timelock %d is below %d", o.Timelock, minTimelock)
	}
	if o.Type == ReverseSubmarine &&
		(o.Timelock < minReverseTimelock || o.Timelock > maxReverseTimelock) {
		return swaperr.ErrInput.Newf(
			"reverse swap timelock %d out of range [%d, %d]",
			o.Timelock, minReverseTimelock, maxReverseTimelock,
		)
	}
	return nil
}

// SwapScript is the HTLC a swap locks funds into. It is immutable once
// created and owns the blinding key of its output.
type SwapScript struct {
	Type           SwapType
	Hashlock       []byte
	ReceiverPubkey *btcec.PublicKey
	SenderPubkey   *btcec.PublicKey
	Timelock       uint32
	BlindingKey    *btcec.PrivateKey

	script []byte
}

func NewSwapScript(opts Opts) (*SwapScript, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &SwapScript{
		Type:           opts.Type,
		Hashlock:       bytes.Clone(opts.Hashlock),
		ReceiverPubkey: opts.ReceiverPubkey,
		SenderPubkey:   opts.SenderPubkey,
		Timelock:       opts.Timelock,
		BlindingKey:    opts.BlindingKey,
	}

	script, err := s.encode()
	if err != nil {
		return nil, err
	}
	s.script = script
	return s, nil
}

// Encode returns the redeem script bytes.
func (s *SwapScript) Encode() []byte {
	return bytes.Clone(s.script)
}

func (s *SwapScript) Hex() string {
	return hex.EncodeToString(s.script)
}

func (s *SwapScript) String() string {
	str, err := txscript.DisasmString(s.script)
	if err != nil {
		return s.Hex()
	}
	return str
}

func (s *SwapScript) HashlockHex() string {
	return hex.EncodeToString(s.Hashlock)
}

func (s *SwapScript) BlindingPubkey() *btcec.PublicKey {
	return s.BlindingKey.PubKey()
}

// Equal compares the script parameters, blinding key included.
func (s *SwapScript) Equal(other *SwapScript) bool {
	if other == nil {
		return false
	}
	return s.Type == other.Type &&
		bytes.Equal(s.script, other.script) &&
		bytes.Equal(s.BlindingKey.Serialize(), other.BlindingKey.Serialize())
}

func (s *SwapScript) encode() ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	switch s.Type {
	case Submarine:
		builder.
			AddOp(txscript.OP_HASH160).
			AddData(s.Hashlock).
			AddOp(txscript.OP_EQUAL).
			AddOp(txscript.OP_IF).
			AddData(s.ReceiverPubkey.SerializeCompressed()).
			AddOp(txscript.OP_ELSE).
			AddInt64(int64(s.Timelock)).
			AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
			AddOp(txscript.OP_DROP).
			AddData(s.SenderPubkey.SerializeCompressed()).
			AddOp(txscript.OP_ENDIF).
			AddOp(txscript.OP_CHECKSIG)
	case ReverseSubmarine:
		builder.
			AddOp(txscript.OP_SIZE).
			AddData([]byte{preimageLen}).
			AddOp(txscript.OP_EQUAL).
			AddOp(txscript.OP_IF).
			AddOp(txscript.OP_HASH160).
			AddData(s.Hashlock).
			AddOp(txscript.OP_EQUALVERIFY).
			AddData(s.ReceiverPubkey.SerializeCompressed()).
			AddOp(txscript.OP_ELSE).
			AddOp(txscript.OP_DROP).
			AddInt64(int64(s.Timelock)).
			AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
			AddOp(txscript.OP_DROP).
			AddData(s.SenderPubkey.SerializeCompressed()).
			AddOp(txscript.OP_ENDIF).
			AddOp(txscript.OP_CHECKSIG)
	}

	script, err := builder.Script()
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "failed to build script")
	}
	return script, nil
}
