package swapscript

import (
	"encoding/hex"
	"strings"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

const maxTimelockPushLen = 5

// instruction is either an opcode or a data push.
type instruction struct {
	opcode byte
	data   []byte
	push   bool
}

func tokenize(script []byte) ([]instruction, error) {
	var out []instruction
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		out = append(out, instruction{
			opcode: op,
			data:   tokenizer.Data(),
			push:   op <= txscript.OP_PUSHDATA4,
		})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "malformed script")
	}
	return out, nil
}

type field int

const (
	noField field = iota
	hashlockField
	receiverField
	senderField
	timelockField
	// timelock if the push is 3 bytes long, sender pubkey otherwise.
	reverseDropField
)

// transitions maps the last opcode seen to the field the next push fills.
var transitions = map[SwapType]map[byte]field{
	Submarine: {
		txscript.OP_HASH160: hashlockField,
		txscript.OP_IF:      receiverField,
		txscript.OP_ELSE:    timelockField,
		txscript.OP_DROP:    senderField,
	},
	ReverseSubmarine: {
		txscript.OP_HASH160:     hashlockField,
		txscript.OP_EQUALVERIFY: receiverField,
		txscript.OP_DROP:        reverseDropField,
	},
}

type decoder struct {
	swapType SwapType
	state    field

	hashlock []byte
	receiver []byte
	sender   []byte
	timelock []byte
}

func (d *decoder) step(in instruction) {
	if !in.push {
		d.state = transitions[d.swapType][in.opcode]
		return
	}

	switch d.state {
	case hashlockField:
		d.hashlock = in.data
	case receiverField:
		d.receiver = in.data
	case senderField:
		d.sender = in.data
	case timelockField:
		d.timelock = in.data
	case reverseDropField:
		if len(in.data) == 3 {
			d.timelock = in.data
		} else {
			d.sender = in.data
		}
	}
	d.state = noField
}

// Decode parses a redeem script of the given type and attaches the blinding
// key to it.
func Decode(script []byte, swapType SwapType, blindingKey *btcec.PrivateKey) (*SwapScript, error) {
	if _, ok := transitions[swapType]; !ok {
		return nil, swaperr.ErrInput.Newf("unknown swap type %d", int(swapType))
	}

	instructions, err := tokenize(script)
	if err != nil {
		return nil, err
	}

	d := &decoder{swapType: swapType}
	for _, in := range instructions {
		d.step(in)
	}

	if len(d.hashlock) == 0 || len(d.receiver) == 0 || len(d.sender) == 0 || len(d.timelock) == 0 {
		return nil, swaperr.ErrInput.New("could not extract all elements from script")
	}
	if len(d.hashlock) != hash160Len {
		return nil, swaperr.ErrInput.Newf("invalid hashlock length %d", len(d.hashlock))
	}
	receiver, err := btcec.ParsePubKey(d.receiver)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid receiver pubkey")
	}
	sender, err := btcec.ParsePubKey(d.sender)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid sender pubkey")
	}
	timelock, err := parseTimelock(d.timelock)
	if err != nil {
		return nil, err
	}

	return NewSwapScript(Opts{
		Type:           swapType,
		Hashlock:       d.hashlock,
		ReceiverPubkey: receiver,
		SenderPubkey:   sender,
		Timelock:       timelock,
		BlindingKey:    blindingKey,
	})
}

func DecodeString(scriptHex string, swapType SwapType, blindingKey *btcec.PrivateKey) (*SwapScript, error) {
	script, err := hex.DecodeString(strings.TrimSpace(scriptHex))
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid script hex")
	}
	return Decode(script, swapType, blindingKey)
}

func DecodeSubmarine(scriptHex string, blindingKey *btcec.PrivateKey) (*SwapScript, error) {
	return DecodeString(scriptHex, Submarine, blindingKey)
}

func DecodeReverse(scriptHex string, blindingKey *btcec.PrivateKey) (*SwapScript, error) {
	return DecodeString(scriptHex, ReverseSubmarine, blindingKey)
}

// parseTimelock reads a script number as an unsigned little endian int.
func parseTimelock(b []byte) (uint32, error) {
	if len(b) == 0 || len(b) > maxTimelockPushLen {
		return 0, swaperr.ErrInput.Newf("invalid timelock length %d", len(b))
	}
	if b[len(b)-1]&0x80 != 0 {
		return 0, swaperr.ErrInput.New("negative timelock")
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	if v > 0xffffffff {
		return 0, swaperr.ErrInput.Newf("timelock %d overflows", v)
	}
	return uint32(v), nil
}
