package swapscript

import (
	"crypto/sha256"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/payment"
)

// Address returns the confidential address funds must be sent to. Reverse
// swaps lock into a native P2WSH output, submarine swaps into a P2SH
// wrapped one.
func (s *SwapScript) Address(net *network.Network) (string, error) {
	if net == nil {
		return "", swaperr.ErrInput.New("missing network")
	}

	p2wsh, err := payment.FromPayment(&payment.Payment{
		Script:      s.script,
		Network:     net,
		BlindingKey: s.BlindingPubkey(),
	})
	if err != nil {
		return "", swaperr.ErrInput.Wrap(err, "failed to build p2wsh payment")
	}

	var addr string
	if s.Type == ReverseSubmarine {
		addr, err = p2wsh.ConfidentialWitnessScriptHash()
	} else {
		var p2sh *payment.Payment
		p2sh, err = payment.FromPayment(&payment.Payment{
			Script:      p2wsh.WitnessScript,
			Network:     net,
			BlindingKey: s.BlindingPubkey(),
		})
		if err != nil {
			return "", swaperr.ErrInput.Wrap(err, "failed to build p2sh payment")
		}
		addr, err = p2sh.ConfidentialScriptHash()
	}
	if err != nil {
		return "", swaperr.ErrInput.Wrap(err, "failed to encode address")
	}
	return addr, nil
}

// WitnessProgram returns the P2WSH output script committing to the redeem
// script.
func (s *SwapScript) WitnessProgram() []byte {
	h := sha256.Sum256(s.script)
	// nolint:all
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
	return script
}

// LockingScript returns the output script the swap address pays to.
func (s *SwapScript) LockingScript() []byte {
	if s.Type == ReverseSubmarine {
		return s.WitnessProgram()
	}

	// nolint:all
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(s.WitnessProgram())).
		AddOp(txscript.OP_EQUAL).
		Script()
	return script
}

// SignatureScript returns the scriptSig a spend of the swap output needs:
// empty for native segwit, the witness program push when P2SH wrapped.
func (s *SwapScript) SignatureScript() []byte {
	if s.Type == ReverseSubmarine {
		return nil
	}
	// nolint:all
	script, _ := txscript.NewScriptBuilder().AddData(s.WitnessProgram()).Script()
	return script
}
