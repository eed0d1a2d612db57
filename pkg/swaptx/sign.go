package swaptx

import (
	"encoding/binary"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vulpemventures/go-elements/transaction"
)

const maxNonceAttempts = 1 << 16

// signLowR produces a deterministic RFC6979 signature whose R value fits in
// 32 bytes once DER encoded. Extra entropy is a little endian counter bumped
// until R is low.
func signLowR(key *btcec.PrivateKey, hash []byte) (*ecdsa.Signature, error) {
	privKey := key.Serialize()
	defer zero(privKey)

	var extra [32]byte
	for counter := uint32(0); counter < maxNonceAttempts; counter++ {
		var extraData []byte
		if counter > 0 {
			binary.LittleEndian.PutUint32(extra[:], counter)
			extraData = extra[:]
		}

		k := secp.NonceRFC6979(privKey, hash, extraData, nil, 0)
		r, s, ok := signWithNonce(&key.Key, hash, k)
		k.Zero()
		if !ok || !isLowR(r) {
			continue
		}
		return ecdsa.NewSignature(r, s), nil
	}
	return nil, swaperr.ErrTransaction.New("failed to find a low r signature")
}

func signWithNonce(
	privKey *secp.ModNScalar, hash []byte, k *secp.ModNScalar,
) (*secp.ModNScalar, *secp.ModNScalar, bool) {
	var kG secp.JacobianPoint
	secp.ScalarBaseMultNonConst(k, &kG)
	kG.ToAffine()

	r := new(secp.ModNScalar)
	x := kG.X.Bytes()
	r.SetByteSlice(x[:])
	if r.IsZero() {
		return nil, nil, false
	}

	var e secp.ModNScalar
	e.SetByteSlice(hash)

	kInv := new(secp.ModNScalar).Set(k).InverseNonConst()
	s := new(secp.ModNScalar).Mul2(privKey, r).Add(&e).Mul(kInv)
	if s.IsZero() {
		return nil, nil, false
	}
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	return r, s, true
}

func isLowR(r *secp.ModNScalar) bool {
	b := r.Bytes()
	return b[0] < 0x80
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// witnessSignature signs input 0 of tx spending the given redeem script and
// returns the DER signature followed by the sighash byte.
func witnessSignature(
	tx *transaction.Transaction, redeemScript, value []byte, key *btcec.PrivateKey,
) ([]byte, error) {
	hash := tx.HashForWitnessV0(0, redeemScript, value, txscript.SigHashAll)
	sig, err := signLowR(key, hash[:])
	if err != nil {
		return nil, err
	}
	return append(sig.Serialize(), byte(txscript.SigHashAll)), nil
}

// VerifyInputSignature checks the first witness element of input inIndex
// against the redeem script, the committed value of the spent output and
// pubkey.
func VerifyInputSignature(
	tx *transaction.Transaction, inIndex int, redeemScript, value []byte, pubkey *btcec.PublicKey,
) error {
	if inIndex < 0 || inIndex >= len(tx.Inputs) {
		return swaperr.ErrInput.Newf("input %d out of range", inIndex)
	}
	witness := tx.Inputs[inIndex].Witness
	if len(witness) == 0 || len(witness[0]) < 2 {
		return swaperr.ErrTransaction.New("missing signature")
	}

	rawSig := witness[0]
	hashType := txscript.SigHashType(rawSig[len(rawSig)-1])
	sig, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
	if err != nil {
		return swaperr.ErrTransaction.Wrap(err, "invalid signature encoding")
	}

	hash := tx.HashForWitnessV0(inIndex, redeemScript, value, hashType)
	if !sig.Verify(hash[:], pubkey) {
		return swaperr.ErrTransaction.New("signature does not verify")
	}
	return nil
}
