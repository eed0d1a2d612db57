package swaptx

import (
	"io"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/transaction"
)

const (
	rangeProofExp     = 0
	rangeProofMinBits = 52
)

// Unblinded holds the secrets of a confidential output.
type Unblinded struct {
	Value               uint64
	Asset               []byte
	AssetBlindingFactor []byte
	ValueBlindingFactor []byte
}

// BlindArgs describes an output to blind against a set of spent outputs.
// Explicit outputs listed in Explicit take part in balancing the value
// blinding factors with zero factors.
type BlindArgs struct {
	Value          uint64
	Asset          []byte
	Script         []byte
	BlindingPubkey []byte
	Inputs         []Unblinded
	ExplicitValues []uint64
}

// BlindOutput returns a confidential output paying args.Value of args.Asset
// to args.Script, readable only by the owner of args.BlindingPubkey. The
// output is the last one of its transaction: its value blinding factor
// balances all inputs against the explicit outputs and itself. Randomness
// is read from random.
func BlindOutput(random io.Reader, args BlindArgs) (*transaction.TxOutput, *Unblinded, error) {
	if len(args.Inputs) <= 0 {
		return nil, nil, swaperr.ErrInput.New("missing inputs to blind against")
	}
	if _, err := btcec.ParsePubKey(args.BlindingPubkey); err != nil {
		return nil, nil, swaperr.ErrInput.Wrap(err, "invalid blinding pubkey")
	}

	abf, err := randomBytes(random, 32)
	if err != nil {
		return nil, nil, err
	}
	assetCommitment, err := confidential.AssetCommitment(args.Asset, abf)
	if err != nil {
		return nil, nil, swaperr.ErrKey.Wrap(err, "failed to commit to asset")
	}

	seed, err := randomBytes(random, 32)
	if err != nil {
		return nil, nil, err
	}
	inAssets := make([][]byte, 0, len(args.Inputs))
	inAbfs := make([][]byte, 0, len(args.Inputs))
	inValues := make([]uint64, 0, len(args.Inputs))
	inVbfs := make([][]byte, 0, len(args.Inputs))
	for _, in := range args.Inputs {
		inAssets = append(inAssets, in.Asset)
		inAbfs = append(inAbfs, in.AssetBlindingFactor)
		inValues = append(inValues, in.Value)
		inVbfs = append(inVbfs, in.ValueBlindingFactor)
	}
	surjectionProof, ok := confidential.SurjectionProof(confidential.SurjectionProofArgs{
		OutputAsset:               args.Asset,
		OutputAssetBlindingFactor: abf,
		InputAssets:               inAssets,
		InputAssetBlindingFactors: inAbfs,
		Seed:                      seed,
	})
	if !ok {
		return nil, nil, swaperr.ErrKey.New("failed to create surjection proof")
	}

	zeroFactor := make([]byte, 32)
	outValues := make([]uint64, 0, len(args.ExplicitValues)+1)
	outAbfs := make([][]byte, 0, len(args.ExplicitValues)+1)
	outVbfs := make([][]byte, 0, len(args.ExplicitValues))
	for _, v := range args.ExplicitValues {
		outValues = append(outValues, v)
		outAbfs = append(outAbfs, zeroFactor)
		outVbfs = append(outVbfs, zeroFactor)
	}
	outValues = append(outValues, args.Value)
	outAbfs = append(outAbfs, abf)

	vbf, err := confidential.FinalValueBlindingFactor(confidential.FinalValueBlindingFactorArgs{
		InValues:      inValues,
		OutValues:     outValues,
		InGenerators:  inAbfs,
		OutGenerators: outAbfs,
		InFactors:     inVbfs,
		OutFactors:    outVbfs,
	})
	if err != nil {
		return nil, nil, swaperr.ErrKey.Wrap(err, "failed to compute value blinding factor")
	}

	ephemeralKey, err := randomKey(random)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := confidential.NonceHash(args.BlindingPubkey, ephemeralKey.Serialize())
	if err != nil {
		return nil, nil, swaperr.ErrKey.Wrap(err, "failed to derive nonce")
	}

	valueCommitment, err := confidential.ValueCommitment(args.Value, assetCommitment, vbf[:])
	if err != nil {
		return nil, nil, swaperr.ErrKey.Wrap(err, "failed to commit to value")
	}

	rangeProof, err := confidential.RangeProof(confidential.RangeProofArgs{
		Value:               args.Value,
		Nonce:               nonce,
		Asset:               args.Asset,
		AssetBlindingFactor: abf,
		ValueBlindFactor:    vbf,
		ValueCommit:         valueCommitment,
		ScriptPubkey:        args.Script,
		Exp:                 rangeProofExp,
		MinBits:             rangeProofMinBits,
	})
	if err != nil {
		return nil, nil, swaperr.ErrKey.Wrap(err, "failed to create range proof")
	}

	out := &transaction.TxOutput{
		Asset:           assetCommitment,
		Value:           valueCommitment,
		Script:          args.Script,
		Nonce:           ephemeralKey.PubKey().SerializeCompressed(),
		RangeProof:      rangeProof,
		SurjectionProof: surjectionProof,
	}
	secrets := &Unblinded{
		Value:               args.Value,
		Asset:               args.Asset,
		AssetBlindingFactor: abf,
		ValueBlindingFactor: vbf[:],
	}
	return out, secrets, nil
}

// UnblindOutput reveals the secrets of out with the receiver blinding key.
func UnblindOutput(out *transaction.TxOutput, blindingKey *btcec.PrivateKey) (*Unblinded, error) {
	res, err := confidential.UnblindOutputWithKey(out, blindingKey.Serialize())
	if err != nil {
		return nil, swaperr.ErrKey.Wrap(err, "failed to unblind output")
	}
	return &Unblinded{
		Value:               res.Value,
		Asset:               res.Asset,
		AssetBlindingFactor: res.AssetBlindingFactor,
		ValueBlindingFactor: res.ValueBlindingFactor,
	}, nil
}

func randomBytes(random io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(random, b); err != nil {
		return nil, swaperr.ErrKey.Wrap(err, "failed to read randomness")
	}
	return b, nil
}

func randomKey(random io.Reader) (*btcec.PrivateKey, error) {
	for {
		b, err := randomBytes(random, 32)
		if err != nil {
			return nil, err
		}
		var k btcec.ModNScalar
		if overflow := k.SetByteSlice(b); overflow || k.IsZero() {
			continue
		}
		return btcec.PrivKeyFromScalar(&k), nil
	}
}
