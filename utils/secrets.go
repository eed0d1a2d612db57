package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

func IsValidMnemonic(mnemonic string) error {
	words := strings.Fields(mnemonic)
	if len(words) != 12 && len(words) != 24 {
		return fmt.Errorf("must have 12 or 24 words")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}
	return nil
}

func IsValidPrivateKey(privateKey string) error {
	if len(privateKey) != 64 {
		return fmt.Errorf("invalid private key")
	}
	if _, err := hex.DecodeString(privateKey); err != nil {
		return fmt.Errorf("invalid private key: %s", err)
	}
	return nil
}

func PrivateKeyFromMnemonic(mnemonic string) (string, error) {
	seed := bip39.NewSeed(mnemonic, "")
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", err
	}

	// m/84'/1776'/0'/0/0, the Liquid native segwit account
	derivationPath := []uint32{
		bip32.FirstHardenedChild + 84,
		bip32.FirstHardenedChild + 1776,
		bip32.FirstHardenedChild + 0,
		0,
		0,
	}

	next := key
	for _, idx := range derivationPath {
		var err error
		if next, err = next.NewChildKey(idx); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(next.Key), nil
}

// ParsePrivateKey accepts either a hex encoded private key or a BIP39
// mnemonic.
func ParsePrivateKey(secret string) (*btcec.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if len(strings.Fields(secret)) > 1 {
		if err := IsValidMnemonic(secret); err != nil {
			return nil, err
		}
		var err error
		if secret, err = PrivateKeyFromMnemonic(secret); err != nil {
			return nil, err
		}
	}

	if err := IsValidPrivateKey(secret); err != nil {
		return nil, err
	}
	buf, _ := hex.DecodeString(secret)
	key, _ := btcec.PrivKeyFromBytes(buf)
	return key, nil
}

// ParseBlindingKey parses the hex encoded blinding private key of a swap
// output.
func ParseBlindingKey(key string) (*btcec.PrivateKey, error) {
	if len(key) == 0 {
		return nil, swaperr.ErrInput.New("missing blinding key")
	}
	buf, err := hex.DecodeString(key)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid blinding key")
	}
	if len(buf) != btcec.PrivKeyBytesLen {
		return nil, swaperr.ErrInput.Newf("invalid blinding key length %d", len(buf))
	}
	blindingKey, _ := btcec.PrivKeyFromBytes(buf)
	return blindingKey, nil
}

func ParsePreimage(preimage string) (lntypes.Preimage, error) {
	p, err := lntypes.MakePreimageFromStr(preimage)
	if err != nil {
		return lntypes.Preimage{}, fmt.Errorf("invalid preimage: %s", err)
	}
	return p, nil
}

// PreimageHashlock returns RIPEMD160(SHA256(preimage)), the hash a swap
// script locks to.
func PreimageHashlock(preimage lntypes.Preimage) []byte {
	return btcutil.Hash160(preimage[:])
}
