package utils_test

import (
	"encoding/hex"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/utils"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

var (
	mnemonic = "reward liar quote property federal print outdoor attitude satoshi favorite special layer"
	preimage = "6ef7d91c721ea06b3b65d824ae1d69777cd3892d41090234aef13a572ff0e64f"
	hashlock = "2bdd03d431251598f46a625f1d3abfcd7f491535"
	privKey  = "aecbc2bddfcd3fa6953d257a9f369dc20cdc66f2605c73efb4c91b90703506b6"
)

func TestUtils(t *testing.T) {
	testSecrets(t)
	testBlindingKey(t)
	testPreimage(t)
	testUrls(t)
}

func testSecrets(t *testing.T) {
	t.Run("secrets", func(t *testing.T) {
		err := utils.IsValidMnemonic("")
		require.Error(t, err)
		require.ErrorContains(t, err, "12 or 24 words")

		err = utils.IsValidMnemonic("mnemonic")
		require.Error(t, err)
		require.ErrorContains(t, err, "12 or 24 words")

		err = utils.IsValidMnemonic(mnemonic + "xxx")
		require.Error(t, err)
		require.ErrorContains(t, err, "invalid")

		err = utils.IsValidMnemonic(mnemonic)
		require.NoError(t, err)

		require.Error(t, utils.IsValidPrivateKey("abcd"))
		require.Error(t, utils.IsValidPrivateKey(privKey[:62]+"zz"))
		require.NoError(t, utils.IsValidPrivateKey(privKey))

		key, err := utils.ParsePrivateKey(privKey)
		require.NoError(t, err)
		require.Equal(t, privKey, hex.EncodeToString(key.Serialize()))

		derived, err := utils.PrivateKeyFromMnemonic(mnemonic)
		require.NoError(t, err)
		require.Len(t, derived, 64)

		again, err := utils.PrivateKeyFromMnemonic(mnemonic)
		require.NoError(t, err)
		require.Equal(t, derived, again)

		key, err = utils.ParsePrivateKey("  " + mnemonic + "\n")
		require.NoError(t, err)
		require.Equal(t, derived, hex.EncodeToString(key.Serialize()))

		_, err = utils.ParsePrivateKey("not a key")
		require.Error(t, err)
	})
}

func testBlindingKey(t *testing.T) {
	t.Run("blinding key", func(t *testing.T) {
		key, err := utils.ParseBlindingKey(privKey)
		require.NoError(t, err)
		require.Equal(t, privKey, hex.EncodeToString(key.Serialize()))

		for _, invalid := range []string{"", "zz", "abcd", privKey + "00"} {
			_, err := utils.ParseBlindingKey(invalid)
			require.Error(t, err, invalid)
			require.True(t, swaperr.ErrInput.Matches(err), invalid)
		}
	})
}

func testPreimage(t *testing.T) {
	t.Run("preimage", func(t *testing.T) {
		p, err := utils.ParsePreimage(preimage)
		require.NoError(t, err)
		require.Equal(t, preimage, p.String())
		require.Equal(t, hashlock, hex.EncodeToString(utils.PreimageHashlock(p)))
		require.Equal(t, btcutil.Hash160(p[:]), utils.PreimageHashlock(p))

		_, err = utils.ParsePreimage(preimage[:62])
		require.Error(t, err)

		_, err = utils.ParsePreimage("zz" + preimage[2:])
		require.Error(t, err)
	})
}

func testUrls(t *testing.T) {
	t.Run("urls", func(t *testing.T) {
		res := utils.IsValidURL("acme")
		require.Equal(t, false, res)

		res = utils.IsValidURL("https://blockstream.info/liquidtestnet/api")
		require.Equal(t, true, res)

		res = utils.IsValidURL("http://localhost:3001")
		require.Equal(t, true, res)

		res = utils.IsValidHostPort("electrs.sideswap.io:12002")
		require.Equal(t, true, res)

		res = utils.IsValidHostPort("electrs.sideswap.io")
		require.Equal(t, false, res)

		res = utils.IsValidHostPort(":12002")
		require.Equal(t, false, res)
	})
}
