package swapscript_test

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Description    string `json:"description"`
	Type           string `json:"type"`
	Script         string `json:"script"`
	BlindingKey    string `json:"blindingKey"`
	Hashlock       string `json:"hashlock"`
	ReceiverPubkey string `json:"receiverPubkey"`
	SenderPubkey   string `json:"senderPubkey"`
	Timelock       uint32 `json:"timelock"`
	Network        string `json:"network"`
	Address        string `json:"address"`
}

func readFixtures(t *testing.T) (valid, invalid []fixture) {
	data, err := os.ReadFile("testdata/fixtures.json")
	require.NoError(t, err)

	var fixtures struct {
		Valid   []fixture `json:"valid"`
		Invalid []fixture `json:"invalid"`
	}
	require.NoError(t, json.Unmarshal(data, &fixtures))
	return fixtures.Valid, fixtures.Invalid
}

func privKeyFromHex(t *testing.T, s string) *btcec.PrivateKey {
	buf, err := hex.DecodeString(s)
	require.NoError(t, err)
	key, _ := btcec.PrivKeyFromBytes(buf)
	return key
}

func newKey(t *testing.T) *btcec.PrivateKey {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func TestDecode(t *testing.T) {
	valid, invalid := readFixtures(t)

	t.Run("Valid", func(t *testing.T) {
		for i, f := range valid {
			t.Run(fmt.Sprintf("Case_%d_%s", i, f.Description), func(t *testing.T) {
				swapType, err := swapscript.ParseSwapType(f.Type)
				require.NoError(t, err)

				s, err := swapscript.DecodeString(f.Script, swapType, privKeyFromHex(t, f.BlindingKey))
				require.NoError(t, err)

				require.Equal(t, f.Hashlock, s.HashlockHex())
				require.Equal(t, f.ReceiverPubkey, hex.EncodeToString(s.ReceiverPubkey.SerializeCompressed()))
				require.Equal(t, f.SenderPubkey, hex.EncodeToString(s.SenderPubkey.SerializeCompressed()))
				require.Equal(t, f.Timelock, s.Timelock)
				require.Equal(t, f.Script, s.Hex())

				n, err := chain.ParseNetwork(f.Network)
				require.NoError(t, err)
				params, err := n.Params()
				require.NoError(t, err)

				addr, err := s.Address(params)
				require.NoError(t, err)
				require.Equal(t, f.Address, addr)
			})
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for i, f := range invalid {
			t.Run(fmt.Sprintf("Case_%d_%s", i, f.Description), func(t *testing.T) {
				swapType, err := swapscript.ParseSwapType(f.Type)
				require.NoError(t, err)

				require.NotPanics(t, func() {
					s, err := swapscript.DecodeString(f.Script, swapType, newKey(t))
					require.Error(t, err)
					require.True(t, swaperr.ErrInput.Matches(err))
					require.Nil(t, s)
				})
			})
		}
	})
}

func TestKnownReceiverKey(t *testing.T) {
	valid, _ := readFixtures(t)
	f := valid[0]

	receiver := privKeyFromHex(t, "aecbc2bddfcd3fa6953d257a9f369dc20cdc66f2605c73efb4c91b90703506b6")
	s, err := swapscript.DecodeReverse(f.Script, privKeyFromHex(t, f.BlindingKey))
	require.NoError(t, err)
	require.True(t, receiver.PubKey().IsEqual(s.ReceiverPubkey))

	preimage, err := hex.DecodeString("6ef7d91c721ea06b3b65d824ae1d69777cd3892d41090234aef13a572ff0e64f")
	require.NoError(t, err)
	require.Equal(t, s.Hashlock, btcutil.Hash160(preimage))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	timelocks := map[swapscript.SwapType][]uint32{
		swapscript.Submarine:        {17, 127, 128, 32767, 1202545, 1 << 23, 1<<31 - 1, 1 << 31, 0xffffffff},
		swapscript.ReverseSubmarine: {32768, 1179263, 1202545, 8388607},
	}

	for swapType, locks := range timelocks {
		for _, timelock := range locks {
			t.Run(fmt.Sprintf("%s_%d", swapType, timelock), func(t *testing.T) {
				hashlock := make([]byte, 20)
				_, err := rand.Read(hashlock)
				require.NoError(t, err)

				blindingKey := newKey(t)
				opts := swapscript.Opts{
					Type:           swapType,
					Hashlock:       hashlock,
					ReceiverPubkey: newKey(t).PubKey(),
					SenderPubkey:   newKey(t).PubKey(),
					Timelock:       timelock,
					BlindingKey:    blindingKey,
				}
				s, err := swapscript.NewSwapScript(opts)
				require.NoError(t, err)

				decoded, err := swapscript.Decode(s.Encode(), swapType, blindingKey)
				require.NoError(t, err)
				require.Equal(t, opts.Hashlock, decoded.Hashlock)
				require.True(t, opts.ReceiverPubkey.IsEqual(decoded.ReceiverPubkey))
				require.True(t, opts.SenderPubkey.IsEqual(decoded.SenderPubkey))
				require.Equal(t, opts.Timelock, decoded.Timelock)
				require.True(t, s.Equal(decoded))
			})
		}
	}
}

func TestNewSwapScriptInvalid(t *testing.T) {
	valid := swapscript.Opts{
		Type:           swapscript.ReverseSubmarine,
		Hashlock:       make([]byte, 20),
		ReceiverPubkey: newKey(t).PubKey(),
		SenderPubkey:   newKey(t).PubKey(),
		Timelock:       1202545,
		BlindingKey:    newKey(t),
	}
	_, err := swapscript.NewSwapScript(valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(o *swapscript.Opts)
	}{
		{"short hashlock", func(o *swapscript.Opts) { o.Hashlock = make([]byte, 19) }},
		{"missing receiver", func(o *swapscript.Opts) { o.ReceiverPubkey = nil }},
		{"missing sender", func(o *swapscript.Opts) { o.SenderPubkey = nil }},
		{"missing blinding key", func(o *swapscript.Opts) { o.BlindingKey = nil }},
		{"small int timelock", func(o *swapscript.Opts) { o.Type = swapscript.Submarine; o.Timelock = 16 }},
		{"reverse timelock too low", func(o *swapscript.Opts) { o.Timelock = 32767 }},
		{"reverse timelock too high", func(o *swapscript.Opts) { o.Timelock = 8388608 }},
		{"unknown type", func(o *swapscript.Opts) { o.Type = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			s, err := swapscript.NewSwapScript(opts)
			require.Nil(t, s)
			require.True(t, swaperr.ErrInput.Matches(err))
		})
	}
}

func TestAddress(t *testing.T) {
	blindingKey := newKey(t)
	for _, swapType := range []swapscript.SwapType{swapscript.Submarine, swapscript.ReverseSubmarine} {
		t.Run(swapType.String(), func(t *testing.T) {
			s, err := swapscript.NewSwapScript(swapscript.Opts{
				Type:           swapType,
				Hashlock:       make([]byte, 20),
				ReceiverPubkey: newKey(t).PubKey(),
				SenderPubkey:   newKey(t).PubKey(),
				Timelock:       1202545,
				BlindingKey:    blindingKey,
			})
			require.NoError(t, err)

			params, err := chain.Liquid.Params()
			require.NoError(t, err)

			addr, err := s.Address(params)
			require.NoError(t, err)
			again, err := s.Address(params)
			require.NoError(t, err)
			require.Equal(t, addr, again)

			if swapType == swapscript.ReverseSubmarine {
				require.Equal(t, "lq1", addr[:3])
				require.Len(t, s.LockingScript(), 34)
				require.Nil(t, s.SignatureScript())
			} else {
				require.Equal(t, "VJL", addr[:3])
				require.Len(t, s.LockingScript(), 23)
				require.Len(t, s.SignatureScript(), 35)
			}

			testnet, err := chain.LiquidTestnet.Params()
			require.NoError(t, err)
			other, err := s.Address(testnet)
			require.NoError(t, err)
			require.NotEqual(t, addr, other)

			_, err = s.Address(nil)
			require.True(t, swaperr.ErrInput.Matches(err))
		})
	}
}
