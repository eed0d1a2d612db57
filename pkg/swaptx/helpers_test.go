package swaptx_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/elementsutil"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/payment"
	"github.com/vulpemventures/go-elements/transaction"
)

const (
	vectorScript   = "8201208763a9142bdd03d431251598f46a625f1d3abfcd7f491535882102ccbab5f97c89afb97d814831c5355ef5ba96a18c9dcd1b5c8cfd42c697bfe53c677503715912b1752103fced00385bd14b174a571d88b4b6aced2cb1d532237c29c4ec61338fbb7eff4068ac"
	vectorBlinding = "02702ae71ec11a895f6255e26395983585a0d791ea1eb83d1aa54a66056469da"
	vectorReceiver = "aecbc2bddfcd3fa6953d257a9f369dc20cdc66f2605c73efb4c91b90703506b6"
	vectorPreimage = "6ef7d91c721ea06b3b65d824ae1d69777cd3892d41090234aef13a572ff0e64f"
	vectorTimelock = 1202545
	vectorAddress  = "tlq1qq0gnj2my5tp8r77srvvdmwfrtr8va9mgz9e8ja0rzk75jvsanjvgz5sfvl093l5a7xztrtzhyhfmfyr2exdxtpw7cehfgtzgn62zdzcsgrz8c4pjfvtj"
	vectorReturn   = "tlq1qqtc07z9kljll7dk2jyhz0qj86df9gnrc70t0wuexutzkxjavdpht0d4vwhgs2pq2f09zsvfr5nkglc394766w3hdaqrmay4tw"
	vectorFee      = 5000
)

type mockLedger struct {
	mu        sync.Mutex
	history   map[string][]swaptx.HistoryEntry
	txs       map[string][]byte
	tip       uint32
	broadcast [][]byte
	err       error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		history: make(map[string][]swaptx.HistoryEntry),
		txs:     make(map[string][]byte),
	}
}

func (m *mockLedger) addTx(t *testing.T, tx *transaction.Transaction, script []byte) string {
	raw, err := tx.Serialize()
	require.NoError(t, err)
	txid := tx.TxHash().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[txid] = raw
	key := hex.EncodeToString(script)
	m.history[key] = append(m.history[key], swaptx.HistoryEntry{TxID: txid, Height: 100})
	return txid
}

func (m *mockLedger) GetHistory(_ context.Context, script []byte) ([]swaptx.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.history[hex.EncodeToString(script)], nil
}

func (m *mockLedger) GetRawTransaction(_ context.Context, txid string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txid)
	}
	return raw, nil
}

func (m *mockLedger) Broadcast(_ context.Context, raw []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	tx, err := transaction.NewTxFromHex(hex.EncodeToString(raw))
	if err != nil {
		return "", err
	}
	m.broadcast = append(m.broadcast, raw)
	return tx.TxHash().String(), nil
}

func (m *mockLedger) GetTipHeight(context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip, m.err
}

func policyAsset(t *testing.T) []byte {
	asset, err := elementsutil.AssetHashToBytes(chain.LiquidTestnetPolicyAsset)
	require.NoError(t, err)
	return asset[1:]
}

// fundingTx returns a transaction paying value to script, blinded to
// blindingPubkey, as a wallet funding the swap would.
func fundingTx(
	t *testing.T, asset []byte, value uint64, script []byte, blindingPubkey *btcec.PublicKey,
) *transaction.Transaction {
	const fee = 300
	zero := make([]byte, 32)

	out, _, err := swaptx.BlindOutput(rand.Reader, swaptx.BlindArgs{
		Value:          value,
		Asset:          asset,
		Script:         script,
		BlindingPubkey: blindingPubkey.SerializeCompressed(),
		Inputs: []swaptx.Unblinded{{
			Value:               value + fee,
			Asset:               asset,
			AssetBlindingFactor: zero,
			ValueBlindingFactor: zero,
		}},
		ExplicitValues: []uint64{fee},
	})
	require.NoError(t, err)

	prevHash := make([]byte, 32)
	_, err = rand.Read(prevHash)
	require.NoError(t, err)

	feeValue, err := elementsutil.ValueToBytes(fee)
	require.NoError(t, err)

	tx := transaction.NewTx(2)
	tx.AddInput(transaction.NewTxInput(prevHash, 0))
	tx.AddOutput(out)
	tx.AddOutput(transaction.NewTxOutput(append([]byte{0x01}, asset...), feeValue, []byte{}))
	return tx
}

type destination struct {
	address     string
	script      []byte
	blindingKey *btcec.PrivateKey
}

func newDestination(t *testing.T) destination {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	blindingKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	p2wpkh := payment.FromPublicKey(key.PubKey(), &network.Testnet, blindingKey.PubKey())
	addr, err := p2wpkh.ConfidentialWitnessPubKeyHash()
	require.NoError(t, err)

	return destination{
		address:     addr,
		script:      p2wpkh.WitnessScript,
		blindingKey: blindingKey,
	}
}

func mustDecodeHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustPrivKey(t *testing.T, s string) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(mustDecodeHex(t, s))
	return key
}
