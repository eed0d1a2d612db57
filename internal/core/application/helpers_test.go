package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/db"
	"github.com/ArkLabsHQ/liquid-swap/pkg/boltz"
	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/elementsutil"
	"github.com/vulpemventures/go-elements/transaction"
)

const (
	reverseScript  = "8201208763a9142bdd03d431251598f46a625f1d3abfcd7f491535882102ccbab5f97c89afb97d814831c5355ef5ba96a18c9dcd1b5c8cfd42c697bfe53c677503715912b1752103fced00385bd14b174a571d88b4b6aced2cb1d532237c29c4ec61338fbb7eff4068ac"
	blindingKeyHex = "02702ae71ec11a895f6255e26395983585a0d791ea1eb83d1aa54a66056469da"
	receiverKeyHex = "aecbc2bddfcd3fa6953d257a9f369dc20cdc66f2605c73efb4c91b90703506b6"
	preimageHex    = "6ef7d91c721ea06b3b65d824ae1d69777cd3892d41090234aef13a572ff0e64f"
	hashlockHex    = "2bdd03d431251598f46a625f1d3abfcd7f491535"
	timelock       = 1202545
	swapAddress    = "tlq1qq0gnj2my5tp8r77srvvdmwfrtr8va9mgz9e8ja0rzk75jvsanjvgz5sfvl093l5a7xztrtzhyhfmfyr2exdxtpw7cehfgtzgn62zdzcsgrz8c4pjfvtj"
	destination    = "tlq1qqtc07z9kljll7dk2jyhz0qj86df9gnrc70t0wuexutzkxjavdpht0d4vwhgs2pq2f09zsvfr5nkglc394766w3hdaqrmay4tw"
	fundingValue   = 100000
	defaultFee     = 300
)

type fakeLedger struct {
	mu        sync.Mutex
	history   map[string][]swaptx.HistoryEntry
	txs       map[string][]byte
	tip       uint32
	broadcast []string
	err       error

	// When set, Broadcast signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		history: make(map[string][]swaptx.HistoryEntry),
		txs:     make(map[string][]byte),
	}
}

func (l *fakeLedger) fund(t *testing.T, tx *transaction.Transaction, script []byte) string {
	raw, err := tx.Serialize()
	require.NoError(t, err)
	txid := tx.TxHash().String()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[txid] = raw
	key := hex.EncodeToString(script)
	l.history[key] = append(l.history[key], swaptx.HistoryEntry{TxID: txid, Height: 1202000})
	return txid
}

func (l *fakeLedger) setTip(tip uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tip = tip
}

func (l *fakeLedger) broadcasts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.broadcast...)
}

func (l *fakeLedger) GetHistory(_ context.Context, script []byte) ([]swaptx.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.history[hex.EncodeToString(script)], nil
}

func (l *fakeLedger) GetRawTransaction(_ context.Context, txid string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	raw, ok := l.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txid)
	}
	return raw, nil
}

func (l *fakeLedger) Broadcast(_ context.Context, raw []byte) (string, error) {
	if l.entered != nil {
		l.entered <- struct{}{}
		<-l.release
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	tx, err := transaction.NewTxFromHex(hex.EncodeToString(raw))
	if err != nil {
		return "", err
	}
	txid := tx.TxHash().String()
	l.broadcast = append(l.broadcast, txid)
	return txid, nil
}

func (l *fakeLedger) GetTipHeight(context.Context) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tip, l.err
}

type fakeScheduler struct {
	mu        sync.Mutex
	tasks     map[string]func()
	targets   map[string]uint32
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		tasks:   make(map[string]func()),
		targets: make(map[string]uint32),
	}
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) ScheduleRefundAtHeight(swapId string, target uint32, refund func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[swapId] = refund
	s.targets[swapId] = target
	return nil
}

func (s *fakeScheduler) CancelRefund(swapId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, swapId)
	delete(s.targets, swapId)
	s.cancelled = append(s.cancelled, swapId)
}

func (s *fakeScheduler) PendingRefunds() map[string]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[string]uint32, len(s.targets))
	for id, target := range s.targets {
		pending[id] = target
	}
	return pending
}

func (s *fakeScheduler) run(swapId string) bool {
	s.mu.Lock()
	task, ok := s.tasks[swapId]
	delete(s.tasks, swapId)
	delete(s.targets, swapId)
	s.mu.Unlock()
	if ok {
		task()
	}
	return ok
}

func (s *fakeScheduler) wasCancelled(swapId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.cancelled {
		if id == swapId {
			return true
		}
	}
	return false
}

type testService struct {
	*Service
	ledger    *fakeLedger
	scheduler *fakeScheduler
}

func newTestService(t *testing.T, signingKey *btcec.PrivateKey, boltzApi *boltz.Api) testService {
	repoManager, err := db.NewService(db.ServiceConfig{DbType: "badger"})
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)

	ledger := newFakeLedger()
	scheduler := newFakeScheduler()
	svc, err := NewService(
		BuildInfo{Version: "test"}, chain.DefaultLiquid(), ledger, repoManager,
		scheduler, signingKey, defaultFee, boltzApi,
	)
	require.NoError(t, err)
	return testService{svc, ledger, scheduler}
}

func reverseSwapArgs() ImportSwapArgs {
	return ImportSwapArgs{
		Type:         swapscript.ReverseSubmarine,
		RedeemScript: reverseScript,
		BlindingKey:  blindingKeyHex,
		Destination:  destination,
	}
}

func policyAsset(t *testing.T) []byte {
	asset, err := elementsutil.AssetHashToBytes(chain.LiquidTestnetPolicyAsset)
	require.NoError(t, err)
	return asset[1:]
}

// lockupTx returns a transaction paying fundingValue to script, blinded to
// blindingPubkey.
func lockupTx(t *testing.T, script []byte, blindingPubkey *btcec.PublicKey) *transaction.Transaction {
	const fee = 300
	zero := make([]byte, 32)
	asset := policyAsset(t)

	out, _, err := swaptx.BlindOutput(rand.Reader, swaptx.BlindArgs{
		Value:          fundingValue,
		Asset:          asset,
		Script:         script,
		BlindingPubkey: blindingPubkey.SerializeCompressed(),
		Inputs: []swaptx.Unblinded{{
			Value:               fundingValue + fee,
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

func mustPrivKey(t *testing.T, s string) *btcec.PrivateKey {
	buf, err := hex.DecodeString(s)
	require.NoError(t, err)
	key, _ := btcec.PrivKeyFromBytes(buf)
	return key
}

func txHex(t *testing.T, tx *transaction.Transaction) string {
	raw, err := tx.Serialize()
	require.NoError(t, err)
	return hex.EncodeToString(raw)
}
