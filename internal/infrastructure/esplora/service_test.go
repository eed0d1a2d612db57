package esplora_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/esplora"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/stretchr/testify/require"
)

var _ swaptx.Ledger = esplora.NewService("")

func TestService(t *testing.T) {
	script := []byte{0x00, 0x20, 0xaa, 0xbb}
	scriptHash := sha256.Sum256(script)
	rawTx := []byte{0x02, 0x00, 0x00, 0x00}
	var broadcast string

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/scripthash/%x/txs", scriptHash), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"txid": "cc", "status": {"confirmed": false}},
			{"txid": "bb", "status": {"confirmed": true, "block_height": 1202600}},
			{"txid": "aa", "status": {"confirmed": true, "block_height": 1202500}}
		]`)
	})
	mux.HandleFunc("/tx/aa/hex", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hex.EncodeToString(rawTx))
	})
	mux.HandleFunc("/tx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		broadcast = string(body)
		if broadcast != hex.EncodeToString(rawTx) {
			http.Error(w, "sendrawtransaction RPC error: bad-txns-inputs-missingorspent", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "aa")
	})
	mux.HandleFunc("/blocks/tip/height", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "1202545\n")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc := esplora.NewService(server.URL + "/")
	ctx := context.Background()

	t.Run("history oldest first", func(t *testing.T) {
		history, err := svc.GetHistory(ctx, script)
		require.NoError(t, err)
		require.Equal(t, []swaptx.HistoryEntry{
			{TxID: "aa", Height: 1202500},
			{TxID: "bb", Height: 1202600},
			{TxID: "cc", Height: 0},
		}, history)
	})

	t.Run("raw transaction", func(t *testing.T) {
		raw, err := svc.GetRawTransaction(ctx, "aa")
		require.NoError(t, err)
		require.Equal(t, rawTx, raw)

		_, err = svc.GetRawTransaction(ctx, "dd")
		require.True(t, swaperr.ErrNetwork.Matches(err))
	})

	t.Run("broadcast", func(t *testing.T) {
		txid, err := svc.Broadcast(ctx, rawTx)
		require.NoError(t, err)
		require.Equal(t, "aa", txid)
		require.Equal(t, hex.EncodeToString(rawTx), broadcast)

		_, err = svc.Broadcast(ctx, []byte{0x01})
		require.True(t, swaperr.ErrNetwork.Matches(err))
		require.Contains(t, err.Error(), "bad-txns-inputs-missingorspent")
	})

	t.Run("tip height", func(t *testing.T) {
		height, err := svc.GetTipHeight(ctx)
		require.NoError(t, err)
		require.Equal(t, uint32(1202545), height)
	})
}

func TestServiceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := esplora.NewService(url).GetTipHeight(context.Background())
	require.True(t, swaperr.ErrNetwork.Matches(err))
}
