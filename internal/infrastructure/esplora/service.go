package esplora

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/ccoveille/go-safecast"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

type service struct {
	baseUrl string
	client  *http.Client
}

// NewService returns a ledger backed by an Esplora REST api.
func NewService(url string) *service {
	return &service{
		baseUrl: strings.TrimRight(url, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type esploraTx struct {
	Txid   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
}

func (s *service) GetHistory(ctx context.Context, lockingScript []byte) ([]swaptx.HistoryEntry, error) {
	scriptHash := sha256.Sum256(lockingScript)
	body, err := s.get(ctx, fmt.Sprintf("/scripthash/%s/txs", hex.EncodeToString(scriptHash[:])))
	if err != nil {
		return nil, err
	}

	var txs []esploraTx
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, swaperr.ErrNetwork.Wrap(err, "parse history")
	}

	// Esplora lists unconfirmed first, then confirmed newest first.
	history := make([]swaptx.HistoryEntry, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		entry := swaptx.HistoryEntry{TxID: txs[i].Txid}
		if txs[i].Status.Confirmed {
			entry.Height = txs[i].Status.BlockHeight
		}
		history = append(history, entry)
	}
	return history, nil
}

func (s *service) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	body, err := s.get(ctx, fmt.Sprintf("/tx/%s/hex", txid))
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrapf(err, "parse transaction %s", txid)
	}
	return raw, nil
}

func (s *service) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.baseUrl+"/tx", strings.NewReader(hex.EncodeToString(rawTx)),
	)
	if err != nil {
		return "", swaperr.ErrInput.Wrap(err, "broadcast")
	}
	req.Header.Set("Content-Type", "text/plain")

	body, err := s.do(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (s *service) GetTipHeight(ctx context.Context) (uint32, error) {
	body, err := s.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, swaperr.ErrNetwork.Wrap(err, "parse height")
	}
	height, err := safecast.ToUint32(n)
	if err != nil {
		return 0, swaperr.ErrNetwork.Wrapf(err, "invalid tip height %d", n)
	}
	return height, nil
}

func (s *service) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseUrl+path, nil)
	if err != nil {
		return nil, swaperr.ErrInput.Wrapf(err, "get %s", path)
	}
	return s.do(req)
}

func (s *service) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrap(err, "read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, swaperr.ErrNetwork.Newf(
			"unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)),
		)
	}
	return b, nil
}
