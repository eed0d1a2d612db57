package electrum

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/ccoveille/go-safecast"
	log "github.com/sirupsen/logrus"
)

const DefaultTimeout = 9 * time.Second

const (
	methodPing       = "server.ping"
	methodHistory    = "blockchain.scripthash.get_history"
	methodGetTx      = "blockchain.transaction.get"
	methodBroadcast  = "blockchain.transaction.broadcast"
	methodHeadersTip = "blockchain.headers.subscribe"
)

type Config struct {
	// URL is host:port, without scheme.
	URL            string
	TLS            bool
	ValidateDomain bool
	Timeout        time.Duration
}

func ConfigFromChain(c chain.Config) Config {
	return Config{
		URL:            c.ElectrumURL,
		TLS:            c.TLS,
		ValidateDomain: c.ValidateDomain,
		Timeout:        DefaultTimeout,
	}
}

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type response struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client talks the Electrum line delimited JSON-RPC protocol. Calls are
// serialized over a single connection that is dialed lazily and dropped on
// any transport failure.
type Client struct {
	cfg Config

	lock   sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg}
}

func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closeConn()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, methodPing, []any{}, nil)
}

func (c *Client) GetHistory(ctx context.Context, lockingScript []byte) ([]swaptx.HistoryEntry, error) {
	var res []struct {
		TxHash string `json:"tx_hash"`
		Height int64  `json:"height"`
	}
	if err := c.call(ctx, methodHistory, []any{ScriptHash(lockingScript)}, &res); err != nil {
		return nil, err
	}

	history := make([]swaptx.HistoryEntry, 0, len(res))
	for _, h := range res {
		history = append(history, swaptx.HistoryEntry{TxID: h.TxHash, Height: h.Height})
	}
	return history, nil
}

func (c *Client) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	var res string
	if err := c.call(ctx, methodGetTx, []any{txid}, &res); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(res)
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrapf(err, "invalid transaction hex for %s", txid)
	}
	return raw, nil
}

func (c *Client) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	var txid string
	if err := c.call(ctx, methodBroadcast, []any{hex.EncodeToString(rawTx)}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (c *Client) GetTipHeight(ctx context.Context) (uint32, error) {
	var res struct {
		Height int64 `json:"height"`
	}
	if err := c.call(ctx, methodHeadersTip, []any{}, &res); err != nil {
		return 0, err
	}
	height, err := safecast.ToUint32(res.Height)
	if err != nil {
		return 0, swaperr.ErrNetwork.Wrapf(err, "invalid tip height %d", res.Height)
	}
	return height, nil
}

// ScriptHash is the Electrum index key of an output script: its sha256,
// byte reversed, hex encoded.
func ScriptHash(script []byte) string {
	h := sha256.Sum256(script)
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return hex.EncodeToString(h[:])
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.closeConn()
		return swaperr.ErrNetwork.Wrap(err, "failed to set deadline")
	}

	c.nextID++
	id := c.nextID
	buf, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return swaperr.ErrInput.Wrapf(err, "failed to encode %s request", method)
	}
	if _, err := c.conn.Write(append(buf, '\n')); err != nil {
		c.closeConn()
		return swaperr.ErrNetwork.Wrapf(err, "failed to send %s", method)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.closeConn()
			return swaperr.ErrNetwork.Wrapf(err, "failed to read %s response", method)
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.closeConn()
			return swaperr.ErrNetwork.Wrapf(err, "invalid %s response", method)
		}
		// Subscription notifications carry a method and no id.
		if resp.ID == nil || *resp.ID != id {
			log.Debugf("electrum: skipping message %s", resp.Method)
			continue
		}

		if len(resp.Error) > 0 && string(resp.Error) != "null" {
			return swaperr.ErrNetwork.Newf("%s failed: %s", method, parseRPCError(resp.Error))
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return swaperr.ErrNetwork.Wrapf(err, "failed to decode %s result", method)
		}
		return nil
	}
}

func (c *Client) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if c.cfg.TLS {
		host, _, splitErr := net.SplitHostPort(c.cfg.URL)
		if splitErr != nil {
			return swaperr.ErrInput.Wrapf(splitErr, "invalid electrum url %s", c.cfg.URL)
		}
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: !c.cfg.ValidateDomain,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", c.cfg.URL)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.cfg.URL)
	}
	if err != nil {
		return swaperr.ErrNetwork.Wrapf(err, "failed to connect to %s", c.cfg.URL)
	}

	log.Debugf("electrum: connected to %s", c.cfg.URL)
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func (c *Client) closeConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func parseRPCError(raw json.RawMessage) string {
	var e rpcError
	if err := json.Unmarshal(raw, &e); err == nil && len(e.Message) > 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
