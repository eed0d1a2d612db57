package swaptx

import "context"

type HistoryEntry struct {
	TxID string
	// Height is 0 or negative for unconfirmed transactions.
	Height int64
}

// Ledger is the chain backend a builder talks to. Implementations enforce
// their own per call timeout and return swaperr.ErrNetwork on failure.
type Ledger interface {
	// GetHistory returns the transactions touching the given output
	// script, oldest first. An empty result means the script was never
	// funded.
	GetHistory(ctx context.Context, lockingScript []byte) ([]HistoryEntry, error)
	GetRawTransaction(ctx context.Context, txid string) ([]byte, error)
	Broadcast(ctx context.Context, rawTx []byte) (string, error)
	GetTipHeight(ctx context.Context) (uint32, error)
}
