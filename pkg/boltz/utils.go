package boltz

import (
	"context"
	"errors"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
)

var ErrRetryTimeout = swaperr.ErrNetwork.New("timed out")

// Retry calls fn every interval until it reports done, fails or ctx
// expires.
func Retry(
	ctx context.Context, interval time.Duration, fn func(ctx context.Context) (bool, error),
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrRetryTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
