package page

import (
	"context"
	"time"
)

const pollInterval = 100 * time.Millisecond

// poll calls try until it reports done, the wait elapses or ctx ends.
// The last error from try is returned on timeout. try always runs at
// least once, so a zero wait means a single immediate attempt.
func poll(ctx context.Context, wait time.Duration, try func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		done, err := try(ctx)
		if done {
			return err
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			if err == nil {
				err = ErrNotFound
			}
			return err
		}

		timer := time.NewTimer(min(pollInterval, time.Until(deadline)))
		select {
		case <-ctx.Done():
			timer.Stop()
			if err == nil {
				err = ErrNotFound
			}
			return err
		case <-timer.C:
		}
	}
}
