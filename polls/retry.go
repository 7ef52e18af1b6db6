// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// inTx runs fn in one store transaction, retrying the whole transaction while
// the store reports itself unavailable.
func (s *Service) inTx(ctx context.Context, fn func(tx PollTx) error) error {
	return s.retry(ctx, func() error {
		return s.store.InTx(ctx, fn)
	})
}

// retry runs fn until it succeeds, fails with anything but
// ErrStoreUnavailable, or runs out of attempts.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		err = storeErr(err, ErrPollNotFound)
		if !errors.Is(err, ErrStoreUnavailable) {
			return backoff.Permanent(err)
		}
		if uint64(attempt) <= s.retries {
			slog.Warn("poll store unavailable, retrying", "attempt", attempt, "error", err)
			s.metrics.IncStoreRetries()
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, s.retries), ctx))
}
