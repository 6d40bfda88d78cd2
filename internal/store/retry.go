package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// retryPolicy bounds retries of Postgres operations that fail transiently.
type retryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var defaultRetryPolicy = retryPolicy{
	Attempts:       3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// isTransient reports whether a Postgres error is worth another attempt:
// connection exceptions (SQLSTATE class 08), serialization failures,
// deadlocks, a server still starting up, or a failure pgconn marks safe to
// retry because nothing reached the server.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P03":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return pgconn.SafeToRetry(err)
}

// withRetry runs fn until it succeeds, fails permanently, or the attempts
// run out. Backoff doubles from InitialBackoff with +/-25% jitter, capped
// at MaxBackoff. Cancelling ctx stops further attempts.
func withRetry(ctx context.Context, p retryPolicy, op string, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) || attempt == p.Attempts {
			return err
		}

		zap.L().Warn("postgres: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(p, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func backoff(p retryPolicy, attempt int) time.Duration {
	d := p.InitialBackoff << (attempt - 1)
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		d = p.MaxBackoff
	}
	jitter := (rand.Float64()*0.5 - 0.25) * float64(d)
	return d + time.Duration(jitter)
}
