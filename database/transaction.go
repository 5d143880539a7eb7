package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RetryPolicy controls how Write retries transactions that failed because
// the database was busy.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy suits sqlite with busy_timeout and immediate locking.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// delay is exponential in attempt with up to 20% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d + time.Duration(rand.Float64()*0.2*float64(d))
}

// Write runs fn in a transaction, retrying busy and locked failures with
// backoff. Other errors roll back and return immediately.
func Write(ctx context.Context, logger *slog.Logger, db *gorm.DB, policy RetryPolicy, fn func(tx *gorm.DB) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := policy.delay(attempt - 1)
			logger.Info("retrying transaction",
				slog.Int("attempt", attempt),
				slog.Duration("delay", wait),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsBusy(err) {
			return err
		}
	}
	return fmt.Errorf("database: transaction failed after %d attempts: %w", policy.MaxAttempts, err)
}

// IsBusy reports whether err is a sqlite busy or locked error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQL statements in progress")
}
