// Package displayid hands out guest-facing ids of the form <yy><sequence>.
package displayid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/metrics"
)

const (
	DefaultWidth       = 3
	DefaultMaxAttempts = 5
)

var errConflict = errors.New("sequence advanced by a concurrent writer")

// SequenceStore is the durable per-year counter the allocator advances.
type SequenceStore interface {
	ReadMaxSequence(ctx context.Context, year int) (int, error)
	ProposeSequence(ctx context.Context, year, expectedMax, newMax int) (bool, error)
}

// Allocator issues display ids with read, propose, retry-on-conflict.
type Allocator struct {
	store       SequenceStore
	base        int
	maxAttempts int
	log         *zap.Logger
}

// New creates an allocator whose sequence part has width digits.
func New(store SequenceStore, width, maxAttempts int, log *zap.Logger) *Allocator {
	if width <= 0 {
		width = DefaultWidth
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := 1
	for i := 0; i < width; i++ {
		base *= 10
	}
	return &Allocator{store: store, base: base, maxAttempts: maxAttempts, log: log}
}

// Limit returns the highest sequence a year can hold.
func (a *Allocator) Limit() int { return a.base - 1 }

// Allocate returns the next display id for the two-digit year.
func (a *Allocator) Allocate(ctx context.Context, year int) (int, error) {
	if year < 0 || year > 99 {
		return 0, apperr.Validation("year", fmt.Sprintf("year %d is not two digits", year))
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		current, err := a.store.ReadMaxSequence(ctx, year)
		if err != nil {
			lastErr = err
			a.retrying(year, attempt, err)
			continue
		}

		next := current + 1
		if next > a.Limit() {
			return 0, apperr.Wrap(apperr.KindSequenceLimitExceeded, nil,
				fmt.Sprintf("display id sequence for year %02d is exhausted at %d", year, current))
		}

		ok, err := a.store.ProposeSequence(ctx, year, current, next)
		if err != nil {
			lastErr = err
			a.retrying(year, attempt, err)
			continue
		}
		if !ok {
			lastErr = errConflict
			a.retrying(year, attempt, errConflict)
			continue
		}

		metrics.RecordDisplayIDAllocated()
		return year*a.base + next, nil
	}

	metrics.RecordDisplayIDExhausted()
	a.log.Error("display id allocation gave up",
		zap.Int("year", year),
		zap.Int("attempts", a.maxAttempts),
		zap.Error(lastErr),
	)
	return 0, apperr.Wrap(apperr.KindDisplayIDGenerationFailed, lastErr,
		fmt.Sprintf("no display id for year %02d after %d attempts", year, a.maxAttempts))
}

func (a *Allocator) retrying(year, attempt int, err error) {
	metrics.RecordDisplayIDConflict()
	a.log.Debug("display id proposal failed, retrying",
		zap.Int("year", year),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
}

// YearOf returns the two-digit calendar year of t in loc.
func YearOf(t time.Time, loc *time.Location) int {
	return t.In(loc).Year() % 100
}
