// Package ratelimit implements the cooperative per-(api, endpoint) token gate
// consulted before outbound calls and fed from observed response headers.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/melodex/melodex/internal/domain"
)

// DefaultMaxWait caps the blocking wait inside Check at one lease duration so
// a distant reset_at cannot outlive the worker's lease.
const DefaultMaxWait = 5 * time.Minute

// Store is the gate's view of durable rate-limit counters.
type Store interface {
	// GetRateLimit returns the tracked row for (api, endpoint), or nil when
	// the pair is untracked.
	GetRateLimit(ctx context.Context, api, endpoint string) (*domain.RateLimit, error)

	// TrackRateLimit upserts observed header values for (api, endpoint).
	TrackRateLimit(ctx context.Context, rl domain.RateLimit) error
}

// Gate is cooperative, not hard: two workers can both read remaining=1 and
// proceed. Upstream APIs return 429 themselves and the tracked headers
// converge, so the race is tolerated.
type Gate struct {
	store   Store
	maxWait time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewGate creates a gate with the default wait cap.
func NewGate(store Store) *Gate {
	return &Gate{
		store:   store,
		maxWait: DefaultMaxWait,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleepCtx,
	}
}

// Check consults the tracked counter for (api, endpoint) and returns true
// when the caller may proceed. An exhausted window blocks until reset_at
// (capped, cancellable); this is the only blocking operation in the engine
// below handler level.
func (g *Gate) Check(ctx context.Context, api, endpoint string) (bool, error) {
	rl, err := g.store.GetRateLimit(ctx, api, endpoint)
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit for %s %s: %w", api, endpoint, err)
	}
	if rl == nil {
		return true, nil // untracked pair
	}

	now := g.now()
	if rl.RequestsRemaining <= 0 && rl.ResetAt.After(now) {
		wait := rl.ResetAt.Sub(now)
		if wait > g.maxWait {
			wait = g.maxWait
		}
		slog.InfoContext(ctx, "rate limit exhausted, waiting for reset",
			"api", api,
			"endpoint", endpoint,
			"wait", wait,
			"reset_at", rl.ResetAt)
		if err := g.sleep(ctx, wait); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Update records observed header values after an outbound call.
func (g *Gate) Update(ctx context.Context, api, endpoint string, remaining, limit int, resetAt time.Time, lastStatus int) error {
	return g.store.TrackRateLimit(ctx, domain.RateLimit{
		APIName:           api,
		Endpoint:          endpoint,
		RequestsRemaining: remaining,
		RequestsLimit:     limit,
		ResetAt:           resetAt,
		LastResponse:      lastStatus,
		UpdatedAt:         g.now(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
