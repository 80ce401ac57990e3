package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodex/melodex/internal/domain"
)

type mockStore struct {
	getRateLimit   func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error)
	trackRateLimit func(ctx context.Context, rl domain.RateLimit) error
}

func (m *mockStore) GetRateLimit(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
	if m.getRateLimit != nil {
		return m.getRateLimit(ctx, api, endpoint)
	}
	return nil, nil
}

func (m *mockStore) TrackRateLimit(ctx context.Context, rl domain.RateLimit) error {
	if m.trackRateLimit != nil {
		return m.trackRateLimit(ctx, rl)
	}
	return nil
}

func testGate(store Store, now time.Time) (*Gate, *[]time.Duration) {
	g := NewGate(store)
	g.now = func() time.Time { return now }
	var slept []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func TestGate_UntrackedPairProceedsWithoutWaiting(t *testing.T) {
	g, slept := testGate(&mockStore{}, time.Now().UTC())

	ok, err := g.Check(context.Background(), "spotify", "/search")
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Empty(t, *slept)
}

func TestGate_RemainingBudgetProceeds(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return &domain.RateLimit{RequestsRemaining: 5, RequestsLimit: 100, ResetAt: now.Add(time.Minute)}, nil
		},
	}
	g, slept := testGate(store, now)

	ok, err := g.Check(context.Background(), "spotify", "/search")
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Empty(t, *slept)
}

func TestGate_ExhaustedWindowWaitsUntilReset(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return &domain.RateLimit{RequestsRemaining: 0, RequestsLimit: 100, ResetAt: now.Add(30 * time.Second)}, nil
		},
	}
	g, slept := testGate(store, now)

	ok, err := g.Check(context.Background(), "genius", "/search")
	require.NoError(t, err)

	assert.True(t, ok)
	require.Len(t, *slept, 1)
	assert.Equal(t, 30*time.Second, (*slept)[0])
}

func TestGate_WaitIsCapped(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return &domain.RateLimit{RequestsRemaining: 0, RequestsLimit: 100, ResetAt: now.Add(time.Hour)}, nil
		},
	}
	g, slept := testGate(store, now)

	ok, err := g.Check(context.Background(), "discogs", "/database/search")
	require.NoError(t, err)

	assert.True(t, ok)
	require.Len(t, *slept, 1)
	assert.Equal(t, DefaultMaxWait, (*slept)[0])
}

func TestGate_PastResetProceedsImmediately(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return &domain.RateLimit{RequestsRemaining: 0, RequestsLimit: 100, ResetAt: now.Add(-time.Minute)}, nil
		},
	}
	g, slept := testGate(store, now)

	ok, err := g.Check(context.Background(), "spotify", "/search")
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Empty(t, *slept)
}

func TestGate_CancelledWaitSurfacesError(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return &domain.RateLimit{RequestsRemaining: 0, RequestsLimit: 100, ResetAt: now.Add(time.Minute)}, nil
		},
	}
	g := NewGate(store)
	g.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := g.Check(ctx, "spotify", "/search")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_UpdatePersistsObservedHeaders(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	resetAt := now.Add(45 * time.Second)

	var tracked domain.RateLimit
	store := &mockStore{
		trackRateLimit: func(ctx context.Context, rl domain.RateLimit) error {
			tracked = rl
			return nil
		},
	}
	g, _ := testGate(store, now)

	require.NoError(t, g.Update(context.Background(), "spotify", "/search", 42, 180, resetAt, 200))

	assert.Equal(t, domain.RateLimit{
		APIName:           "spotify",
		Endpoint:          "/search",
		RequestsRemaining: 42,
		RequestsLimit:     180,
		ResetAt:           resetAt,
		LastResponse:      200,
		UpdatedAt:         now,
	}, tracked)
}

func TestGate_StoreFailurePropagates(t *testing.T) {
	store := &mockStore{
		getRateLimit: func(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
			return nil, errors.New("connection refused")
		},
	}
	g, _ := testGate(store, time.Now().UTC())

	ok, err := g.Check(context.Background(), "spotify", "/search")
	assert.False(t, ok)
	assert.Error(t, err)
}
