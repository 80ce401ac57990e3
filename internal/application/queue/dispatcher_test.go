package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodex/melodex/internal/domain"
)

// mockStore implements Store with overridable func fields; unset methods
// return zero values.
type mockStore struct {
	insertBatch            func(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error)
	claim                  func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error)
	countProcessing        func(ctx context.Context) (int, error)
	completeBatch          func(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error
	retryBatch             func(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error
	failBatch              func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error
	resetExpired           func(ctx context.Context, expiry time.Duration) (int, error)
	requeueDeadLetters     func(ctx context.Context, limit int) (int, error)
	cleanupCompleted       func(ctx context.Context, retention time.Duration) (int, error)
	purgeDeadLetters       func(ctx context.Context, retention time.Duration) (int, error)
	queueDepths            func(ctx context.Context) ([]domain.QueueDepth, error)
	countDeadLettersSince  func(ctx context.Context, since time.Time) (int, error)
	countErrorBatchesSince func(ctx context.Context, since time.Time) (int, error)
	countStalled           func(ctx context.Context, age time.Duration) (int, error)
	listRateLimits         func(ctx context.Context) ([]domain.RateLimit, error)
}

func (m *mockStore) InsertBatch(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error) {
	if m.insertBatch != nil {
		return m.insertBatch(ctx, batchType, metadata)
	}
	return &domain.Batch{Type: batchType, Metadata: metadata}, nil
}

func (m *mockStore) Claim(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
	if m.claim != nil {
		return m.claim(ctx, limit, workerID)
	}
	return nil, nil
}

func (m *mockStore) CountProcessing(ctx context.Context) (int, error) {
	if m.countProcessing != nil {
		return m.countProcessing(ctx)
	}
	return 0, nil
}

func (m *mockStore) CompleteBatch(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error {
	if m.completeBatch != nil {
		return m.completeBatch(ctx, id, itemsProcessed, itemsTotal, itemsFailed)
	}
	return nil
}

func (m *mockStore) RetryBatch(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error {
	if m.retryBatch != nil {
		return m.retryBatch(ctx, id, retryCount, errMsg, nextVisibleAt)
	}
	return nil
}

func (m *mockStore) FailBatch(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
	if m.failBatch != nil {
		return m.failBatch(ctx, batch, retryCount, errMsg)
	}
	return nil
}

func (m *mockStore) ResetExpired(ctx context.Context, expiry time.Duration) (int, error) {
	if m.resetExpired != nil {
		return m.resetExpired(ctx, expiry)
	}
	return 0, nil
}

func (m *mockStore) RequeueDeadLetters(ctx context.Context, limit int) (int, error) {
	if m.requeueDeadLetters != nil {
		return m.requeueDeadLetters(ctx, limit)
	}
	return 0, nil
}

func (m *mockStore) CleanupCompleted(ctx context.Context, retention time.Duration) (int, error) {
	if m.cleanupCompleted != nil {
		return m.cleanupCompleted(ctx, retention)
	}
	return 0, nil
}

func (m *mockStore) PurgeDeadLetters(ctx context.Context, retention time.Duration) (int, error) {
	if m.purgeDeadLetters != nil {
		return m.purgeDeadLetters(ctx, retention)
	}
	return 0, nil
}

func (m *mockStore) QueueDepths(ctx context.Context) ([]domain.QueueDepth, error) {
	if m.queueDepths != nil {
		return m.queueDepths(ctx)
	}
	return nil, nil
}

func (m *mockStore) CountDeadLettersSince(ctx context.Context, since time.Time) (int, error) {
	if m.countDeadLettersSince != nil {
		return m.countDeadLettersSince(ctx, since)
	}
	return 0, nil
}

func (m *mockStore) CountErrorBatchesSince(ctx context.Context, since time.Time) (int, error) {
	if m.countErrorBatchesSince != nil {
		return m.countErrorBatchesSince(ctx, since)
	}
	return 0, nil
}

func (m *mockStore) CountStalled(ctx context.Context, age time.Duration) (int, error) {
	if m.countStalled != nil {
		return m.countStalled(ctx, age)
	}
	return 0, nil
}

func (m *mockStore) ListRateLimits(ctx context.Context) ([]domain.RateLimit, error) {
	if m.listRateLimits != nil {
		return m.listRateLimits(ctx)
	}
	return nil, nil
}

func staticHandler(result Result, err error) Handler {
	return HandlerFunc(func(ctx context.Context, metadata domain.Metadata) (Result, error) {
		return result, err
	})
}

func singleBatch(batchType string, retryCount int) []*domain.Batch {
	return []*domain.Batch{{
		ID:         "batch-1",
		Type:       batchType,
		Status:     domain.BatchProcessing,
		RetryCount: retryCount,
		Metadata:   domain.Metadata{},
	}}
}

func TestDispatcher_CompletesBatch(t *testing.T) {
	var gotID string
	var gotProcessed, gotTotal, gotFailed int
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeAlbumPage, 0), nil
		},
		completeBatch: func(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error {
			gotID, gotProcessed, gotTotal, gotFailed = id, itemsProcessed, itemsTotal, itemsFailed
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeAlbumPage, staticHandler(Result{ItemsProcessed: 2, ItemsTotal: 3, ItemsFailed: 1}, nil))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickResult{Claimed: 1, Completed: 1, Failed: 0}, result)
	assert.Equal(t, "batch-1", gotID)
	assert.Equal(t, 2, gotProcessed)
	assert.Equal(t, 3, gotTotal)
	assert.Equal(t, 1, gotFailed)
}

func TestDispatcher_DefaultsEmptyResultCounters(t *testing.T) {
	var gotProcessed, gotTotal int
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeProducerDiscovery, 0), nil
		},
		completeBatch: func(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error {
			gotProcessed, gotTotal = itemsProcessed, itemsTotal
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeProducerDiscovery, staticHandler(Result{}, nil))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	_, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, gotProcessed)
	assert.Equal(t, 1, gotTotal)
}

func TestDispatcher_SkipsClaimAtCapacity(t *testing.T) {
	claimed := false
	store := &mockStore{
		countProcessing: func(ctx context.Context) (int, error) { return DefaultMaxConcurrentJobs, nil },
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			claimed = true
			return nil, nil
		},
	}

	d := NewDispatcher(store, NewRegistry(), DispatcherConfig{WorkerID: "w1"})
	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, claimed, "claim must not run when the concurrency bound is reached")
	assert.Equal(t, TickResult{}, result)
}

func TestDispatcher_ClaimsOnlyRemainingCapacity(t *testing.T) {
	var gotLimit int
	store := &mockStore{
		countProcessing: func(ctx context.Context) (int, error) { return 1, nil },
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	d := NewDispatcher(store, NewRegistry(), DispatcherConfig{WorkerID: "w1"})
	_, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxConcurrentJobs-1, gotLimit)
}

func TestDispatcher_RetriesTransientFailureWithBackoff(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var gotRetryCount int
	var gotVisibleAt time.Time
	failed := false
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeAlbumPage, 0), nil
		},
		retryBatch: func(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error {
			gotRetryCount = retryCount
			gotVisibleAt = nextVisibleAt
			return nil
		},
		failBatch: func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
			failed = true
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeAlbumPage, staticHandler(Result{}, Transient(errors.New("spotify 503"))))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	d.now = func() time.Time { return now }

	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickResult{Claimed: 1, Completed: 0, Failed: 1}, result)
	assert.False(t, failed)
	assert.Equal(t, 1, gotRetryCount)
	assert.Equal(t, now.Add(500*time.Millisecond), gotVisibleAt)
}

func TestDispatcher_ParksAtRetryLimit(t *testing.T) {
	// producer_discovery allows 3 attempts; a batch already on retry 2 fails
	// terminally on the next error.
	var gotRetryCount int
	retried := false
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeProducerDiscovery, 2), nil
		},
		retryBatch: func(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error {
			retried = true
			return nil
		},
		failBatch: func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
			gotRetryCount = retryCount
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeProducerDiscovery, staticHandler(Result{}, Transient(errors.New("genius timeout"))))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	_, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, retried)
	assert.Equal(t, 3, gotRetryCount)
}

func TestDispatcher_ParksPermanentFailureImmediately(t *testing.T) {
	retried := false
	parked := false
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeAlbumPage, 0), nil
		},
		retryBatch: func(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error {
			retried = true
			return nil
		},
		failBatch: func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
			parked = true
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeAlbumPage, staticHandler(Result{}, Permanent(errors.New("artist not found"))))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	_, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, retried, "permanent failures must not burn retries")
	assert.True(t, parked)
}

func TestDispatcher_ParksPanickedHandler(t *testing.T) {
	var gotErrMsg string
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch(domain.TypeTrackPage, 0), nil
		},
		failBatch: func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
			gotErrMsg = errMsg
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeTrackPage, HandlerFunc(func(ctx context.Context, metadata domain.Metadata) (Result, error) {
		panic("nil deref in handler")
	}))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, gotErrMsg, "panic")
	assert.Contains(t, gotErrMsg, "nil deref in handler")
}

func TestDispatcher_ParksUnknownBatchType(t *testing.T) {
	parked := false
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return singleBatch("nonsense_type", 0), nil
		},
		failBatch: func(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
			parked = true
			return nil
		},
	}

	d := NewDispatcher(store, NewRegistry(), DispatcherConfig{WorkerID: "w1"})
	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, parked)
	assert.Equal(t, TickResult{Claimed: 1, Completed: 0, Failed: 1}, result)
}

func TestDispatcher_AllSettleAcrossMixedOutcomes(t *testing.T) {
	// One success and one failure in the same tick: both must settle, the
	// failure must not cancel the success.
	batches := []*domain.Batch{
		{ID: "good", Type: domain.TypeAlbumPage, Metadata: domain.Metadata{}},
		{ID: "bad", Type: domain.TypeProducerDiscovery, Metadata: domain.Metadata{}},
	}
	completed := make(map[string]bool)
	var mu sync.Mutex
	store := &mockStore{
		claim: func(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
			return batches, nil
		},
		completeBatch: func(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error {
			mu.Lock()
			completed[id] = true
			mu.Unlock()
			return nil
		},
	}
	registry := NewRegistry()
	registry.Register(domain.TypeAlbumPage, staticHandler(Result{ItemsTotal: 1}, nil))
	registry.Register(domain.TypeProducerDiscovery, staticHandler(Result{}, Permanent(errors.New("boom"))))

	d := NewDispatcher(store, registry, DispatcherConfig{WorkerID: "w1"})
	result, err := d.RunTickOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickResult{Claimed: 2, Completed: 1, Failed: 1}, result)
	assert.True(t, completed["good"])
	assert.False(t, completed["bad"])
}
