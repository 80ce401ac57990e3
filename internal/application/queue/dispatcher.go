package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/melodex/melodex/internal/domain"
)

// DefaultMaxConcurrentJobs bounds how many batches one worker tick dispatches.
const DefaultMaxConcurrentJobs = 3

// DispatcherConfig tunes one worker's tick behavior.
type DispatcherConfig struct {
	WorkerID          string      // unique worker identity stamped on claims
	MaxConcurrentJobs int         // per-tick dispatch bound (default: 3)
	RetryPolicy       RetryPolicy // per-type retry limits
}

// TickResult is the per-tick summary returned to the invocation surface.
type TickResult struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Dispatcher is one stateless worker. Each tick it leases pending batches,
// runs their handlers concurrently, and applies the completion/retry/DLQ
// policy. Workers hold no state between ticks; everything durable lives in
// the store.
type Dispatcher struct {
	store    Store
	registry *Registry
	cfg      DispatcherConfig
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. Zero config fields get defaults.
func NewDispatcher(store Store, registry *Registry, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.RetryPolicy.defaultLimit == 0 {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunTickOnce executes one worker tick.
//
// The processing-count read and the claim are two statements, so under heavy
// concurrency the in-flight total can briefly exceed the bound. The claim
// itself is atomic; the bound is a best-effort throttle, not a hard cap.
func (d *Dispatcher) RunTickOnce(ctx context.Context) (TickResult, error) {
	processing, err := d.store.CountProcessing(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to count processing batches: %w", err)
	}

	if processing >= d.cfg.MaxConcurrentJobs {
		slog.InfoContext(ctx, "max_concurrent_jobs_reached",
			"processing", processing,
			"max_concurrent_jobs", d.cfg.MaxConcurrentJobs)
		return TickResult{}, nil
	}

	want := d.cfg.MaxConcurrentJobs - processing
	batches, err := d.store.Claim(ctx, want, d.cfg.WorkerID)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to claim batches: %w", err)
	}
	if len(batches) == 0 {
		return TickResult{}, nil
	}

	// All-settle barrier: every dispatch reports back, one failure never
	// cancels its siblings.
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
		failed    int
	)
	for _, batch := range batches {
		wg.Add(1)
		go func(b *domain.Batch) {
			defer wg.Done()
			ok := d.dispatch(ctx, b)
			mu.Lock()
			if ok {
				completed++
			} else {
				failed++
			}
			mu.Unlock()
		}(batch)
	}
	wg.Wait()

	result := TickResult{Claimed: len(batches), Completed: completed, Failed: failed}
	slog.InfoContext(ctx, "worker tick finished",
		"worker_id", d.cfg.WorkerID,
		"claimed", result.Claimed,
		"completed", result.Completed,
		"failed", result.Failed)
	return result, nil
}

// dispatch runs one claimed batch end to end. Returns true on completion,
// false when the batch was retried or parked. A batch whose type has no
// registered handler is parked on first sight without burning retries: no
// retry can make a handler appear, and the dead-letter row is what surfaces
// the misconfiguration to operators.
func (d *Dispatcher) dispatch(ctx context.Context, batch *domain.Batch) bool {
	start := d.now()

	handler, ok := d.registry.Resolve(batch.Type)
	if !ok {
		d.handleFailure(ctx, batch, Permanent(fmt.Errorf("no handler registered for batch type %q", batch.Type)))
		return false
	}

	result, err := d.invokeWithRecovery(ctx, handler, batch)
	if err != nil {
		d.handleFailure(ctx, batch, err)
		return false
	}

	if result.ItemsTotal == 0 {
		result.ItemsTotal = 1
	}
	if result.ItemsProcessed == 0 {
		result.ItemsProcessed = result.ItemsTotal - result.ItemsFailed
	}

	if err := d.store.CompleteBatch(ctx, batch.ID, result.ItemsProcessed, result.ItemsTotal, result.ItemsFailed); err != nil {
		// The handler's side effects are committed and idempotent; a lost
		// status update only means the batch replays after lease recovery.
		slog.ErrorContext(ctx, "failed to mark batch completed",
			"batch_id", batch.ID,
			"batch_type", batch.Type,
			"error", err)
		return false
	}

	slog.InfoContext(ctx, "batch_completed",
		"batch_id", batch.ID,
		"batch_type", batch.Type,
		"items_processed", result.ItemsProcessed,
		"latency_ms", d.now().Sub(start).Milliseconds())
	return true
}

// invokeWithRecovery converts a handler panic into a PanicError so one bad
// batch cannot take down the whole tick.
func (d *Dispatcher) invokeWithRecovery(ctx context.Context, handler Handler, batch *domain.Batch) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return handler.Handle(ctx, batch.Metadata)
}

// handleFailure applies the retry policy: permanent failures and panics park
// immediately; everything else goes back to pending with exponential backoff
// until the per-type limit is reached. Store failures inside this path are
// logged and swallowed so the tick's other batches still settle; the expired
// lease is the backstop.
func (d *Dispatcher) handleFailure(ctx context.Context, batch *domain.Batch, cause error) {
	next := batch.RetryCount + 1
	limit := d.cfg.RetryPolicy.Limit(batch.Type)

	if IsPanic(cause) {
		slog.ErrorContext(ctx, "batch handler panicked",
			"batch_id", batch.ID,
			"batch_type", batch.Type,
			"panic_value", cause.(PanicError).Value,
			"stack_trace", cause.(PanicError).StackTrace)
	}

	terminal := IsPermanent(cause) || IsPanic(cause) || next >= limit

	if !terminal {
		visibleAt := d.now().Add(Backoff(next))
		if err := d.store.RetryBatch(ctx, batch.ID, next, cause.Error(), visibleAt); err != nil {
			slog.ErrorContext(ctx, "failed to schedule batch retry",
				"batch_id", batch.ID,
				"retry_count", next,
				"error", err)
			return
		}
		slog.WarnContext(ctx, "batch scheduled for retry",
			"batch_id", batch.ID,
			"batch_type", batch.Type,
			"retry_count", next,
			"backoff_ms", Backoff(next).Milliseconds(),
			"error", cause.Error())
		return
	}

	if err := d.store.FailBatch(ctx, batch, next, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to park batch in dead letter queue",
			"batch_id", batch.ID,
			"batch_type", batch.Type,
			"error", err)
		return
	}
	slog.ErrorContext(ctx, "batch parked in dead letter queue",
		"batch_id", batch.ID,
		"batch_type", batch.Type,
		"retry_count", next,
		"permanent", IsPermanent(cause),
		"error", cause.Error())
}
