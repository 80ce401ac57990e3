package queue

import (
	"context"
	"time"

	"github.com/melodex/melodex/internal/domain"
)

// Store is the engine's view of durable queue state. All methods are safe for
// concurrent use by multiple workers; claiming is atomic so two workers never
// lease the same batch.
type Store interface {
	// InsertBatch creates a pending batch, deduplicating on the metadata
	// idempotency hash: if an active (pending or processing) batch with the
	// same type and hash exists, it is returned unchanged and no row is
	// created.
	InsertBatch(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error)

	// Claim leases up to limit pending batches for workerID. Selection skips
	// row-locked candidates, orders by (retry_count, created_at), and honors
	// next_visible_at so retry backoff is respected. Claimed rows move to
	// processing with a 5 minute lease.
	Claim(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error)

	// CountProcessing returns the number of batches currently processing.
	CountProcessing(ctx context.Context) (int, error)

	// CompleteBatch marks a batch completed with item counters.
	CompleteBatch(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error

	// RetryBatch returns a failed batch to pending with an incremented retry
	// count; the batch is invisible to Claim until nextVisibleAt.
	RetryBatch(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error

	// FailBatch terminally fails a batch, then inserts its dead-letter
	// sibling. A failed sibling insert is logged, not returned: the batch
	// stays in error either way.
	FailBatch(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error

	// ResetExpired recovers leases stranded past the expiry horizon: rows in
	// processing whose claim expired more than expiry ago go back to pending
	// with claim fields cleared and an annotation appended to error_message.
	// Returns the number of rows reset.
	ResetExpired(ctx context.Context, expiry time.Duration) (int, error)

	// RequeueDeadLetters pulls up to limit dead-letter items still under the
	// requeue cap, inserts fresh pending batches for them, and increments
	// each item's requeue counter. The dead-letter rows are kept.
	RequeueDeadLetters(ctx context.Context, limit int) (int, error)

	// CleanupCompleted deletes completed batches older than the retention.
	CleanupCompleted(ctx context.Context, retention time.Duration) (int, error)

	// PurgeDeadLetters deletes dead-letter rows that exhausted their requeue
	// budget and are older than the retention.
	PurgeDeadLetters(ctx context.Context, retention time.Duration) (int, error)

	// QueueDepths returns per-type status counts, including a pending-over-1h
	// bucket.
	QueueDepths(ctx context.Context) ([]domain.QueueDepth, error)

	// CountDeadLettersSince counts dead-letter rows created after since.
	CountDeadLettersSince(ctx context.Context, since time.Time) (int, error)

	// CountErrorBatchesSince counts error batches updated after since.
	CountErrorBatchesSince(ctx context.Context, since time.Time) (int, error)

	// CountStalled counts processing batches started more than age ago.
	CountStalled(ctx context.Context, age time.Duration) (int, error)

	// ListRateLimits returns the tracked rate-limit rows.
	ListRateLimits(ctx context.Context) ([]domain.RateLimit, error)
}
