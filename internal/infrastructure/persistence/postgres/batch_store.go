package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/melodex/melodex/internal/domain"
)

const batchColumns = `id, batch_type, status, priority, retry_count,
	items_total, items_processed, items_failed,
	claimed_by, claim_expires_at, next_visible_at,
	started_at, completed_at, error_message,
	metadata, metadata_hash, created_at, updated_at`

// LeaseDuration is how long a claim holds a batch before it becomes
// reclaimable. Lease recovery uses a longer horizon (30 minutes) so slow
// handlers get a cushion before reclamation.
const LeaseDuration = 5 * time.Minute

func scanBatch(row pgx.Row) (*domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.ID, &b.Type, &b.Status, &b.Priority, &b.RetryCount,
		&b.ItemsTotal, &b.ItemsProcessed, &b.ItemsFailed,
		&b.ClaimedBy, &b.ClaimExpiresAt, &b.NextVisibleAt,
		&b.StartedAt, &b.CompletedAt, &b.ErrorMessage,
		&b.Metadata, &b.MetadataHash, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBatch creates a pending batch, deduplicating on the active
// (batch_type, metadata_hash) pair. When an active duplicate exists the
// existing batch is returned and no row is created.
func (s *Store) InsertBatch(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error) {
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	hash, err := domain.HashMetadata(metadata)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch ID: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO batches (id, batch_type, status, priority, metadata, metadata_hash)
		VALUES ($1, $2, 'pending', $3, $4, $5)
		ON CONFLICT (batch_type, metadata_hash) WHERE status IN ('pending', 'processing')
		DO NOTHING
		RETURNING `+batchColumns,
		id.String(), batchType, domain.DefaultPriority, metadata, hash)

	batch, err := scanBatch(row)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	// Conflict path: return the active duplicate.
	row = s.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE batch_type = $1 AND metadata_hash = $2
		  AND status IN ('pending', 'processing')
		LIMIT 1`, batchType, hash)
	batch, err = scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDuplicateBatch
		}
		return nil, fmt.Errorf("failed to load duplicate batch: %w", err)
	}
	return batch, nil
}

// Claim leases up to limit pending batches for workerID using
// FOR UPDATE SKIP LOCKED, so concurrent workers never block each other or
// lease the same row.
func (s *Store) Claim(ctx context.Context, limit int, workerID string) ([]*domain.Batch, error) {
	rows, err := s.pool.Query(ctx, `
		WITH candidates AS (
			SELECT id
			FROM batches
			WHERE status = 'pending'
			  AND (claim_expires_at IS NULL OR claim_expires_at < now())
			  AND next_visible_at <= now()
			ORDER BY retry_count ASC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE batches b
		SET status = 'processing',
		    claimed_by = $2,
		    claim_expires_at = now() + make_interval(secs => $3),
		    started_at = COALESCE(b.started_at, now()),
		    updated_at = now()
		FROM candidates c
		WHERE b.id = c.id
		RETURNING b.id, b.batch_type, b.status, b.priority, b.retry_count,
		          b.items_total, b.items_processed, b.items_failed,
		          b.claimed_by, b.claim_expires_at, b.next_visible_at,
		          b.started_at, b.completed_at, b.error_message,
		          b.metadata, b.metadata_hash, b.created_at, b.updated_at`,
		limit, workerID, LeaseDuration.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to claim batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed batches: %w", err)
	}
	return batches, nil
}

// CountProcessing returns the number of batches currently processing.
func (s *Store) CountProcessing(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM batches WHERE status = 'processing'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processing batches: %w", err)
	}
	return count, nil
}

// CompleteBatch marks a batch completed with its item counters.
func (s *Store) CompleteBatch(ctx context.Context, id string, itemsProcessed, itemsTotal, itemsFailed int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'completed',
		    completed_at = now(),
		    items_processed = $2,
		    items_total = $3,
		    items_failed = $4,
		    error_message = '',
		    updated_at = now()
		WHERE id = $1`, id, itemsProcessed, itemsTotal, itemsFailed)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// RetryBatch returns a batch to pending with an incremented retry count.
// The claim predicate filters on next_visible_at, so the backoff encoded
// here is honored instead of the batch being reclaimable immediately.
func (s *Store) RetryBatch(ctx context.Context, id string, retryCount int, errMsg string, nextVisibleAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'pending',
		    retry_count = $2,
		    error_message = $3,
		    next_visible_at = $4,
		    claimed_by = NULL,
		    claim_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1`, id, retryCount, errMsg, nextVisibleAt)
	if err != nil {
		return fmt.Errorf("failed to schedule batch retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// FailBatch terminally fails a batch, then parks its dead-letter sibling.
// The two writes are deliberately separate: if the dead-letter insert fails
// the batch stays in error without a sibling, and that is logged rather than
// surfaced, so the dispatcher's tick still settles.
func (s *Store) FailBatch(ctx context.Context, batch *domain.Batch, retryCount int, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'error',
		    retry_count = $2,
		    error_message = $3,
		    completed_at = now(),
		    updated_at = now()
		WHERE id = $1`, batch.ID, retryCount, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark batch as error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBatchNotFound
	}

	dlID, err := uuid.NewV7()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate dead letter ID",
			"batch_id", batch.ID, "error", err)
		return nil
	}
	metadata := batch.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO dead_letter_items (id, item_type, error_message, original_batch_id, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		dlID.String(), batch.Type, errMsg, batch.ID, metadata)
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert dead letter item for error batch",
			"batch_id", batch.ID,
			"batch_type", batch.Type,
			"error", err)
	}
	return nil
}

// ResetExpired recovers leases stranded past the expiry horizon.
func (s *Store) ResetExpired(ctx context.Context, expiry time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'pending',
		    claimed_by = NULL,
		    claim_expires_at = NULL,
		    next_visible_at = now(),
		    error_message = trim(error_message || ' Batch expired and was reset.'),
		    updated_at = now()
		WHERE status = 'processing'
		  AND claim_expires_at < now() - make_interval(secs => $1)`,
		expiry.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reset expired batches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RequeueDeadLetters pulls dead-letter items still under the requeue cap in
// created_at order, inserts fresh pending batches for them, and increments
// each row's counter. Rows whose payload already has an active batch are
// skipped without burning a requeue.
func (s *Store) RequeueDeadLetters(ctx context.Context, limit int) (int, error) {
	requeued := 0
	err := s.withTx(ctx, "requeue_dead_letters", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, item_type, metadata, retry_count
			FROM dead_letter_items
			WHERE retry_count < $1
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			domain.MaxDeadLetterRequeues, limit)
		if err != nil {
			return fmt.Errorf("failed to select requeue candidates: %w", err)
		}

		type candidate struct {
			id         string
			itemType   string
			metadata   domain.Metadata
			retryCount int
		}
		var candidates []candidate
		for rows.Next() {
			var c candidate
			if err := rows.Scan(&c.id, &c.itemType, &c.metadata, &c.retryCount); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan requeue candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read requeue candidates: %w", err)
		}

		for _, c := range candidates {
			hash, err := domain.HashMetadata(c.metadata)
			if err != nil {
				return err
			}
			batchID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate batch ID: %w", err)
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO batches (id, batch_type, status, priority, retry_count, metadata, metadata_hash)
				VALUES ($1, $2, 'pending', $3, $4, $5, $6)
				ON CONFLICT (batch_type, metadata_hash) WHERE status IN ('pending', 'processing')
				DO NOTHING`,
				batchID.String(), c.itemType, domain.DefaultPriority, c.retryCount+1, c.metadata, hash)
			if err != nil {
				return fmt.Errorf("failed to insert requeued batch: %w", err)
			}
			if tag.RowsAffected() == 0 {
				continue // active duplicate already queued
			}
			if _, err := tx.Exec(ctx, `
				UPDATE dead_letter_items
				SET retry_count = retry_count + 1, updated_at = now()
				WHERE id = $1`, c.id); err != nil {
				return fmt.Errorf("failed to increment dead letter retry count: %w", err)
			}
			requeued++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// CleanupCompleted deletes completed batches older than the retention.
func (s *Store) CleanupCompleted(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM batches
		WHERE status = 'completed'
		  AND completed_at < now() - make_interval(secs => $1)`,
		retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up completed batches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PurgeDeadLetters deletes dead-letter rows that exhausted their requeue
// budget and are older than the retention.
func (s *Store) PurgeDeadLetters(ctx context.Context, retention time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM dead_letter_items
		WHERE retry_count >= $1
		  AND created_at < now() - make_interval(secs => $2)`,
		domain.MaxDeadLetterRequeues, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to purge dead letter items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// QueueDepths returns per-type status counts, including a pending-over-1h
// bucket.
func (s *Store) QueueDepths(ctx context.Context) ([]domain.QueueDepth, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_type,
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COUNT(*) FILTER (WHERE status = 'pending' AND created_at < now() - interval '1 hour')
		FROM batches
		GROUP BY batch_type
		ORDER BY batch_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depths: %w", err)
	}
	defer rows.Close()

	var depths []domain.QueueDepth
	for rows.Next() {
		var d domain.QueueDepth
		if err := rows.Scan(&d.BatchType, &d.Pending, &d.Processing, &d.Completed, &d.Failed, &d.PendingOver1h); err != nil {
			return nil, fmt.Errorf("failed to scan queue depth: %w", err)
		}
		depths = append(depths, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue depths: %w", err)
	}
	return depths, nil
}

// CountDeadLettersSince counts dead-letter rows created after since.
func (s *Store) CountDeadLettersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dead_letter_items WHERE created_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letter items: %w", err)
	}
	return count, nil
}

// CountErrorBatchesSince counts error batches updated after since.
func (s *Store) CountErrorBatchesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM batches WHERE status = 'error' AND updated_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count error batches: %w", err)
	}
	return count, nil
}

// CountStalled counts processing batches started more than age ago.
func (s *Store) CountStalled(ctx context.Context, age time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM batches
		WHERE status = 'processing'
		  AND started_at < now() - make_interval(secs => $1)`,
		age.Seconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stalled batches: %w", err)
	}
	return count, nil
}
