package domain

import "time"

// MaxDeadLetterRequeues caps how many times a parked item may be requeued.
// Items at or beyond the cap are never re-selected.
const MaxDeadLetterRequeues = 3

// DeadLetterItem is a parked failure. Created when a batch exhausts its
// retries or a handler reports a permanent failure. Requeuing creates a new
// pending batch and increments RetryCount; the row itself is never deleted by
// requeue.
type DeadLetterItem struct {
	ID              string
	ItemType        string // equals the original batch type
	ErrorMessage    string
	OriginalBatchID string
	OriginalItemID  string
	RetryCount      int // requeue counter, independent of the batch's
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
