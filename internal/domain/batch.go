package domain

import (
	"time"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchError      BatchStatus = "error"
)

// Known batch types. The registry also resolves unknown types by name so
// operators can add handlers without touching the dispatcher.
const (
	TypeDiscoverArtists   = "discover-artists"
	TypeAlbumPage         = "album_page"
	TypeAlbumDiscovery    = "album_discovery"
	TypeTrackPage         = "track_page"
	TypeTrackDiscovery    = "track_discovery"
	TypeProducerDiscovery = "producer_discovery"
	TypeIdentifyProducers = "identify-producers"
)

// DefaultPriority is reserved for future use; claiming orders by
// (retry_count, created_at) and ignores it.
const DefaultPriority = 5

// Batch is a single unit of deferred work.
//
// Invariants:
//   - processing => ClaimedBy and ClaimExpiresAt set
//   - completed  => CompletedAt set, terminal (cleanup may delete after retention)
//   - error      => CompletedAt set, a DeadLetterItem exists for it
//   - at most one pending/processing row per (Type, MetadataHash)
type Batch struct {
	ID             string
	Type           string
	Status         BatchStatus
	Priority       int
	RetryCount     int
	ItemsTotal     int
	ItemsProcessed int
	ItemsFailed    int
	ClaimedBy      *string
	ClaimExpiresAt *time.Time
	NextVisibleAt  time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
	Metadata       Metadata
	MetadataHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QueueDepth is a per-type status breakdown used by the monitor.
type QueueDepth struct {
	BatchType    string
	Pending      int
	Processing   int
	Completed    int
	Failed       int
	PendingOver1h int
}
