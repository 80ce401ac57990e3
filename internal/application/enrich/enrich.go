// Package enrich implements the batch handlers that walk the Spotify catalog
// and attach producer credits from Genius and Discogs. Each handler processes
// one claimed batch and fans out follow-up batches through the queue.
package enrich

import (
	"context"
	"errors"
	"log/slog"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
	"github.com/melodex/melodex/internal/upstream"
)

// Repository is the catalog persistence surface the handlers write through.
// Every write is an upsert on a natural key so replayed batches are harmless.
type Repository interface {
	// UpsertArtist inserts or refreshes an artist and returns its row id.
	UpsertArtist(ctx context.Context, artist domain.Artist) (string, error)

	// UpsertAlbum inserts or refreshes an album under the artist identified by
	// its Spotify id and returns the album row id.
	UpsertAlbum(ctx context.Context, artistSpotifyID string, album domain.Album) (string, error)

	// UpsertTrack inserts or refreshes a track under the album identified by
	// its Spotify id and returns the track row id.
	UpsertTrack(ctx context.Context, albumSpotifyID string, track domain.Track) (string, error)

	// AlbumArtistName returns the name of the artist owning the album
	// identified by its Spotify id.
	AlbumArtistName(ctx context.Context, albumSpotifyID string) (string, error)

	// UpsertProducer inserts or refreshes a producer keyed by normalized name
	// and returns its row id.
	UpsertProducer(ctx context.Context, producer domain.Producer) (string, error)

	// LinkTrackProducer records a producer credit on a track. Duplicate links
	// are ignored.
	LinkTrackProducer(ctx context.Context, trackID, producerID, source string) error
}

// Enqueuer inserts follow-up batches. Satisfied by the queue store.
type Enqueuer interface {
	InsertBatch(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error)
}

// classify maps an upstream or persistence failure onto the dispatcher's
// retry semantics: 429/5xx and transport errors retry, other 4xx and
// missing-parent catalog rows park.
func classify(err error) error {
	if queue.IsRetryable(err) || queue.IsPermanent(err) {
		return err // already classified
	}
	if errors.Is(err, domain.ErrArtistNotFound) || errors.Is(err, domain.ErrAlbumNotFound) {
		return queue.Permanent(err)
	}
	var se *upstream.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return queue.Permanent(err)
	}
	return queue.Transient(err)
}

// enqueue encodes a typed metadata record and inserts a follow-up batch.
// An already-queued duplicate is not an error: the active-batch unique index
// is what makes page fan-out idempotent across retries.
func enqueue(ctx context.Context, batches Enqueuer, batchType string, v any) error {
	md, err := domain.EncodeMetadata(v)
	if err != nil {
		return queue.Permanent(err)
	}
	if _, err := batches.InsertBatch(ctx, batchType, md); err != nil {
		if errors.Is(err, domain.ErrDuplicateBatch) {
			slog.DebugContext(ctx, "follow-up batch already queued", "batch_type", batchType)
			return nil
		}
		return queue.Transient(err)
	}
	return nil
}
