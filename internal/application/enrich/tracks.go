package enrich

import (
	"context"
	"log/slog"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
)

// TrackPages processes one page of an album's track listing: upserts the
// tracks, enqueues a producer-discovery batch per stored track, and chains
// the next page while the listing has one.
type TrackPages struct {
	spotify SpotifyAPI
	repo    Repository
	batches Enqueuer
}

// NewTrackPages creates the handler.
func NewTrackPages(api SpotifyAPI, repo Repository, batches Enqueuer) *TrackPages {
	return &TrackPages{spotify: api, repo: repo, batches: batches}
}

func (h *TrackPages) Handle(ctx context.Context, metadata domain.Metadata) (queue.Result, error) {
	var m domain.TrackPageMetadata
	if err := domain.DecodeMetadata(metadata, &m); err != nil {
		return queue.Result{}, queue.Permanent(err)
	}
	if m.AlbumID == "" {
		return queue.Result{}, queue.Permanent(domain.ErrInvalidRequest)
	}
	if m.Limit <= 0 {
		m.Limit = pageSize
	}

	// The album row must exist before its tracks. A missing album means the
	// batch arrived out of order or the album was rejected, which no retry
	// fixes; any other lookup failure keeps its retry budget.
	artistName, err := h.repo.AlbumArtistName(ctx, m.AlbumID)
	if err != nil {
		return queue.Result{}, classify(err)
	}

	page, err := h.spotify.AlbumTracks(ctx, m.AlbumID, m.Offset, m.Limit)
	if err != nil {
		return queue.Result{}, classify(err)
	}

	result := queue.Result{ItemsTotal: len(page.Items)}
	var firstErr error
	for _, tr := range page.Items {
		trackID, err := h.repo.UpsertTrack(ctx, m.AlbumID, domain.Track{
			SpotifyID:   tr.ID,
			Title:       tr.Name,
			DiscNumber:  tr.DiscNumber,
			TrackNumber: tr.TrackNumber,
			DurationMS:  tr.DurationMS,
		})
		if err != nil {
			result.ItemsFailed++
			if firstErr == nil {
				firstErr = err
			}
			slog.ErrorContext(ctx, "failed to upsert track",
				"album_id", m.AlbumID,
				"spotify_id", tr.ID,
				"error", err)
			continue
		}
		if err := enqueue(ctx, h.batches, domain.TypeProducerDiscovery, domain.ProducerDiscoveryMetadata{
			TrackID: trackID,
			Title:   tr.Name,
			Artist:  artistName,
		}); err != nil {
			result.ItemsFailed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.ItemsProcessed++
	}

	if firstErr != nil && result.ItemsProcessed == 0 {
		return result, classify(firstErr)
	}

	if page.HasNext {
		if err := enqueue(ctx, h.batches, domain.TypeTrackPage, domain.TrackPageMetadata{
			AlbumID: m.AlbumID,
			Offset:  m.Offset + m.Limit,
			Limit:   m.Limit,
		}); err != nil {
			return result, classify(err)
		}
	}
	return result, nil
}
