package enrich

import (
	"context"
	"log/slog"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
)

// AlbumPages processes one page of an artist's album listing: upserts the
// albums, enqueues a track-page batch per album, and chains the next page
// while the listing has one.
type AlbumPages struct {
	spotify SpotifyAPI
	repo    Repository
	batches Enqueuer
}

// NewAlbumPages creates the handler.
func NewAlbumPages(api SpotifyAPI, repo Repository, batches Enqueuer) *AlbumPages {
	return &AlbumPages{spotify: api, repo: repo, batches: batches}
}

func (h *AlbumPages) Handle(ctx context.Context, metadata domain.Metadata) (queue.Result, error) {
	var m domain.AlbumPageMetadata
	if err := domain.DecodeMetadata(metadata, &m); err != nil {
		return queue.Result{}, queue.Permanent(err)
	}
	if m.ArtistID == "" {
		return queue.Result{}, queue.Permanent(domain.ErrInvalidRequest)
	}
	if m.Limit <= 0 {
		m.Limit = pageSize
	}

	page, err := h.spotify.ArtistAlbums(ctx, m.ArtistID, m.Offset, m.Limit)
	if err != nil {
		return queue.Result{}, classify(err)
	}

	result := queue.Result{ItemsTotal: len(page.Items)}
	var firstErr error
	for _, al := range page.Items {
		if _, err := h.repo.UpsertAlbum(ctx, m.ArtistID, domain.Album{
			SpotifyID:   al.ID,
			Title:       al.Name,
			ReleaseDate: al.ReleaseDate,
			TotalTracks: al.TotalTracks,
		}); err != nil {
			result.ItemsFailed++
			if firstErr == nil {
				firstErr = err
			}
			slog.ErrorContext(ctx, "failed to upsert album",
				"artist_id", m.ArtistID,
				"spotify_id", al.ID,
				"error", err)
			continue
		}
		if err := enqueue(ctx, h.batches, domain.TypeTrackPage, domain.TrackPageMetadata{
			AlbumID: al.ID,
			Offset:  0,
			Limit:   pageSize,
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
		if err := enqueue(ctx, h.batches, domain.TypeAlbumPage, domain.AlbumPageMetadata{
			ArtistID: m.ArtistID,
			Offset:   m.Offset + m.Limit,
			Limit:    m.Limit,
		}); err != nil {
			// Losing the chain would silently truncate the listing, so the
			// whole page retries. Upserts and child batches are idempotent.
			return result, classify(err)
		}
	}
	return result, nil
}
