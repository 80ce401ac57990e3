package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
	"github.com/melodex/melodex/internal/upstream/spotify"
)

const (
	defaultSearchLimit = 20
	genreSeedCount     = 5
	genreSearchLimit   = 5
	seedQueryDelay     = 250 * time.Millisecond

	// Fan-out page size for album and track listings.
	pageSize = 50
)

// DiscoverArtists seeds the pipeline: it searches Spotify for artists (by
// explicit query, or across the top genre seeds when none is given), upserts
// them, and enqueues one album-page batch per artist.
type DiscoverArtists struct {
	spotify SpotifyAPI
	repo    Repository
	batches Enqueuer
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDiscoverArtists creates the handler.
func NewDiscoverArtists(api SpotifyAPI, repo Repository, batches Enqueuer) *DiscoverArtists {
	return &DiscoverArtists{
		spotify: api,
		repo:    repo,
		batches: batches,
		sleep:   sleepCtx,
	}
}

func (h *DiscoverArtists) Handle(ctx context.Context, metadata domain.Metadata) (queue.Result, error) {
	var m domain.DiscoverArtistsMetadata
	if err := domain.DecodeMetadata(metadata, &m); err != nil {
		return queue.Result{}, queue.Permanent(err)
	}

	artists, err := h.findArtists(ctx, m)
	if err != nil {
		return queue.Result{}, classify(err)
	}

	result := queue.Result{ItemsTotal: len(artists)}
	var firstErr error
	for _, a := range artists {
		if err := h.ingest(ctx, a); err != nil {
			result.ItemsFailed++
			if firstErr == nil {
				firstErr = err
			}
			slog.ErrorContext(ctx, "failed to ingest discovered artist",
				"spotify_id", a.ID,
				"artist", a.Name,
				"error", err)
			continue
		}
		result.ItemsProcessed++
	}

	// The batch fails only when nothing landed; partial pages complete with
	// the failure count recorded.
	if firstErr != nil && result.ItemsProcessed == 0 {
		return result, classify(firstErr)
	}
	return result, nil
}

func (h *DiscoverArtists) findArtists(ctx context.Context, m domain.DiscoverArtistsMetadata) ([]spotify.Artist, error) {
	if m.Query != "" {
		limit := m.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		return h.spotify.SearchArtists(ctx, m.Query, limit)
	}

	seeds, err := h.spotify.GenreSeeds(ctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) > genreSeedCount {
		seeds = seeds[:genreSeedCount]
	}

	seen := make(map[string]bool)
	var artists []spotify.Artist
	for i, genre := range seeds {
		if i > 0 {
			// Pace the burst of seed searches.
			if err := h.sleep(ctx, seedQueryDelay); err != nil {
				return nil, err
			}
		}
		found, err := h.spotify.SearchArtists(ctx, fmt.Sprintf("genre:%q", genre), genreSearchLimit)
		if err != nil {
			return nil, err
		}
		for _, a := range found {
			if !seen[a.ID] {
				seen[a.ID] = true
				artists = append(artists, a)
			}
		}
	}
	return artists, nil
}

func (h *DiscoverArtists) ingest(ctx context.Context, a spotify.Artist) error {
	if _, err := h.repo.UpsertArtist(ctx, domain.Artist{
		SpotifyID: a.ID,
		Name:      a.Name,
		Genres:    a.Genres,
	}); err != nil {
		return err
	}
	return enqueue(ctx, h.batches, domain.TypeAlbumPage, domain.AlbumPageMetadata{
		ArtistID: a.ID,
		Offset:   0,
		Limit:    pageSize,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
