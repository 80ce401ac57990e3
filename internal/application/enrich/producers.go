package enrich

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
)

// Sources recorded on track_producers rows.
const (
	SourceGenius  = "genius"
	SourceDiscogs = "discogs"
)

// credit is one producer name attributed by a source.
type credit struct {
	name      string
	source    string
	geniusID  string
	discogsID string
}

// ProducerCredits resolves the producers of one track. Genius is the primary
// source; when it yields nothing (or fails) the handler falls back to Discogs
// release credits. A track with no credits in either source completes empty.
type ProducerCredits struct {
	genius  GeniusAPI
	discogs DiscogsAPI
	repo    Repository
}

// NewProducerCredits creates the handler.
func NewProducerCredits(geniusAPI GeniusAPI, discogsAPI DiscogsAPI, repo Repository) *ProducerCredits {
	return &ProducerCredits{genius: geniusAPI, discogs: discogsAPI, repo: repo}
}

func (h *ProducerCredits) Handle(ctx context.Context, metadata domain.Metadata) (queue.Result, error) {
	var m domain.ProducerDiscoveryMetadata
	if err := domain.DecodeMetadata(metadata, &m); err != nil {
		return queue.Result{}, queue.Permanent(err)
	}
	if m.TrackID == "" || m.Title == "" {
		return queue.Result{}, queue.Permanent(domain.ErrInvalidRequest)
	}

	credits, geniusErr := h.fromGenius(ctx, m)
	if len(credits) == 0 {
		if geniusErr != nil {
			slog.WarnContext(ctx, "genius lookup failed, falling back to discogs",
				"track_id", m.TrackID,
				"title", m.Title,
				"error", geniusErr)
		}
		var discogsErr error
		credits, discogsErr = h.fromDiscogs(ctx, m)
		if discogsErr != nil {
			if geniusErr != nil {
				// Both sources down: retry the batch rather than recording a
				// false "no credits" result.
				return queue.Result{}, classify(geniusErr)
			}
			return queue.Result{}, classify(discogsErr)
		}
	}

	result := queue.Result{ItemsTotal: len(credits)}
	var firstErr error
	for _, c := range credits {
		if err := h.record(ctx, m.TrackID, c); err != nil {
			result.ItemsFailed++
			if firstErr == nil {
				firstErr = err
			}
			slog.ErrorContext(ctx, "failed to record producer credit",
				"track_id", m.TrackID,
				"producer", c.name,
				"error", err)
			continue
		}
		result.ItemsProcessed++
	}
	if firstErr != nil && result.ItemsProcessed == 0 {
		return result, classify(firstErr)
	}
	return result, nil
}

func (h *ProducerCredits) fromGenius(ctx context.Context, m domain.ProducerDiscoveryMetadata) ([]credit, error) {
	hits, err := h.genius.SearchSongs(ctx, m.Title+" "+m.Artist)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	song, err := h.genius.Song(ctx, hits[0].ID)
	if err != nil {
		return nil, err
	}
	credits := make([]credit, 0, len(song.ProducerArtists))
	for _, p := range song.ProducerArtists {
		credits = append(credits, credit{
			name:     p.Name,
			source:   SourceGenius,
			geniusID: strconv.Itoa(p.ID),
		})
	}
	return credits, nil
}

func (h *ProducerCredits) fromDiscogs(ctx context.Context, m domain.ProducerDiscoveryMetadata) ([]credit, error) {
	hits, err := h.discogs.SearchReleases(ctx, m.Title, m.Artist)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	rel, err := h.discogs.Release(ctx, hits[0].ID)
	if err != nil {
		return nil, err
	}
	credits := make([]credit, 0, len(rel.Producers))
	for _, name := range rel.Producers {
		credits = append(credits, credit{
			name:      name,
			source:    SourceDiscogs,
			discogsID: strconv.Itoa(rel.ID),
		})
	}
	return credits, nil
}

func (h *ProducerCredits) record(ctx context.Context, trackID string, c credit) error {
	normalized := domain.NormalizeProducerName(c.name)
	if normalized == "" {
		return nil
	}
	producerID, err := h.repo.UpsertProducer(ctx, domain.Producer{
		Name:           strings.TrimSpace(c.name),
		NormalizedName: normalized,
		GeniusID:       c.geniusID,
		DiscogsID:      c.discogsID,
	})
	if err != nil {
		return err
	}
	return h.repo.LinkTrackProducer(ctx, trackID, producerID, c.source)
}
