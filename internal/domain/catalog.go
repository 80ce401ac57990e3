package domain

import (
	"strings"
	"time"
	"unicode"
)

// Catalog entities enriched by the pipeline. All writes are upserts on the
// natural keys (spotify_id, genius_id, discogs_id, normalized producer name)
// so replayed batches are harmless.

type Artist struct {
	ID        string
	SpotifyID string
	Name      string
	Genres    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Album struct {
	ID          string
	SpotifyID   string
	ArtistID    string
	Title       string
	ReleaseDate string
	TotalTracks int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Track struct {
	ID          string
	SpotifyID   string
	AlbumID     string
	Title       string
	DiscNumber  int
	TrackNumber int
	DurationMS  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Producer struct {
	ID             string
	Name           string
	NormalizedName string
	GeniusID       string
	DiscogsID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TrackProducer links a track to a producer with the source that claimed the
// credit ("genius" or "discogs").
type TrackProducer struct {
	TrackID    string
	ProducerID string
	Source     string
	CreatedAt  time.Time
}

// NormalizeProducerName canonicalizes a producer credit for deduplication:
// lowercased, whitespace collapsed, and common credit suffixes stripped.
// "DJ Premier " and "dj  premier" map to the same producer row.
func NormalizeProducerName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	// Credits frequently carry a trailing qualifier, e.g. "Rick Rubin (co.)".
	if i := strings.IndexAny(s, "(["); i > 0 {
		s = strings.TrimSpace(s[:i])
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
