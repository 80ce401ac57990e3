package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Metadata is the opaque structured payload of a batch. Its schema varies by
// batch type; the engine never interprets it, handlers decode it into one of
// the typed records below.
type Metadata map[string]any

// Typed metadata records, one per batch type.

// DiscoverArtistsMetadata drives the seed job. Both fields optional: without a
// query the handler falls back to genre-seed discovery.
type DiscoverArtistsMetadata struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// AlbumPageMetadata identifies one page of an artist's album listing.
type AlbumPageMetadata struct {
	ArtistID string `json:"artist_id"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

// TrackPageMetadata identifies one page of an album's track listing.
type TrackPageMetadata struct {
	AlbumID string `json:"album_id"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
}

// ProducerDiscoveryMetadata carries the track identity needed for
// producer-credit lookups against Genius and Discogs.
type ProducerDiscoveryMetadata struct {
	TrackID string `json:"track_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
}

// EncodeMetadata converts a typed metadata record into the opaque form stored
// on the batch row.
func EncodeMetadata(v any) (Metadata, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

// DecodeMetadata unmarshals opaque metadata into a typed record.
func DecodeMetadata(m Metadata, v any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	return nil
}

// HashMetadata returns the idempotency hash for a metadata payload.
// encoding/json marshals map keys in sorted order, which gives a canonical
// form that is stable across processes.
func HashMetadata(m Metadata) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize metadata: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
