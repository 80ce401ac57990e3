package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/melodex/melodex/internal/domain"
)

// Catalog writes are upserts on natural keys (spotify_id, normalized producer
// name) so replayed batches converge instead of erroring.

// UpsertArtist inserts or refreshes an artist keyed by Spotify id.
func (s *Store) UpsertArtist(ctx context.Context, artist domain.Artist) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO artists (id, spotify_id, name, genres)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (spotify_id) DO UPDATE
		SET name = EXCLUDED.name,
		    genres = EXCLUDED.genres,
		    updated_at = now()
		RETURNING id`,
		uuid.Must(uuid.NewV7()).String(), artist.SpotifyID, artist.Name, artist.Genres).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert artist %s: %w", artist.SpotifyID, err)
	}
	return id, nil
}

// UpsertAlbum inserts or refreshes an album, resolving the owning artist by
// its Spotify id. A missing artist is an error: albums are only ingested
// after their artist.
func (s *Store) UpsertAlbum(ctx context.Context, artistSpotifyID string, album domain.Album) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO albums (id, spotify_id, artist_id, title, release_date, total_tracks)
		SELECT $1, $2, a.id, $4, $5, $6
		FROM artists a
		WHERE a.spotify_id = $3
		ON CONFLICT (spotify_id) DO UPDATE
		SET title = EXCLUDED.title,
		    release_date = EXCLUDED.release_date,
		    total_tracks = EXCLUDED.total_tracks,
		    updated_at = now()
		RETURNING id`,
		uuid.Must(uuid.NewV7()).String(), album.SpotifyID, artistSpotifyID,
		album.Title, album.ReleaseDate, album.TotalTracks).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("artist %s for album %s: %w", artistSpotifyID, album.SpotifyID, domain.ErrArtistNotFound)
		}
		return "", fmt.Errorf("failed to upsert album %s: %w", album.SpotifyID, err)
	}
	return id, nil
}

// UpsertTrack inserts or refreshes a track, resolving the owning album by its
// Spotify id.
func (s *Store) UpsertTrack(ctx context.Context, albumSpotifyID string, track domain.Track) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tracks (id, spotify_id, album_id, title, disc_number, track_number, duration_ms)
		SELECT $1, $2, al.id, $4, $5, $6, $7
		FROM albums al
		WHERE al.spotify_id = $3
		ON CONFLICT (spotify_id) DO UPDATE
		SET title = EXCLUDED.title,
		    disc_number = EXCLUDED.disc_number,
		    track_number = EXCLUDED.track_number,
		    duration_ms = EXCLUDED.duration_ms,
		    updated_at = now()
		RETURNING id`,
		uuid.Must(uuid.NewV7()).String(), track.SpotifyID, albumSpotifyID,
		track.Title, track.DiscNumber, track.TrackNumber, track.DurationMS).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("album %s for track %s: %w", albumSpotifyID, track.SpotifyID, domain.ErrAlbumNotFound)
		}
		return "", fmt.Errorf("failed to upsert track %s: %w", track.SpotifyID, err)
	}
	return id, nil
}

// AlbumArtistName returns the name of the artist owning the album identified
// by its Spotify id.
func (s *Store) AlbumArtistName(ctx context.Context, albumSpotifyID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT ar.name
		FROM albums al
		JOIN artists ar ON ar.id = al.artist_id
		WHERE al.spotify_id = $1`,
		albumSpotifyID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("album %s: %w", albumSpotifyID, domain.ErrAlbumNotFound)
		}
		return "", fmt.Errorf("failed to resolve album artist: %w", err)
	}
	return name, nil
}

// UpsertProducer inserts or refreshes a producer keyed by normalized name.
// Source ids only ever fill in, never blank out: a Discogs-sourced update must
// not erase a Genius id recorded earlier.
func (s *Store) UpsertProducer(ctx context.Context, producer domain.Producer) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO producers (id, name, normalized_name, genius_id, discogs_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (normalized_name) DO UPDATE
		SET genius_id = CASE WHEN EXCLUDED.genius_id <> '' THEN EXCLUDED.genius_id ELSE producers.genius_id END,
		    discogs_id = CASE WHEN EXCLUDED.discogs_id <> '' THEN EXCLUDED.discogs_id ELSE producers.discogs_id END,
		    updated_at = now()
		RETURNING id`,
		uuid.Must(uuid.NewV7()).String(), producer.Name, producer.NormalizedName,
		producer.GeniusID, producer.DiscogsID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert producer %q: %w", producer.NormalizedName, err)
	}
	return id, nil
}

// LinkTrackProducer records a producer credit on a track; duplicates are
// ignored.
func (s *Store) LinkTrackProducer(ctx context.Context, trackID, producerID, source string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO track_producers (track_id, producer_id, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (track_id, producer_id) DO NOTHING`,
		trackID, producerID, source)
	if err != nil {
		return fmt.Errorf("failed to link producer %s to track %s: %w", producerID, trackID, err)
	}
	return nil
}
