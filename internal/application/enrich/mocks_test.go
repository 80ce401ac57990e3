package enrich

import (
	"context"

	"github.com/melodex/melodex/internal/domain"
	"github.com/melodex/melodex/internal/upstream/discogs"
	"github.com/melodex/melodex/internal/upstream/genius"
	"github.com/melodex/melodex/internal/upstream/spotify"
)

type mockSpotify struct {
	searchArtists func(ctx context.Context, query string, limit int) ([]spotify.Artist, error)
	genreSeeds    func(ctx context.Context) ([]string, error)
	artistAlbums  func(ctx context.Context, artistID string, offset, limit int) (spotify.AlbumsPage, error)
	albumTracks   func(ctx context.Context, albumID string, offset, limit int) (spotify.TracksPage, error)
}

func (m *mockSpotify) SearchArtists(ctx context.Context, query string, limit int) ([]spotify.Artist, error) {
	if m.searchArtists != nil {
		return m.searchArtists(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockSpotify) GenreSeeds(ctx context.Context) ([]string, error) {
	if m.genreSeeds != nil {
		return m.genreSeeds(ctx)
	}
	return nil, nil
}

func (m *mockSpotify) ArtistAlbums(ctx context.Context, artistID string, offset, limit int) (spotify.AlbumsPage, error) {
	if m.artistAlbums != nil {
		return m.artistAlbums(ctx, artistID, offset, limit)
	}
	return spotify.AlbumsPage{}, nil
}

func (m *mockSpotify) AlbumTracks(ctx context.Context, albumID string, offset, limit int) (spotify.TracksPage, error) {
	if m.albumTracks != nil {
		return m.albumTracks(ctx, albumID, offset, limit)
	}
	return spotify.TracksPage{}, nil
}

type mockGenius struct {
	searchSongs func(ctx context.Context, query string) ([]genius.SongHit, error)
	song        func(ctx context.Context, id int) (genius.Song, error)
}

func (m *mockGenius) SearchSongs(ctx context.Context, query string) ([]genius.SongHit, error) {
	if m.searchSongs != nil {
		return m.searchSongs(ctx, query)
	}
	return nil, nil
}

func (m *mockGenius) Song(ctx context.Context, id int) (genius.Song, error) {
	if m.song != nil {
		return m.song(ctx, id)
	}
	return genius.Song{}, nil
}

type mockDiscogs struct {
	searchReleases func(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error)
	release        func(ctx context.Context, id int) (discogs.Release, error)
}

func (m *mockDiscogs) SearchReleases(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error) {
	if m.searchReleases != nil {
		return m.searchReleases(ctx, track, artist)
	}
	return nil, nil
}

func (m *mockDiscogs) Release(ctx context.Context, id int) (discogs.Release, error) {
	if m.release != nil {
		return m.release(ctx, id)
	}
	return discogs.Release{}, nil
}

type mockRepo struct {
	upsertArtist      func(ctx context.Context, artist domain.Artist) (string, error)
	upsertAlbum       func(ctx context.Context, artistSpotifyID string, album domain.Album) (string, error)
	upsertTrack       func(ctx context.Context, albumSpotifyID string, track domain.Track) (string, error)
	albumArtistName   func(ctx context.Context, albumSpotifyID string) (string, error)
	upsertProducer    func(ctx context.Context, producer domain.Producer) (string, error)
	linkTrackProducer func(ctx context.Context, trackID, producerID, source string) error
}

func (m *mockRepo) UpsertArtist(ctx context.Context, artist domain.Artist) (string, error) {
	if m.upsertArtist != nil {
		return m.upsertArtist(ctx, artist)
	}
	return "artist-row", nil
}

func (m *mockRepo) UpsertAlbum(ctx context.Context, artistSpotifyID string, album domain.Album) (string, error) {
	if m.upsertAlbum != nil {
		return m.upsertAlbum(ctx, artistSpotifyID, album)
	}
	return "album-row", nil
}

func (m *mockRepo) UpsertTrack(ctx context.Context, albumSpotifyID string, track domain.Track) (string, error) {
	if m.upsertTrack != nil {
		return m.upsertTrack(ctx, albumSpotifyID, track)
	}
	return "track-row", nil
}

func (m *mockRepo) AlbumArtistName(ctx context.Context, albumSpotifyID string) (string, error) {
	if m.albumArtistName != nil {
		return m.albumArtistName(ctx, albumSpotifyID)
	}
	return "Some Artist", nil
}

func (m *mockRepo) UpsertProducer(ctx context.Context, producer domain.Producer) (string, error) {
	if m.upsertProducer != nil {
		return m.upsertProducer(ctx, producer)
	}
	return "producer-row", nil
}

func (m *mockRepo) LinkTrackProducer(ctx context.Context, trackID, producerID, source string) error {
	if m.linkTrackProducer != nil {
		return m.linkTrackProducer(ctx, trackID, producerID, source)
	}
	return nil
}

// mockEnqueuer records every inserted batch.
type mockEnqueuer struct {
	insertBatch func(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error)
	inserted    []insertedBatch
}

type insertedBatch struct {
	batchType string
	metadata  domain.Metadata
}

func (m *mockEnqueuer) InsertBatch(ctx context.Context, batchType string, metadata domain.Metadata) (*domain.Batch, error) {
	m.inserted = append(m.inserted, insertedBatch{batchType: batchType, metadata: metadata})
	if m.insertBatch != nil {
		return m.insertBatch(ctx, batchType, metadata)
	}
	return &domain.Batch{Type: batchType, Metadata: metadata}, nil
}
