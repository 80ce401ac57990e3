package enrich

import (
	"context"

	"github.com/melodex/melodex/internal/upstream/discogs"
	"github.com/melodex/melodex/internal/upstream/genius"
	"github.com/melodex/melodex/internal/upstream/spotify"
)

// SpotifyAPI is the slice of the Spotify client the handlers use.
type SpotifyAPI interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]spotify.Artist, error)
	GenreSeeds(ctx context.Context) ([]string, error)
	ArtistAlbums(ctx context.Context, artistID string, offset, limit int) (spotify.AlbumsPage, error)
	AlbumTracks(ctx context.Context, albumID string, offset, limit int) (spotify.TracksPage, error)
}

// GeniusAPI is the slice of the Genius client the producer handler uses.
type GeniusAPI interface {
	SearchSongs(ctx context.Context, query string) ([]genius.SongHit, error)
	Song(ctx context.Context, id int) (genius.Song, error)
}

// DiscogsAPI is the slice of the Discogs client the producer handler uses.
type DiscogsAPI interface {
	SearchReleases(ctx context.Context, track, artist string) ([]discogs.ReleaseHit, error)
	Release(ctx context.Context, id int) (discogs.Release, error)
}
