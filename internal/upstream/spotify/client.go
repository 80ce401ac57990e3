// Package spotify is a minimal Spotify Web API client covering artist search,
// genre seeds and the album/track paging endpoints the pipeline walks.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/melodex/melodex/internal/upstream"
)

const (
	apiName        = "spotify"
	defaultBaseURL = "https://api.spotify.com/v1"
	tokenURL       = "https://accounts.spotify.com/api/token"
)

// Config holds credentials and overrides for the Spotify client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string       // override for tests
	HTTPClient   *http.Client // base transport; the OAuth2 layer wraps it
}

// Client issues authenticated requests using the client-credentials flow;
// token refresh is handled by the oauth2 transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	gate       upstream.Limiter
}

// NewClient builds a client. The gate is consulted before every call and fed
// from response headers afterwards.
func NewClient(cfg Config, gate upstream.Limiter) *Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: creds.Client(ctx),
		baseURL:    baseURL,
		gate:       gate,
	}
}

// Artist is the subset of the Spotify artist object the pipeline stores.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// Album is the subset of the Spotify album object the pipeline stores.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
}

// Track is the subset of the Spotify track object the pipeline stores.
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DiscNumber  int    `json:"disc_number"`
	TrackNumber int    `json:"track_number"`
	DurationMS  int    `json:"duration_ms"`
}

// AlbumsPage is one page of an artist's album listing.
type AlbumsPage struct {
	Items   []Album
	Total   int
	HasNext bool
}

// TracksPage is one page of an album's track listing.
type TracksPage struct {
	Items   []Track
	Total   int
	HasNext bool
}

// SearchArtists runs a full-text artist search.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "artist")
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Artists struct {
			Items []Artist `json:"items"`
		} `json:"artists"`
	}
	if err := c.get(ctx, "/search", "/search", q, &out); err != nil {
		return nil, err
	}
	return out.Artists.Items, nil
}

// GenreSeeds returns the recommendation genre seed list used as a fallback
// when artist discovery runs without an explicit query.
func (c *Client) GenreSeeds(ctx context.Context) ([]string, error) {
	var out struct {
		Genres []string `json:"genres"`
	}
	if err := c.get(ctx, "/recommendations/available-genre-seeds", "/recommendations/available-genre-seeds", nil, &out); err != nil {
		return nil, err
	}
	return out.Genres, nil
}

// ArtistAlbums returns one page of an artist's albums and singles.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, offset, limit int) (AlbumsPage, error) {
	q := url.Values{}
	q.Set("include_groups", "album,single")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Items []Album `json:"items"`
		Total int     `json:"total"`
		Next  *string `json:"next"`
	}
	path := fmt.Sprintf("/artists/%s/albums", artistID)
	if err := c.get(ctx, "/artists/{id}/albums", path, q, &out); err != nil {
		return AlbumsPage{}, err
	}
	return AlbumsPage{Items: out.Items, Total: out.Total, HasNext: out.Next != nil}, nil
}

// AlbumTracks returns one page of an album's tracks.
func (c *Client) AlbumTracks(ctx context.Context, albumID string, offset, limit int) (TracksPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Items []Track `json:"items"`
		Total int     `json:"total"`
		Next  *string `json:"next"`
	}
	path := fmt.Sprintf("/albums/%s/tracks", albumID)
	if err := c.get(ctx, "/albums/{id}/tracks", path, q, &out); err != nil {
		return TracksPage{}, err
	}
	return TracksPage{Items: out.Items, Total: out.Total, HasNext: out.Next != nil}, nil
}

// get issues one authenticated GET. endpoint is the route template used as
// the rate-limit key, so counters aggregate per logical endpoint instead of
// per entity; path is the concrete request path.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, v any) error {
	if _, err := c.gate.Check(ctx, apiName, endpoint); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build spotify request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request failed: %w", err)
	}
	upstream.RecordHeaders(ctx, c.gate, apiName, endpoint, resp, time.Now().UTC())
	return upstream.DecodeResponse(apiName, endpoint, resp, v)
}
