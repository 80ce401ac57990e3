// Package genius is a minimal Genius API client for song search and
// producer-credit lookups.
package genius

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/melodex/melodex/internal/upstream"
)

const (
	apiName        = "genius"
	defaultBaseURL = "https://api.genius.com"
)

// Config holds credentials and overrides for the Genius client.
type Config struct {
	AccessToken string
	BaseURL     string       // override for tests
	HTTPClient  *http.Client // base transport; the OAuth2 layer wraps it
}

// Client issues bearer-authenticated requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	gate       upstream.Limiter
}

// NewClient builds a client around a static bearer token.
func NewClient(cfg Config, gate upstream.Limiter) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: oauth2.NewClient(ctx, src),
		baseURL:    baseURL,
		gate:       gate,
	}
}

// SongHit is one search result.
type SongHit struct {
	ID            int
	Title         string
	PrimaryArtist string
}

// ArtistRef is a credited artist on a song.
type ArtistRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Song carries the producer credits of one song.
type Song struct {
	ID              int
	Title           string
	ProducerArtists []ArtistRef
}

// SearchSongs runs a song search and returns the hits in ranking order.
func (c *Client) SearchSongs(ctx context.Context, query string) ([]SongHit, error) {
	q := url.Values{}
	q.Set("q", query)

	var out struct {
		Response struct {
			Hits []struct {
				Result struct {
					ID            int    `json:"id"`
					Title         string `json:"title"`
					PrimaryArtist struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := c.get(ctx, "/search", "/search", q, &out); err != nil {
		return nil, err
	}

	hits := make([]SongHit, 0, len(out.Response.Hits))
	for _, h := range out.Response.Hits {
		hits = append(hits, SongHit{
			ID:            h.Result.ID,
			Title:         h.Result.Title,
			PrimaryArtist: h.Result.PrimaryArtist.Name,
		})
	}
	return hits, nil
}

// Song fetches one song with its producer credits.
func (c *Client) Song(ctx context.Context, id int) (Song, error) {
	var out struct {
		Response struct {
			Song struct {
				ID              int         `json:"id"`
				Title           string      `json:"title"`
				ProducerArtists []ArtistRef `json:"producer_artists"`
			} `json:"song"`
		} `json:"response"`
	}
	if err := c.get(ctx, "/songs/{id}", "/songs/"+strconv.Itoa(id), nil, &out); err != nil {
		return Song{}, err
	}
	return Song{
		ID:              out.Response.Song.ID,
		Title:           out.Response.Song.Title,
		ProducerArtists: out.Response.Song.ProducerArtists,
	}, nil
}

// get issues one bearer-authenticated GET. endpoint is the route template
// used as the rate-limit key, so counters aggregate per logical endpoint
// instead of per entity; path is the concrete request path.
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
		return fmt.Errorf("failed to build genius request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genius request failed: %w", err)
	}
	upstream.RecordHeaders(ctx, c.gate, apiName, endpoint, resp, time.Now().UTC())
	return upstream.DecodeResponse(apiName, endpoint, resp, v)
}
