// Package discogs is a minimal Discogs API client used as the fallback source
// for producer credits.
package discogs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/melodex/melodex/internal/upstream"
)

const (
	apiName          = "discogs"
	defaultBaseURL   = "https://api.discogs.com"
	defaultUserAgent = "melodex/1.0"

	searchPageSize = 5
)

// Config holds credentials and overrides for the Discogs client.
type Config struct {
	Key        string
	Secret     string
	UserAgent  string       // Discogs rejects requests without one
	BaseURL    string       // override for tests
	HTTPClient *http.Client
}

// Client authenticates with the key/secret header scheme.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       string
	userAgent  string
	gate       upstream.Limiter
}

// NewClient builds a client.
func NewClient(cfg Config, gate upstream.Limiter) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		auth:       fmt.Sprintf("Discogs key=%s, secret=%s", cfg.Key, cfg.Secret),
		userAgent:  userAgent,
		gate:       gate,
	}
}

// ReleaseHit is one database search result.
type ReleaseHit struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Release carries the producer credits of one release.
type Release struct {
	ID        int
	Title     string
	Producers []string
}

// SearchReleases looks up releases matching a track title and artist.
func (c *Client) SearchReleases(ctx context.Context, track, artist string) ([]ReleaseHit, error) {
	q := url.Values{}
	q.Set("track", track)
	q.Set("artist", artist)
	q.Set("type", "release")
	q.Set("per_page", strconv.Itoa(searchPageSize))

	var out struct {
		Results []ReleaseHit `json:"results"`
	}
	if err := c.get(ctx, "/database/search", "/database/search", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Release fetches one release and extracts the producer credits from its
// extra-artist list.
func (c *Client) Release(ctx context.Context, id int) (Release, error) {
	var out struct {
		ID           int    `json:"id"`
		Title        string `json:"title"`
		ExtraArtists []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"extraartists"`
	}
	if err := c.get(ctx, "/releases/{id}", "/releases/"+strconv.Itoa(id), nil, &out); err != nil {
		return Release{}, err
	}

	rel := Release{ID: out.ID, Title: out.Title}
	for _, ea := range out.ExtraArtists {
		if strings.Contains(strings.ToLower(ea.Role), "producer") {
			rel.Producers = append(rel.Producers, ea.Name)
		}
	}
	return rel, nil
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
		return fmt.Errorf("failed to build discogs request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discogs request failed: %w", err)
	}
	upstream.RecordHeaders(ctx, c.gate, apiName, endpoint, resp, time.Now().UTC())
	return upstream.DecodeResponse(apiName, endpoint, resp, v)
}
