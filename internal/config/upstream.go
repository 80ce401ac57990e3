package config

import "errors"

// Credential errors surfaced at startup instead of as mid-pipeline 401s.
var (
	ErrSpotifyCredsRequired = errors.New("MELODEX_SPOTIFY_CLIENT_ID and MELODEX_SPOTIFY_CLIENT_SECRET are required")
	ErrGeniusTokenRequired  = errors.New("MELODEX_GENIUS_ACCESS_TOKEN is required")
	ErrDiscogsCredsRequired = errors.New("MELODEX_DISCOGS_KEY and MELODEX_DISCOGS_SECRET are required")
)

// SpotifyConfig holds Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `env:"MELODEX_SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"MELODEX_SPOTIFY_CLIENT_SECRET"`
}

// Validate validates the Spotify configuration.
func (c *SpotifyConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrSpotifyCredsRequired
	}
	return nil
}

// GeniusConfig holds the Genius API bearer token.
type GeniusConfig struct {
	AccessToken string `env:"MELODEX_GENIUS_ACCESS_TOKEN"`
}

// Validate validates the Genius configuration.
func (c *GeniusConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrGeniusTokenRequired
	}
	return nil
}

// DiscogsConfig holds Discogs key/secret authentication settings.
type DiscogsConfig struct {
	Key       string `env:"MELODEX_DISCOGS_KEY"`
	Secret    string `env:"MELODEX_DISCOGS_SECRET"`
	UserAgent string `env:"MELODEX_DISCOGS_USER_AGENT"`
}

// Validate validates the Discogs configuration.
func (c *DiscogsConfig) Validate() error {
	if c.Key == "" || c.Secret == "" {
		return ErrDiscogsCredsRequired
	}
	return nil
}
