// Package upstream holds the pieces shared by the Spotify, Genius and Discogs
// clients: error typing, rate-limit header recording and response decoding.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Limiter is the slice of the rate-limit gate the clients depend on.
type Limiter interface {
	Check(ctx context.Context, api, endpoint string) (bool, error)
	Update(ctx context.Context, api, endpoint string, remaining, limit int, resetAt time.Time, lastStatus int) error
}

// StatusError reports a non-2xx response from an upstream API.
type StatusError struct {
	API      string
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.API, e.Endpoint, e.Status)
}

// Temporary reports whether the status is worth retrying: 429 and 5xx are,
// every other 4xx is not.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// RecordHeaders feeds observed rate-limit headers into the gate. It accepts
// both the X-RateLimit-* family and Discogs' X-Discogs-Ratelimit* variant;
// responses without either are not recorded. Failures are logged, never
// surfaced: header bookkeeping must not fail a batch.
func RecordHeaders(ctx context.Context, gate Limiter, api, endpoint string, resp *http.Response, now time.Time) {
	h := resp.Header

	remaining, okRemaining := headerInt(h, "X-RateLimit-Remaining", "X-Discogs-Ratelimit-Remaining")
	limit, _ := headerInt(h, "X-RateLimit-Limit", "X-Discogs-Ratelimit")

	resetAt := now
	if v, ok := headerInt(h, "X-RateLimit-Reset"); ok {
		resetAt = time.Unix(int64(v), 0).UTC()
	} else if v, ok := headerInt(h, "Retry-After"); ok {
		resetAt = now.Add(time.Duration(v) * time.Second)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		remaining, okRemaining = 0, true
	}
	if !okRemaining {
		return
	}

	if err := gate.Update(ctx, api, endpoint, remaining, limit, resetAt, resp.StatusCode); err != nil {
		slog.WarnContext(ctx, "failed to record rate-limit headers",
			"api", api,
			"endpoint", endpoint,
			"error", err)
	}
}

func headerInt(h http.Header, names ...string) (int, bool) {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// DecodeResponse drains and closes the body, converts non-2xx statuses into a
// StatusError, and unmarshals the JSON payload into v (nil v skips decoding).
func DecodeResponse(api, endpoint string, resp *http.Response, v any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{API: api, Endpoint: endpoint, Status: resp.StatusCode}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", api, endpoint, err)
	}
	return nil
}
