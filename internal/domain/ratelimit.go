package domain

import "time"

// RateLimit mirrors the most recent rate-limit headers observed for one
// (api, endpoint) pair. Best-effort: concurrent workers may briefly race on
// it, upstream 429s are the backstop.
type RateLimit struct {
	APIName           string
	Endpoint          string
	RequestsRemaining int
	RequestsLimit     int
	ResetAt           time.Time
	LastResponse      int // last observed HTTP status
	UpdatedAt         time.Time
}

// RemainingPercent reports the remaining share of the window, 0-100.
func (r RateLimit) RemainingPercent() float64 {
	if r.RequestsLimit <= 0 {
		return 100
	}
	return float64(r.RequestsRemaining) / float64(r.RequestsLimit) * 100
}
