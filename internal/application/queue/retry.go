package queue

import (
	"time"

	"github.com/melodex/melodex/internal/domain"
)

// BaseBackoff is the first retry delay; each subsequent attempt doubles it.
const BaseBackoff = 500 * time.Millisecond

// RetryPolicy holds per-type retry limits with a default.
type RetryPolicy struct {
	limits       map[string]int
	defaultLimit int
}

// DefaultRetryPolicy returns the pipeline's retry limit table.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		limits: map[string]int{
			domain.TypeDiscoverArtists:   3,
			domain.TypeAlbumPage:         5,
			domain.TypeTrackPage:         5,
			domain.TypeProducerDiscovery: 3,
		},
		defaultLimit: 3,
	}
}

// Limit returns the retry limit for a batch type.
func (p RetryPolicy) Limit(batchType string) int {
	if limit, ok := p.limits[batchType]; ok {
		return limit
	}
	return p.defaultLimit
}

// Backoff returns the delay before retry attempt n (1-based):
// 500ms, 1s, 2s, 4s, 8s, ...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return BaseBackoff << (attempt - 1)
}
