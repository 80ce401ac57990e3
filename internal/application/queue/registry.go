package queue

import (
	"context"

	"github.com/melodex/melodex/internal/domain"
)

// Result reports what a handler accomplished for one batch.
type Result struct {
	ItemsProcessed int
	ItemsTotal     int
	ItemsFailed    int
}

// Handler executes one batch kind. Handlers must be idempotent: the engine
// guarantees at-least-once delivery, and a reclaimed lease can replay a batch.
// Handlers may emit child batches through the store but never touch batch
// status themselves.
type Handler interface {
	Handle(ctx context.Context, metadata domain.Metadata) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, metadata domain.Metadata) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, metadata domain.Metadata) (Result, error) {
	return f(ctx, metadata)
}

// Registry maps batch types to handlers, loaded once at startup.
type Registry struct {
	handlers map[string]Handler
	aliases  map[string]string
}

// NewRegistry creates a registry with the pipeline's standard aliases:
// album_discovery and album_page share the album-page handler,
// track_discovery and track_page share the track-page handler, and
// identify-producers resolves to producer_discovery.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		aliases: map[string]string{
			domain.TypeAlbumDiscovery:    domain.TypeAlbumPage,
			domain.TypeTrackDiscovery:    domain.TypeTrackPage,
			domain.TypeIdentifyProducers: domain.TypeProducerDiscovery,
		},
	}
}

// Register binds a handler to a batch type.
func (r *Registry) Register(batchType string, h Handler) {
	r.handlers[batchType] = h
}

// Alias routes batchType to the handler registered under target.
func (r *Registry) Alias(batchType, target string) {
	r.aliases[batchType] = target
}

// Resolve returns the handler for batchType. Unknown types resolve to the
// handler name identical to the type, so operators can register new kinds
// without changing the dispatcher; the second return is false when no handler
// is registered under the resolved name.
func (r *Registry) Resolve(batchType string) (Handler, bool) {
	name := batchType
	if target, ok := r.aliases[batchType]; ok {
		name = target
	}
	h, ok := r.handlers[name]
	return h, ok
}
