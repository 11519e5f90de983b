package ports

import (
	"context"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
)

// FlowLoader reads flow definitions from a source.
// Loaders parse and decode; they do not register or validate the graph.
type FlowLoader interface {
	LoadFlows(ctx context.Context) ([]*domain.FlowDefinition, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying flows change.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
