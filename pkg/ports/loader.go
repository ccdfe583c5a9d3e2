package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// PageLoader retrieves page documents.
// This allows the storage layer (files, memory, remote) to be decoupled.
type PageLoader interface {
	// LoadPage returns the decoded page stored under id.
	LoadPage(id string) (*domain.Page, error)

	// ListPages returns the ids of every page available.
	ListPages() ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying documents change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
