package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// QueryTransport executes a batch of named contract queries against a single endpoint.
type QueryTransport interface {
	Execute(ctx context.Context, queries map[string]domain.QueryDescription) (*domain.QueryResponse, error)
}

// Submitter performs submitData network calls.
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error)
}

// Cart is the shopping cart collaborator.
type Cart interface {
	AddToCart(ctx context.Context, item map[string]any) error
}

// Navigator routes the host to a URL.
type Navigator interface {
	Navigate(ctx context.Context, req domain.NavigateRequest) error
}

// SessionProvider exposes the authenticated session to bindings.
type SessionProvider interface {
	GetSession(ctx context.Context) (domain.SessionInfo, error)
}

// FormScope holds the values of the forms on a page, keyed by form id.
type FormScope interface {
	Values(formID string) map[string]any
	Set(formID string, values map[string]any)
	Reset(formID string)
}

// PageDataLoader produces the page-level data context.
type PageDataLoader interface {
	Load(ctx context.Context, page *domain.Page) (map[string]any, error)
}

// PageDataLoaderFunc adapts a function to PageDataLoader.
type PageDataLoaderFunc func(ctx context.Context, page *domain.Page) (map[string]any, error)

// Load implements PageDataLoader.
func (f PageDataLoaderFunc) Load(ctx context.Context, page *domain.Page) (map[string]any, error) {
	return f(ctx, page)
}
