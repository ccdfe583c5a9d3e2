package dsl

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
)

// PageBuilder manages the page construction.
type PageBuilder struct {
	page  domain.Page
	nodes []*NodeBuilder
}

// NewPage creates a new page builder.
func NewPage(id string) *PageBuilder {
	return &PageBuilder{page: domain.Page{ID: id}}
}

// Title sets the page title.
func (b *PageBuilder) Title(title string) *PageBuilder {
	b.page.Title = title
	return b
}

// Locale sets the default locale of the page.
func (b *PageBuilder) Locale(locale string) *PageBuilder {
	b.page.Locale = locale
	return b
}

// Breakpoint declares a named breakpoint active from minWidth pixels.
func (b *PageBuilder) Breakpoint(name string, minWidth int) *PageBuilder {
	b.page.Breakpoints = append(b.page.Breakpoints, domain.Breakpoint{Name: name, MinWidth: minWidth})
	return b
}

// Data adds a page-level data value, readable as data.<key>.
func (b *PageBuilder) Data(key string, value any) *PageBuilder {
	if b.page.Data == nil {
		b.page.Data = make(map[string]any)
	}
	b.page.Data[key] = value
	return b
}

// Site adds a site-level value, readable as site.<key>.
func (b *PageBuilder) Site(key string, value any) *PageBuilder {
	if b.page.Site == nil {
		b.page.Site = make(map[string]any)
	}
	b.page.Site[key] = value
	return b
}

// Add appends root nodes.
func (b *PageBuilder) Add(nodes ...*NodeBuilder) *PageBuilder {
	b.nodes = append(b.nodes, nodes...)
	return b
}

// Build returns the page.
func (b *PageBuilder) Build() *domain.Page {
	page := b.page
	page.Nodes = make([]domain.Node, 0, len(b.nodes))
	for _, nb := range b.nodes {
		page.Nodes = append(page.Nodes, nb.Build())
	}
	return &page
}

// Loader compiles the page into a memory loader.
func (b *PageBuilder) Loader() (*memory.Loader, error) {
	loader, err := memory.NewFromPages(b.Build())
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
