package memory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/canopy/pkg/domain"
)

// Loader implements ports.PageLoader using an in-memory map.
// Pages are kept in their serialized form so every load returns a fresh copy.
type Loader struct {
	pages map[string][]byte
}

// NewLoader creates a new Loader with the provided raw documents (JSON strings keyed by page id).
func NewLoader(data map[string]string) *Loader {
	pages := make(map[string][]byte)
	for k, v := range data {
		pages[k] = []byte(v)
	}
	return &Loader{
		pages: pages,
	}
}

// NewFromPages creates a new Loader from domain objects.
// This handles serialization automatically, improving DX for tests.
func NewFromPages(pages ...*domain.Page) (*Loader, error) {
	data := make(map[string][]byte)
	for _, p := range pages {
		if p.ID == "" {
			return nil, fmt.Errorf("page missing ID")
		}
		bytes, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal page %s: %w", p.ID, err)
		}
		data[p.ID] = bytes
	}
	return &Loader{pages: data}, nil
}

// LoadPage decodes the page stored under id.
func (l *Loader) LoadPage(id string) (*domain.Page, error) {
	content, ok := l.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	var page domain.Page
	if err := json.Unmarshal(content, &page); err != nil {
		return nil, fmt.Errorf("failed to decode page %s: %w", id, err)
	}
	if page.ID == "" {
		page.ID = id
	}
	return &page, nil
}

// ListPages returns all available page IDs.
func (l *Loader) ListPages() ([]string, error) {
	keys := make([]string, 0, len(l.pages))
	for k := range l.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
