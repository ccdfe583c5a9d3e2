package domain

import "sort"

// Breakpoint names a responsive range starting at MinWidth pixels.
type Breakpoint struct {
	Name     string `json:"name" yaml:"name"`
	MinWidth int    `json:"minWidth" yaml:"minWidth"`
}

// Page is the serialized page document consumed by the interpreter.
type Page struct {
	ID          string         `json:"id" yaml:"id"`
	Path        string         `json:"path,omitempty" yaml:"path,omitempty"`
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	Locale      string         `json:"locale,omitempty" yaml:"locale,omitempty"`
	Breakpoints []Breakpoint   `json:"breakpoints,omitempty" yaml:"breakpoints,omitempty"`
	Site        map[string]any `json:"site,omitempty" yaml:"site,omitempty"`
	Data        map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Nodes       []Node         `json:"nodes" yaml:"nodes"`
}

// Index maps every static node id to its definition.
func (p *Page) Index() map[string]*Node {
	idx := make(map[string]*Node)
	for i := range p.Nodes {
		p.Nodes[i].Walk(func(n *Node) bool {
			idx[n.ID] = n
			return true
		})
	}
	return idx
}

// Meta returns the page scope exposed to expressions.
func (p *Page) Meta() map[string]any {
	return map[string]any{
		"id":     p.ID,
		"path":   p.Path,
		"title":  p.Title,
		"locale": p.Locale,
	}
}

// BreakpointFor returns the breakpoint whose MinWidth is the largest not above width.
// It returns "" when no breakpoint applies.
func (p *Page) BreakpointFor(width int) string {
	bps := make([]Breakpoint, len(p.Breakpoints))
	copy(bps, p.Breakpoints)
	sort.Slice(bps, func(i, j int) bool { return bps[i].MinWidth < bps[j].MinWidth })

	name := ""
	for _, bp := range bps {
		if bp.MinWidth <= width {
			name = bp.Name
		}
	}
	return name
}
