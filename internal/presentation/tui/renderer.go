package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; width 0 disables wrapping.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return r.Render, nil
}

// Outline describes a resolved tree as a markdown bullet list, one node per line.
// Hidden nodes are omitted.
func Outline(tree *canopy.Tree) string {
	var sb strings.Builder
	if tree == nil {
		return ""
	}
	fmt.Fprintf(&sb, "# %s\n\n", tree.PageID)
	if !tree.Settled {
		fmt.Fprintf(&sb, "> %d node(s) still loading\n\n", tree.Loading)
	}
	for _, n := range tree.Nodes {
		outlineNode(&sb, n, 0)
	}
	return sb.String()
}

func outlineNode(sb *strings.Builder, n *domain.ResolvedNode, depth int) {
	if n == nil || !n.Visible {
		return
	}
	indent := strings.Repeat("  ", depth)
	kind := string(n.Type)
	if n.Kind != "" {
		kind = n.Kind
	}
	fmt.Fprintf(sb, "%s- **%s** `%s`", indent, n.ID, kind)

	switch {
	case n.Unsupported:
		fmt.Fprintf(sb, " ⚠ %s", n.Error)
	case n.Loading:
		ph := "loading"
		if n.Placeholder != nil {
			ph = string(n.Placeholder.Type)
		}
		fmt.Fprintf(sb, " ⏳ %s", ph)
	default:
		if s := paramSummary(n.Params); s != "" {
			fmt.Fprintf(sb, " %s", s)
		}
	}
	if len(n.EventHandlers) > 0 {
		events := make([]string, 0, len(n.EventHandlers))
		for ev := range n.EventHandlers {
			events = append(events, ev)
		}
		sort.Strings(events)
		fmt.Fprintf(sb, " _on %s_", strings.Join(events, ", "))
	}
	sb.WriteString("\n")

	if n.Code != "" {
		fmt.Fprintf(sb, "\n%s```%s\n%s\n%s```\n\n", indent, n.Language, n.Code, indent)
	}
	for key, msg := range n.DataErrors {
		fmt.Fprintf(sb, "%s  - data error `%s`: %s\n", indent, key, msg)
	}
	for _, c := range n.Children {
		outlineNode(sb, c, depth+1)
	}
}

// paramSummary prints scalar params as key=value in key order.
func paramSummary(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		switch v.(type) {
		case string, float64, int, bool:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, fmt.Sprint(params[k])))
	}
	return strings.Join(parts, " ")
}
