package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// Overlay contains runtime data to visualize on the graph.
type Overlay struct {
	// Hidden nodes are drawn dashed.
	Hidden []string
	// Loading nodes are highlighted.
	Loading []string
}

// OverlayOf collects the hidden and loading nodes of a resolved tree.
func OverlayOf(nodes []*domain.ResolvedNode) *Overlay {
	ov := &Overlay{}
	var walk func(n *domain.ResolvedNode)
	walk = func(n *domain.ResolvedNode) {
		if !n.Visible {
			ov.Hidden = append(ov.Hidden, n.ID)
		}
		if n.Loading {
			ov.Loading = append(ov.Loading, n.ID)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return ov
}

// targetParams maps action types to the param naming the node they act on.
var targetParams = map[domain.ActionType]string{
	domain.ActionUpdateNodeState: "targetNodeId",
	domain.ActionUpdateState:     "targetNodeId",
	domain.ActionOpenModal:       "modalId",
	domain.ActionCloseModal:      "modalId",
}

// GenerateMermaid produces a Mermaid flowchart of a page.
// It applies semantic styling:
// - Section: [Rectangle]
// - Component: [[Subroutine]]
// - Codeblock: [/Parallelogram/]
// - Repeater: {{Hexagon}}, with the template as its only child
// - Atom: (Rounded)
// Solid edges are containment, dotted edges are action targets labeled with
// the event, and dashed edges point to placeholder nodes.
func GenerateMermaid(page *domain.Page, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if page == nil {
		return sb.String()
	}

	var edges []string
	var visit func(n *domain.Node, parent string)
	visit = func(n *domain.Node, parent string) {
		safeID := sanitizeMermaidID(n.ID)
		opener, closer := "(", ")"
		switch {
		case n.Repeater != nil:
			opener, closer = "{{", "}}"
		case n.Type == domain.NodeTypeSection:
			opener, closer = "[", "]"
		case n.Type == domain.NodeTypeComponent:
			opener, closer = "[[", "]]"
		case n.Type == domain.NodeTypeCodeBlock:
			opener, closer = "[/", "/]"
		}

		label := n.ID
		if n.Kind != "" {
			label = fmt.Sprintf("%s <br/> %s", n.ID, n.Kind)
		}
		if n.Repeater != nil {
			label = fmt.Sprintf("%s <br/> ⟳ %s", n.ID, strings.ReplaceAll(n.Repeater.Source, "\"", "'"))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if parent != "" {
			edges = append(edges, fmt.Sprintf("    %s --> %s\n", parent, safeID))
		}
		edges = append(edges, actionEdges(n, safeID)...)
		if p := n.LoadingPlaceholder; p != nil && p.Type == domain.PlaceholderNode && p.NodeID != "" {
			edges = append(edges, fmt.Sprintf("    %s -. placeholder .-> %s\n", safeID, sanitizeMermaidID(p.NodeID)))
		}

		if n.Repeater != nil && n.Repeater.Template != nil {
			visit(n.Repeater.Template, safeID)
		}
		for i := range n.Children {
			visit(&n.Children[i], safeID)
		}
	}
	for i := range page.Nodes {
		visit(&page.Nodes[i], "")
	}
	for _, e := range edges {
		sb.WriteString(e)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef hidden stroke-dasharray: 5 5,color:#000;\n")
		sb.WriteString("    classDef loading fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		writeClass(&sb, overlay.Hidden, "hidden")
		writeClass(&sb, overlay.Loading, "loading")
	}
	return sb.String()
}

func actionEdges(n *domain.Node, safeID string) []string {
	events := make([]string, 0, len(n.EventHandlers))
	for ev := range n.EventHandlers {
		events = append(events, ev)
	}
	sort.Strings(events)

	var out []string
	var walk func(event string, chain []domain.Action)
	walk = func(event string, chain []domain.Action) {
		for _, a := range chain {
			if param, ok := targetParams[a.Type]; ok {
				if target, ok := a.Params[param].(string); ok && target != "" && !strings.Contains(target, "{{") {
					out = append(out, fmt.Sprintf("    %s -. \"%s: %s\" .-> %s\n", safeID, event, a.Type, sanitizeMermaidID(target)))
				}
			}
			walk(event, a.OnSuccess)
			walk(event, a.OnError)
		}
	}
	for _, ev := range events {
		walk(ev, n.EventHandlers[ev])
	}
	return out
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", safeID, class))
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
