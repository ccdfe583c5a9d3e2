package domain_test

import (
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"params": map[string]any{"title": "base", "size": 1.0},
		"tags":   []any{"a", "b"},
	}
	patch := map[string]any{
		"params": map[string]any{"title": "patched"},
		"tags":   []any{"c"},
	}

	got := domain.DeepMerge(base, patch)

	assert.Equal(t, map[string]any{"title": "patched", "size": 1.0}, got["params"])
	assert.Equal(t, []any{"c"}, got["tags"], "arrays are replaced, not concatenated")
	assert.Equal(t, "base", base["params"].(map[string]any)["title"], "input must not be mutated")
}

func TestCloneNode_IsDeep(t *testing.T) {
	n := &domain.Node{
		ID:     "a",
		Type:   domain.NodeTypeAtom,
		Params: map[string]any{"nested": map[string]any{"x": "y"}},
	}

	clone, err := domain.CloneNode(n)
	require.NoError(t, err)

	clone.Params["nested"].(map[string]any)["x"] = "changed"
	assert.Equal(t, "y", n.Params["nested"].(map[string]any)["x"])
}

func TestPage_BreakpointFor(t *testing.T) {
	page := &domain.Page{Breakpoints: []domain.Breakpoint{
		{Name: "desktop", MinWidth: 1024},
		{Name: "mobile", MinWidth: 0},
		{Name: "tablet", MinWidth: 640},
	}}

	assert.Equal(t, "mobile", page.BreakpointFor(320))
	assert.Equal(t, "tablet", page.BreakpointFor(640))
	assert.Equal(t, "desktop", page.BreakpointFor(1920))
	assert.Equal(t, "", (&domain.Page{}).BreakpointFor(800))
}

func TestEvaluationContext_Lookup(t *testing.T) {
	ctx := domain.EvaluationContext{
		Data:  map[string]any{"a": 1},
		Extra: map[string]any{"custom": "x"},
	}

	v, ok := ctx.Lookup("data")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1}, v)

	_, ok = ctx.Lookup("item")
	assert.False(t, ok, "item only exists inside a repeater template")

	item := ctx.ForItem(map[string]any{"open": true}, "first", 2, domain.RepeaterScope{NodeID: "list_2", ParentID: "list"})
	v, ok = item.Lookup("index")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, _ = item.Lookup("state")
	assert.Equal(t, map[string]any{"open": true}, v)

	v, ok = ctx.Lookup("custom")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestAuxContext_WithResult(t *testing.T) {
	aux := domain.AuxContext{ActionResults: map[string]any{"a": 1}}
	next := aux.WithResult("b", 2)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, next.ActionResults)
	assert.Equal(t, map[string]any{"a": 1}, aux.ActionResults)
}
