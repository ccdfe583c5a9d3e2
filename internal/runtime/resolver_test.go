package runtime_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores() *memory.NodeStore { return memory.NewNodeStore() }

// stubData reports a fixed status per node id.
type stubData struct {
	mu     sync.Mutex
	status map[string]domain.RequirementStatus
	calls  []string
}

func (s *stubData) Ensure(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, nodeID)
	return s.status[nodeID]
}

func (s *stubData) set(nodeID string, st domain.RequirementStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[nodeID] = st
}

func requirement(key string) []domain.DataRequirementConfig {
	return []domain.DataRequirementConfig{{Key: key, Source: domain.DataSource{Type: domain.SourceMock}}}
}

func TestResolve_ParamsAndOrder(t *testing.T) {
	page := &domain.Page{
		ID:    "home",
		Title: "Home",
		Data:  map[string]any{"user": map[string]any{}},
		Nodes: []domain.Node{
			{ID: "second", Type: domain.NodeTypeAtom, Kind: "text", Order: 2, Params: map[string]any{"text": "{{ page.title }}"}},
			{ID: "first", Type: domain.NodeTypeAtom, Kind: "text", Order: 1, Params: map[string]any{"text": `{{ data.user.name || "Guest" }}`}},
		},
	}

	res := runtime.NewResolver().Resolve(context.Background(), runtime.Input{Page: page})
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "first", res.Nodes[0].ID)
	assert.Equal(t, "Guest", res.Nodes[0].Params["text"])
	assert.Equal(t, "Home", res.Nodes[1].Params["text"])
	assert.True(t, res.Nodes[0].Visible)
}

func TestResolve_LiveOverridesAndBreakpoint(t *testing.T) {
	page := &domain.Page{
		ID: "home",
		Nodes: []domain.Node{{
			ID:         "modal",
			Type:       domain.NodeTypeComponent,
			Kind:       "modal",
			Visibility: &domain.Visibility{Hidden: true},
			Params:     map[string]any{"width": float64(600)},
			ResponsiveOverrides: map[string]map[string]any{
				"mobile": {"params": map[string]any{"width": float64(320)}},
			},
		}},
	}
	overrides := newStores()
	r := runtime.NewResolver()

	res := r.Resolve(context.Background(), runtime.Input{Page: page, Overrides: overrides})
	assert.False(t, res.Nodes[0].Visible)
	assert.Nil(t, res.Nodes[0].Params, "hidden nodes skip param resolution")

	overrides.Merge("modal", map[string]any{"visibility": map[string]any{"hidden": false}})
	res = r.Resolve(context.Background(), runtime.Input{Page: page, Overrides: overrides, Breakpoint: "mobile"})
	assert.True(t, res.Nodes[0].Visible)
	assert.Equal(t, float64(320), res.Nodes[0].Params["width"])
}

func TestResolve_VisibilityExpression(t *testing.T) {
	tests := []struct {
		name       string
		visibility *domain.Visibility
		want       bool
	}{
		{"no config", nil, true},
		{"braced expression", &domain.Visibility{Expression: "{{ state.count > 1 }}"}, true},
		{"bare expression", &domain.Visibility{Expression: "state.count > 5"}, false},
		{"expression beats hidden", &domain.Visibility{Expression: "state.count", Hidden: true}, true},
		{"falsy empty string", &domain.Visibility{Expression: "{{ state.name }}"}, false},
		{"malformed reads as hidden", &domain.Visibility{Expression: "{{ state. }}"}, false},
		{"conditions", &domain.Visibility{Conditions: []domain.Condition{
			{Path: "state.count", Operator: domain.OpEquals, Value: float64(2)},
		}}, true},
		{"conditions beat hidden", &domain.Visibility{Hidden: true, Conditions: []domain.Condition{
			{Path: "state.count", Operator: domain.OpExists},
		}}, true},
		{"hidden", &domain.Visibility{Hidden: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := newStores()
			states.Merge("n", map[string]any{"count": float64(2), "name": ""})
			page := &domain.Page{Nodes: []domain.Node{{ID: "n", Type: domain.NodeTypeAtom, Visibility: tt.visibility}}}

			res := runtime.NewResolver().Resolve(context.Background(), runtime.Input{Page: page, States: states})
			assert.Equal(t, tt.want, res.Nodes[0].Visible)
		})
	}
}

func TestResolve_BlockingRequirementKeepsNodeVisible(t *testing.T) {
	data := &stubData{status: map[string]domain.RequirementStatus{
		"profile": {Loading: true},
	}}
	page := &domain.Page{Nodes: []domain.Node{{
		ID:               "profile",
		Type:             domain.NodeTypeAtom,
		Params:           map[string]any{"name": "{{ nodeData.user.name }}"},
		Visibility:       &domain.Visibility{Expression: "{{ nodeData.user.active }}"},
		DataRequirements: requirement("user"),
		LoadingPlaceholder: &domain.Placeholder{
			Type:   domain.PlaceholderSpinner,
			Config: map[string]any{"size": "sm"},
		},
	}}}
	r := runtime.NewResolver(runtime.WithRequirements(data))

	res := r.Resolve(context.Background(), runtime.Input{Page: page})
	node := res.Nodes[0]
	assert.True(t, node.Visible, "loading nodes are visible regardless of their expression")
	assert.True(t, node.Loading)
	assert.Nil(t, node.Params)
	require.NotNil(t, node.Placeholder)
	assert.Equal(t, domain.PlaceholderSpinner, node.Placeholder.Type)
	assert.Equal(t, map[string]any{"size": "sm"}, node.Placeholder.Config)
	assert.Equal(t, 1, res.Loading)

	data.set("profile", domain.RequirementStatus{Values: map[string]any{
		"user": map[string]any{"name": "Ana", "active": false},
	}})
	res = r.Resolve(context.Background(), runtime.Input{Page: page})
	assert.False(t, res.Nodes[0].Visible)
	assert.False(t, res.Nodes[0].Loading)

	data.set("profile", domain.RequirementStatus{
		Values: map[string]any{"user": map[string]any{"name": "Ana", "active": true}},
		Errors: map[string]string{"other": "boom"},
	})
	res = r.Resolve(context.Background(), runtime.Input{Page: page})
	assert.True(t, res.Nodes[0].Visible)
	assert.Equal(t, "Ana", res.Nodes[0].Params["name"])
	assert.Equal(t, map[string]string{"other": "boom"}, res.Nodes[0].DataErrors)
}

func TestResolve_PageDataLoading(t *testing.T) {
	page := &domain.Page{Nodes: []domain.Node{
		{ID: "bound", Type: domain.NodeTypeAtom, Params: map[string]any{"t": "{{ data.title }}"}},
		{ID: "static", Type: domain.NodeTypeAtom, Params: map[string]any{"t": "hello"}},
	}}

	res := runtime.NewResolver().Resolve(context.Background(), runtime.Input{Page: page, PageDataLoading: true})
	assert.True(t, res.Nodes[0].Loading)
	assert.False(t, res.Nodes[1].Loading)
	assert.Equal(t, "hello", res.Nodes[1].Params["t"])
}

func TestResolve_StateMaterialization(t *testing.T) {
	page := &domain.Page{Nodes: []domain.Node{{
		ID:     "counter",
		Type:   domain.NodeTypeAtom,
		State:  map[string]any{"count": float64(1)},
		Params: map[string]any{"label": "Count: {{ state.count }}"},
	}}}
	states := newStores()
	r := runtime.NewResolver()

	first := r.Resolve(context.Background(), runtime.Input{Page: page, States: states})
	assert.Equal(t, 1, first.Materialized)
	assert.True(t, first.Nodes[0].Loading)

	states.Merge("counter", map[string]any{"count": float64(5)})
	second := r.Resolve(context.Background(), runtime.Input{Page: page, States: states})
	assert.Zero(t, second.Materialized)
	assert.False(t, second.Nodes[0].Loading)
	assert.Equal(t, "Count: 5", second.Nodes[0].Params["label"])
}

func TestResolve_ParentAndSiblingState(t *testing.T) {
	states := newStores()
	states.Merge("form", map[string]any{"step": float64(2)})
	states.Merge("tabs", map[string]any{"active": "b"})

	page := &domain.Page{Nodes: []domain.Node{
		{ID: "tabs", Type: domain.NodeTypeAtom},
		{ID: "form", Type: domain.NodeTypeSection, Children: []domain.Node{{
			ID:   "field",
			Type: domain.NodeTypeAtom,
			Params: map[string]any{
				"step": "{{ parentState.step }}",
				"tab":  "{{ states.tabs.active }}",
			},
		}}},
	}}

	res := runtime.NewResolver().Resolve(context.Background(), runtime.Input{Page: page, States: states})
	field := res.Nodes[1].Children[0]
	assert.Equal(t, float64(2), field.Params["step"])
	assert.Equal(t, "b", field.Params["tab"])
}

func TestResolve_UnsupportedTypesAndKinds(t *testing.T) {
	page := &domain.Page{Nodes: []domain.Node{
		{ID: "weird", Type: "hologram"},
		{ID: "text", Type: domain.NodeTypeAtom, Kind: "text", Params: map[string]any{"t": "ok"}},
		{ID: "video", Type: domain.NodeTypeAtom, Kind: "video", Params: map[string]any{"t": "ok"}},
		{ID: "code", Type: domain.NodeTypeCodeBlock, Code: "<p>{{ page.id }}</p>", Language: "html"},
	}}
	page.ID = "home"

	res := runtime.NewResolver(runtime.WithKinds("text")).Resolve(context.Background(), runtime.Input{Page: page})
	require.Len(t, res.Nodes, 4)

	assert.True(t, res.Nodes[0].Unsupported)
	assert.Contains(t, res.Nodes[0].Error, domain.ErrUnsupportedNode.Error())
	assert.True(t, res.Nodes[0].Visible, "error placeholders are rendered, not dropped")

	assert.False(t, res.Nodes[1].Unsupported)
	assert.Equal(t, "ok", res.Nodes[1].Params["t"])

	assert.True(t, res.Nodes[2].Unsupported)
	assert.Contains(t, res.Nodes[2].Error, "video")

	assert.Equal(t, "<p>home</p>", res.Nodes[3].Code)
	assert.Equal(t, "html", res.Nodes[3].Language)
}

func TestResolve_PlaceholderNodeAndCycle(t *testing.T) {
	data := &stubData{status: map[string]domain.RequirementStatus{
		"a": {Loading: true},
		"b": {Loading: true},
	}}
	page := &domain.Page{Nodes: []domain.Node{
		{
			ID: "a", Type: domain.NodeTypeAtom, DataRequirements: requirement("x"),
			LoadingPlaceholder: &domain.Placeholder{Type: domain.PlaceholderNode, NodeID: "b"},
		},
		{
			ID: "b", Type: domain.NodeTypeAtom, DataRequirements: requirement("y"),
			LoadingPlaceholder: &domain.Placeholder{Type: domain.PlaceholderNode, NodeID: "a"},
		},
		{
			ID: "self", Type: domain.NodeTypeAtom, DataRequirements: requirement("z"),
			LoadingPlaceholder: &domain.Placeholder{Type: domain.PlaceholderNode, NodeID: "self"},
		},
		{
			ID: "skel", Type: domain.NodeTypeAtom, DataRequirements: requirement("w"),
			LoadingPlaceholder: &domain.Placeholder{Type: domain.PlaceholderNode, NodeID: "spinner"},
		},
		{ID: "spinner", Type: domain.NodeTypeAtom, Kind: "spinner", Params: map[string]any{"label": "wait"}},
	}}
	data.set("self", domain.RequirementStatus{Loading: true})
	data.set("skel", domain.RequirementStatus{Loading: true})

	res := runtime.NewResolver(runtime.WithRequirements(data)).Resolve(context.Background(), runtime.Input{Page: page})

	a := res.Nodes[0]
	require.NotNil(t, a.Placeholder)
	require.NotNil(t, a.Placeholder.Node)
	assert.Equal(t, "b", a.Placeholder.Node.ID)
	require.NotNil(t, a.Placeholder.Node.Placeholder)
	cycle := a.Placeholder.Node.Placeholder.Node
	require.NotNil(t, cycle)
	assert.True(t, cycle.Unsupported)
	assert.Contains(t, cycle.Error, domain.ErrPlaceholderCycle.Error())

	self := res.Nodes[2].Placeholder.Node
	require.NotNil(t, self)
	assert.Contains(t, self.Error, domain.ErrPlaceholderCycle.Error())

	spinner := res.Nodes[3].Placeholder.Node
	require.NotNil(t, spinner)
	assert.Equal(t, "wait", spinner.Params["label"])
}

func TestResolve_MaxDepth(t *testing.T) {
	leaf := domain.Node{ID: "s3", Type: domain.NodeTypeSection}
	s2 := domain.Node{ID: "s2", Type: domain.NodeTypeSection, Children: []domain.Node{leaf}}
	s1 := domain.Node{ID: "s1", Type: domain.NodeTypeSection, Children: []domain.Node{s2}}
	page := &domain.Page{Nodes: []domain.Node{{ID: "s0", Type: domain.NodeTypeSection, Children: []domain.Node{s1}}}}

	res := runtime.NewResolver(runtime.WithMaxDepth(2)).Resolve(context.Background(), runtime.Input{Page: page})
	root := res.Nodes[0]
	deepest := root.Find("s3")
	require.NotNil(t, deepest)
	assert.True(t, deepest.Unsupported)
	assert.Contains(t, deepest.Error, domain.ErrMaxDepth.Error())
	assert.False(t, root.Find("s2").Unsupported)
}

func TestResolve_HooksAndResolveNode(t *testing.T) {
	var seen []string
	hooks := domain.LifecycleHooks{
		OnNodeResolve: func(ctx context.Context, e *domain.NodeEvent) {
			seen = append(seen, e.NodeID)
			assert.Equal(t, "sess", e.SessionID)
		},
	}
	page := &domain.Page{Nodes: []domain.Node{
		{ID: "root", Type: domain.NodeTypeSection, Children: []domain.Node{{ID: "child", Type: domain.NodeTypeAtom}}},
	}}
	r := runtime.NewResolver(runtime.WithLifecycleHooks(hooks))

	r.Resolve(context.Background(), runtime.Input{Page: page, SessionID: "sess"})
	assert.ElementsMatch(t, []string{"root", "child"}, seen)

	node, err := r.ResolveNode(context.Background(), runtime.Input{Page: page, SessionID: "sess"}, "child")
	require.NoError(t, err)
	assert.Equal(t, "child", node.ID)

	_, err = r.ResolveNode(context.Background(), runtime.Input{Page: page}, "ghost")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestResolve_DataRequirementSourcesUseGlobalScope(t *testing.T) {
	var got []domain.DataRequirementConfig
	data := requirementsFunc(func(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus {
		got = reqs
		return domain.RequirementStatus{}
	})
	page := &domain.Page{
		Data: map[string]any{"shop": "acme"},
		Nodes: []domain.Node{{
			ID:    "orders",
			Type:  domain.NodeTypeAtom,
			State: nil,
			DataRequirements: []domain.DataRequirementConfig{{
				Key: "orders",
				Source: domain.DataSource{
					Type:     domain.SourceREST,
					Endpoint: "https://api.test/{{ data.shop }}/orders?u={{ user.id }}",
				},
			}},
		}},
	}

	runtime.NewResolver(runtime.WithRequirements(data)).Resolve(context.Background(), runtime.Input{
		Page:    page,
		Context: domain.EvaluationContext{User: map[string]any{"id": "u1"}},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "https://api.test/acme/orders?u=u1", got[0].Source.Endpoint)
	assert.Contains(t, page.Nodes[0].DataRequirements[0].Source.Endpoint, "{{", "the definition stays unresolved")
}

type requirementsFunc func(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus

func (f requirementsFunc) Ensure(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus {
	return f(ctx, nodeID, reqs)
}
