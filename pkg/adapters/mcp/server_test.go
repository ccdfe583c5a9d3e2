package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/canopy"
	mcpadapter "github.com/aretw0/canopy/pkg/adapters/mcp"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pages() []*domain.Page {
	return []*domain.Page{
		{
			ID: "home",
			Nodes: []domain.Node{
				{
					ID:     "counter",
					Type:   domain.NodeTypeAtom,
					Kind:   "text",
					State:  map[string]any{"count": float64(0)},
					Params: map[string]any{"text": "{{ state.count }}"},
				},
				{
					ID:   "inc",
					Type: domain.NodeTypeAtom,
					Kind: "button",
					EventHandlers: map[string][]domain.Action{
						"click": {{
							ID:   "bump",
							Type: domain.ActionUpdateState,
							Params: map[string]any{
								"targetNodeId": "counter",
								"state":        map[string]any{"count": "{{ states.counter.count + 1 }}"},
							},
						}},
					},
				},
			},
		},
		{
			ID:    "about",
			Nodes: []domain.Node{{ID: "title", Type: domain.NodeTypeAtom, Kind: "text", Params: map[string]any{"text": "About"}}},
		},
	}
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	loader, err := memory.NewFromPages(pages()...)
	require.NoError(t, err)
	srv := mcpadapter.NewServer(canopy.New(canopy.WithLoader(loader)))

	c, err := client.NewInProcessClient(srv.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "canopy-test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return tc.Text
}

func page(t *testing.T, res *mcp.CallToolResult) mcpadapter.PageResponse {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out mcpadapter.PageResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.NotNil(t, out.Tree)
	return out
}

func TestServer_ListTools(t *testing.T) {
	c := newClient(t)
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"render_page", "trigger_event", "navigate", "get_graph"}, names)
}

func TestServer_SessionTools(t *testing.T) {
	c := newClient(t)

	mounted := page(t, call(t, c, "render_page", map[string]any{"page_id": "home", "width": 390}))
	require.NotEmpty(t, mounted.SessionID)
	assert.Equal(t, "home", mounted.Tree.PageID)
	assert.Equal(t, float64(0), mounted.Tree.Find("counter").Params["text"])

	triggered := page(t, call(t, c, "trigger_event", map[string]any{
		"session_id": mounted.SessionID, "node_id": "inc", "event": "click",
	}))
	require.NotNil(t, triggered.Report)
	assert.Equal(t, []string{"bump"}, triggered.Report.Executed())
	assert.Equal(t, float64(1), triggered.Tree.Find("counter").Params["text"])

	again := page(t, call(t, c, "render_page", map[string]any{"session_id": mounted.SessionID}))
	assert.Equal(t, float64(1), again.Tree.Find("counter").Params["text"])

	graph := text(t, call(t, c, "get_graph", map[string]any{"session_id": mounted.SessionID}))
	assert.Contains(t, graph, "graph TD")
	assert.Contains(t, graph, `inc -. "click: updateState" .-> counter`)

	moved := page(t, call(t, c, "navigate", map[string]any{"session_id": mounted.SessionID, "page_id": "about"}))
	assert.Equal(t, "about", moved.Tree.PageID)
	assert.Equal(t, "About", moved.Tree.Find("title").Params["text"])
}

func TestServer_GraphWithoutSession(t *testing.T) {
	c := newClient(t)
	out := text(t, call(t, c, "get_graph", map[string]any{"page_id": "about"}))
	assert.Contains(t, out, `title("title <br/> text")`)
	assert.NotContains(t, out, "classDef")
}

func TestServer_ToolErrors(t *testing.T) {
	c := newClient(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"nothing to render", "render_page", map[string]any{}, "session_id or page_id is required"},
		{"unknown page", "render_page", map[string]any{"page_id": "ghost"}, "ghost"},
		{"unknown session", "trigger_event", map[string]any{"session_id": "nope", "node_id": "inc", "event": "click"}, domain.ErrSessionNotFound.Error()},
		{"navigate to unknown page", "navigate", map[string]any{"session_id": "nope", "page_id": "ghost"}, "ghost"},
		{"graph of unknown page", "get_graph", map[string]any{"page_id": "ghost"}, "load failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, c, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.want)
		})
	}
}
