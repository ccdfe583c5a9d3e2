package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/testutils"
	"github.com/aretw0/canopy/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterYAML = `
id: home
nodes:
  - id: counter
    type: atom
    kind: text
    state:
      count: 0
    params:
      text: "{{ state.count }}"
  - id: inc
    type: atom
    kind: button
    eventHandlers:
      click:
        - id: bump
          type: updateState
          params:
            targetNodeId: counter
            state:
              count: "{{ states.counter.count + 1 }}"
`

func TestDetermineEntryPage(t *testing.T) {
	page := `{"id":"x","nodes":[]}`

	t.Run("Prefers home", func(t *testing.T) {
		dir := testutils.SetupPagesDir(t, map[string]string{"home.json": page, "index.json": page})
		got, err := DetermineEntryPage(dir)
		require.NoError(t, err)
		assert.Equal(t, "home", got)
	})

	t.Run("Fallback to index", func(t *testing.T) {
		dir := testutils.SetupPagesDir(t, map[string]string{"index.yaml": page, "about.json": page})
		got, err := DetermineEntryPage(dir)
		require.NoError(t, err)
		assert.Equal(t, "index", got)
	})

	t.Run("Fallback to directory name", func(t *testing.T) {
		root := testutils.SetupPagesDir(t, map[string]string{"checkout/checkout.json": page, "checkout/a.json": page})
		dir := filepath.Join(root, "checkout")
		got, err := DetermineEntryPage(dir)
		require.NoError(t, err)
		assert.Equal(t, "checkout", got)
	})

	t.Run("Fallback to first page", func(t *testing.T) {
		dir := testutils.SetupPagesDir(t, map[string]string{"b.json": page, "a.json": page})
		got, err := DetermineEntryPage(dir)
		require.NoError(t, err)
		assert.Equal(t, "a", got)
	})

	t.Run("Empty directory", func(t *testing.T) {
		_, err := DetermineEntryPage(t.TempDir())
		assert.Error(t, err)
	})
}

func TestRender_JSON(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	var out bytes.Buffer

	err := Render(context.Background(), RenderOptions{
		EngineOptions: EngineOptions{Dir: dir},
		NodeID:        "inc",
		Event:         "click",
	}, &out)
	require.NoError(t, err)

	var resp runner.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Equal(t, []string{"bump"}, resp.Report.Executed())
	assert.Equal(t, float64(1), resp.Tree.Find("counter").Params["text"])
}

func TestRender_Errors(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	ctx := context.Background()

	err := Render(ctx, RenderOptions{EngineOptions: EngineOptions{Dir: dir}, Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown output format")

	err = Render(ctx, RenderOptions{EngineOptions: EngineOptions{Dir: dir}, PageID: "missing"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "mount missing")

	err = Render(ctx, RenderOptions{EngineOptions: EngineOptions{Dir: dir}, User: "{"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "--user")

	err = Render(ctx, RenderOptions{EngineOptions: EngineOptions{Dir: filepath.Join(dir, "nope")}}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "pages directory")
}

func TestRender_Pretty(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	var out bytes.Buffer

	err := Render(context.Background(), RenderOptions{
		EngineOptions: EngineOptions{Dir: dir},
		Format:        FormatPretty,
		NodeID:        "inc",
		Event:         "click",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "counter")
	assert.Contains(t, out.String(), "bump")
}

func TestRunStream(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	in := strings.NewReader(`{"type":"trigger","nodeId":"inc","event":"click"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, RunStream(context.Background(), RenderOptions{EngineOptions: EngineOptions{Dir: dir}}, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var last runner.Output
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, "tree", last.Type)
	assert.Equal(t, float64(1), last.Tree.Find("counter").Params["text"])
}

func TestValidate(t *testing.T) {
	bad := `{"id":"bad","nodes":[{"id":"a","type":"atom"},{"id":"a","type":"widget"}]}`
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML, "bad.json": bad})
	var out bytes.Buffer

	err := Validate(dir, nil, nil, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "✘ bad")
	assert.Contains(t, out.String(), "✔ home")

	out.Reset()
	require.NoError(t, Validate(dir, []string{"home"}, nil, &out))
}

func TestGraph(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	var out bytes.Buffer

	require.NoError(t, Graph(context.Background(), RenderOptions{EngineOptions: EngineOptions{Dir: dir}}, true, &out))
	assert.Contains(t, out.String(), "graph TD")
	assert.Contains(t, out.String(), `inc -. "click: updateState" .-> counter`)
}

func TestServeMCP_Errors(t *testing.T) {
	dir := testutils.SetupPagesDir(t, map[string]string{"home.yaml": counterYAML})
	ctx := context.Background()

	err := ServeMCP(ctx, MCPOptions{EngineOptions: EngineOptions{Dir: dir}, Transport: "pigeon"})
	assert.ErrorContains(t, err, `unknown transport "pigeon"`)

	err = ServeMCP(ctx, MCPOptions{EngineOptions: EngineOptions{Dir: filepath.Join(dir, "missing")}})
	assert.ErrorContains(t, err, "pages directory")
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.Error(t, handleExecutionError(assert.AnError))
}

func TestCacheMiddlewares(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		t.Setenv("CANOPY_CACHE_KEY", "")
		mws, err := cacheMiddlewares(EngineOptions{}, logging.NewNop())
		require.NoError(t, err)
		assert.Empty(t, mws)
	})

	t.Run("PII And Encryption", func(t *testing.T) {
		key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
		t.Setenv("CANOPY_CACHE_KEY", key)
		t.Setenv("CANOPY_CACHE_FALLBACK_KEYS", " "+key+", ")
		mws, err := cacheMiddlewares(EngineOptions{CachePII: []string{"email"}}, logging.NewNop())
		require.NoError(t, err)
		assert.Len(t, mws, 2)
	})

	t.Run("Bad Key", func(t *testing.T) {
		t.Setenv("CANOPY_CACHE_KEY", "c2hvcnQ=")
		_, err := cacheMiddlewares(EngineOptions{}, logging.NewNop())
		assert.ErrorContains(t, err, "CANOPY_CACHE_KEY")
	})

	t.Run("Bad Pattern", func(t *testing.T) {
		t.Setenv("CANOPY_CACHE_KEY", "")
		_, err := cacheMiddlewares(EngineOptions{CachePII: []string{"("}}, logging.NewNop())
		assert.Error(t, err)
	})
}
