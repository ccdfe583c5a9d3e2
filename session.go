package canopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/canopy/internal/actions"
	"github.com/aretw0/canopy/internal/data"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/google/uuid"
)

// maxSettlePasses bounds the re-render loop of Render.
const maxSettlePasses = 16

// Report is the outcome of one triggered action chain.
type Report = actions.Report

// Step is one recorded action of a Report.
type Step = actions.Step

// Tree is one resolved rendering of a page.
type Tree struct {
	PageID string                 `json:"pageId"`
	Nodes  []*domain.ResolvedNode `json:"nodes"`
	// Loading counts nodes rendered as placeholders.
	Loading int `json:"loading"`
	// Settled is false while fetches, page data or state seeding are pending.
	Settled bool `json:"settled"`
}

// Find returns the first resolved node with the given id.
func (t *Tree) Find(id string) *domain.ResolvedNode {
	for _, n := range t.Nodes {
		if found := n.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Session is a mounted page: its live override store, internal-state store,
// form values and data requirement state. A Session is safe for concurrent use,
// but overlapping triggers are not serialized.
type Session struct {
	ID string

	engine   *Engine
	logger   *slog.Logger
	data     *data.Orchestrator
	resolver *runtime.Resolver

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	page       *domain.Page
	overrides  *memory.NodeStore
	states     *memory.NodeStore
	forms      *memory.Forms
	width      int
	height     int
	breakpoint string
	locale     string
	user       map[string]any
	extra      map[string]any
	origin     string
	preview    bool
	pageData   map[string]any
	pageGen    uint64
	pageDone   chan struct{}
	required   map[string]bool
}

// SessionOption configures a Session at mount time.
type SessionOption func(*Session)

// WithSessionID sets the session id (a random UUID by default).
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.ID = id
	}
}

// WithViewport sets the initial viewport size in pixels.
func WithViewport(width, height int) SessionOption {
	return func(s *Session) {
		s.width, s.height = width, height
	}
}

// WithLocale overrides the page locale.
func WithLocale(locale string) SessionOption {
	return func(s *Session) {
		s.locale = locale
	}
}

// WithUser sets the user scope. It takes precedence over the session provider.
func WithUser(user map[string]any) SessionOption {
	return func(s *Session) {
		s.user = user
	}
}

// WithOrigin sets the page origin used to detect cross-origin navigation.
func WithOrigin(origin string) SessionOption {
	return func(s *Session) {
		s.origin = origin
	}
}

// WithPreview marks the session as running inside an editor preview.
func WithPreview(preview bool) SessionOption {
	return func(s *Session) {
		s.preview = preview
	}
}

// Mount creates a page session and starts loading the page-level data.
func (e *Engine) Mount(ctx context.Context, page *domain.Page, opts ...SessionOption) (*Session, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", domain.ErrPageNotFound)
	}
	s := &Session{
		engine:    e,
		page:      page,
		overrides: memory.NewNodeStore(),
		states:    memory.NewNodeStore(),
		forms:     memory.NewForms(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.logger = e.logger.With("session_id", s.ID)
	s.data = e.newOrchestrator(s.ID)
	s.resolver = e.newResolver(s.data)
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if s.user == nil && e.sessions != nil {
		info, err := e.sessions.GetSession(ctx)
		if err != nil {
			s.logger.Warn("session provider failed", "error", err)
		} else {
			s.user = info.User
			if info.Shop != nil {
				s.extra = map[string]any{"shop": info.Shop}
			}
		}
	}

	s.mu.Lock()
	s.loadPageDataLocked()
	s.mu.Unlock()

	s.logger.Debug("page mounted", "page_id", page.ID)
	return s, nil
}

// Page returns the mounted page document.
func (s *Session) Page() *domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Resolve runs a single resolution pass. It never blocks on fetches:
// pending nodes come back as loading placeholders.
func (s *Session) Resolve(ctx context.Context) *Tree {
	in, loading := s.input()
	res := s.resolver.Resolve(ctx, in)
	s.release(res.Required)
	return &Tree{
		PageID:  in.Page.ID,
		Nodes:   res.Nodes,
		Loading: res.Loading,
		Settled: res.Loading == 0 && res.Materialized == 0 && !loading && s.data.Pending() == 0,
	}
}

// release tears down the requirement state of nodes that carried data
// requirements in the previous pass but are gone from this one, such as
// repeated children dropped by a filter or limit change.
func (s *Session) release(required []string) {
	next := make(map[string]bool, len(required))
	for _, id := range required {
		next[id] = true
	}
	s.mu.Lock()
	prev := s.required
	s.required = next
	s.mu.Unlock()

	for id := range prev {
		if !next[id] {
			s.logger.Debug("releasing node requirements", "node_id", id)
			s.data.Release(id)
		}
	}
}

// Render resolves the page, waiting for fetches and page data and
// re-resolving until nothing is loading. It returns the last tree with
// ctx's error if ctx ends first.
func (s *Session) Render(ctx context.Context) (*Tree, error) {
	var t *Tree
	for pass := 0; pass < maxSettlePasses; pass++ {
		t = s.Resolve(ctx)
		if t.Settled {
			return t, nil
		}
		if err := s.Wait(ctx); err != nil {
			return t, err
		}
	}
	s.logger.Warn("page did not settle", "passes", maxSettlePasses, "loading", t.Loading)
	return t, nil
}

// Wait blocks until in-flight fetches and the page data load have settled.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.pageDone
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.data.Wait(ctx)
}

// Trigger runs the action chain bound to event on the node nodeID.
// The node is looked up in the resolved tree, so overrides and repeated
// children are taken into account. A node without handlers for event yields
// an empty report.
func (s *Session) Trigger(ctx context.Context, nodeID, event string, aux domain.AuxContext) (*Report, error) {
	t := s.Resolve(ctx)
	n := t.Find(nodeID)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	chain := n.EventHandlers[event]
	if len(chain) == 0 {
		s.logger.Debug("no handlers for event", "node_id", nodeID, "event", event)
		return &Report{TriggerNodeID: nodeID}, nil
	}

	env := s.env()
	env.Item = n.Scope
	if aux.FormData == nil {
		aux.FormData = env.Forms.Values(nodeID)
	}
	s.logger.Debug("event triggered", "node_id", nodeID, "event", event, "actions", len(chain))
	return s.engine.actions.Run(ctx, env, chain, nodeID, aux), nil
}

// Run executes an arbitrary action list on behalf of triggerNodeID.
func (s *Session) Run(ctx context.Context, chain []domain.Action, triggerNodeID string, aux domain.AuxContext) *Report {
	return s.engine.actions.Run(ctx, s.env(), chain, triggerNodeID, aux)
}

// SetViewport updates the viewport size; the active breakpoint follows the width
// unless one was set with SetBreakpoint.
func (s *Session) SetViewport(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// SetBreakpoint forces the active breakpoint. An empty name derives it from the width again.
func (s *Session) SetBreakpoint(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakpoint = name
}

// SetLocale switches the active locale.
func (s *Session) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
}

// SetFormValues merges values into the form scope of formID.
func (s *Session) SetFormValues(formID string, values map[string]any) {
	s.mu.Lock()
	forms := s.forms
	s.mu.Unlock()
	forms.Set(formID, values)
}

// State returns a copy of the internal state of nodeID.
func (s *Session) State(nodeID string) (map[string]any, bool) {
	s.mu.Lock()
	states := s.states
	s.mu.Unlock()
	return states.Get(nodeID)
}

// Override returns a copy of the live override patch of nodeID.
func (s *Session) Override(nodeID string) (map[string]any, bool) {
	s.mu.Lock()
	overrides := s.overrides
	s.mu.Unlock()
	return overrides.Get(nodeID)
}

// StoreSnapshot is a copy of the runtime stores of a session.
type StoreSnapshot struct {
	Overrides domain.Snapshot `json:"overrides"`
	States    domain.Snapshot `json:"states"`
}

// Snapshot copies the live override and internal-state stores.
func (s *Session) Snapshot() StoreSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreSnapshot{Overrides: s.overrides.Snapshot(), States: s.states.Snapshot()}
}

// Navigate replaces the mounted page. Overrides, internal state, form values
// and data requirement state of the previous page are dropped.
func (s *Session) Navigate(ctx context.Context, page *domain.Page) error {
	if page == nil {
		return fmt.Errorf("%w: nil page", domain.ErrPageNotFound)
	}
	s.mu.Lock()
	s.page = page
	s.overrides.Clear()
	s.states.Clear()
	s.forms = memory.NewForms()
	s.pageData = nil
	s.required = nil
	s.loadPageDataLocked()
	s.mu.Unlock()

	s.logger.Debug("navigated", "page_id", page.ID)
	return s.data.Reset(ctx)
}

// Refetch reloads the page-level data context and waits for it.
func (s *Session) Refetch(ctx context.Context) error {
	loader := s.engine.pageData
	if loader == nil {
		return nil
	}
	s.mu.Lock()
	page, gen := s.page, s.pageGen
	s.mu.Unlock()

	values, err := loader.Load(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to load page data: %w", err)
	}
	s.mu.Lock()
	if s.pageGen == gen {
		s.pageData = values
	}
	s.mu.Unlock()
	return nil
}

// Close stops background work. Results of fetches still in flight are dropped.
func (s *Session) Close() error {
	s.cancel()
	s.data.Forget()
	return nil
}

// loadPageDataLocked starts the page data load in the background. Callers hold s.mu.
func (s *Session) loadPageDataLocked() {
	s.pageGen++
	loader := s.engine.pageData
	if loader == nil {
		s.pageDone = nil
		return
	}
	gen, page := s.pageGen, s.page
	done := make(chan struct{})
	s.pageDone = done

	go func() {
		defer close(done)
		values, err := loader.Load(s.ctx, page)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pageGen != gen {
			return
		}
		s.pageDone = nil
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("failed to load page data", "error", err)
			}
			return
		}
		s.pageData = values
	}()
}

func (s *Session) scopes() domain.EvaluationContext {
	d := domain.CloneMap(s.page.Data)
	if d == nil {
		d = map[string]any{}
	}
	d = domain.DeepMerge(d, s.pageData)

	viewport := map[string]any{
		"width":      float64(s.width),
		"height":     float64(s.height),
		"breakpoint": s.activeBreakpoint(),
	}
	page := s.page.Meta()
	page["locale"] = s.activeLocale()
	return domain.EvaluationContext{
		Data:     d,
		Page:     page,
		Site:     s.page.Site,
		User:     s.user,
		Viewport: viewport,
		Extra:    s.extra,
	}
}

func (s *Session) activeBreakpoint() string {
	if s.breakpoint != "" {
		return s.breakpoint
	}
	return s.page.BreakpointFor(s.width)
}

func (s *Session) activeLocale() string {
	if s.locale != "" {
		return s.locale
	}
	return s.page.Locale
}

func (s *Session) input() (runtime.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loading := s.pageDone != nil
	return runtime.Input{
		SessionID:       s.ID,
		Page:            s.page,
		Breakpoint:      s.activeBreakpoint(),
		Locale:          s.activeLocale(),
		Overrides:       s.overrides,
		States:          s.states,
		Context:         s.scopes(),
		PageDataLoading: loading,
	}, loading
}

func (s *Session) env() *actions.Env {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &actions.Env{
		SessionID: s.ID,
		Context:   s.scopes(),
		Overrides: s.overrides,
		States:    s.states,
		Forms:     s.forms,
		Origin:    s.origin,
		Preview:   s.preview,
		Refetch:   s.Refetch,
	}
}
