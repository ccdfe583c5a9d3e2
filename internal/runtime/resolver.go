package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
	"github.com/aretw0/canopy/pkg/ports"
)

// DefaultMaxDepth bounds nesting (children, repeaters and placeholder nodes).
const DefaultMaxDepth = 64

// Requirements supplies node-level fetched data.
// internal/data.Orchestrator implements it.
type Requirements interface {
	Ensure(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus
}

// Resolver turns page nodes into resolved nodes: overrides, visibility,
// repeaters, data requirements and bindings.
type Resolver struct {
	eval     *expr.Evaluator
	conds    *Conditions
	data     Requirements
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	kinds    map[string]bool
	maxDepth int
	handlers map[domain.NodeType]nodeHandler
}

// nodeHandler resolves the type-specific part of a visible, loaded node.
type nodeHandler func(r *Resolver, p *pass, n *domain.Node, c domain.EvaluationContext, f frame, out *domain.ResolvedNode)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithEvaluator shares an expression evaluator (and its parse cache).
func WithEvaluator(eval *expr.Evaluator) Option {
	return func(r *Resolver) {
		r.eval = eval
	}
}

// WithRequirements wires the data requirement orchestrator.
func WithRequirements(data Requirements) Option {
	return func(r *Resolver) {
		r.data = data
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Resolver) {
		r.hooks = hooks
	}
}

// WithKinds restricts atoms and components to the given widget kinds.
// Without it every kind is accepted.
func WithKinds(kinds ...string) Option {
	return func(r *Resolver) {
		if r.kinds == nil {
			r.kinds = make(map[string]bool)
		}
		for _, k := range kinds {
			r.kinds[k] = true
		}
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		maxDepth: DefaultMaxDepth,
		handlers: map[domain.NodeType]nodeHandler{
			domain.NodeTypeSection:   resolveSection,
			domain.NodeTypeAtom:      resolveWidget,
			domain.NodeTypeComponent: resolveWidget,
			domain.NodeTypeCodeBlock: resolveCodeBlock,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.eval == nil {
		r.eval = expr.New(r.logger)
	}
	r.conds = NewConditions(r.eval, r.logger)
	return r
}

// Evaluator returns the expression evaluator used by the resolver.
func (r *Resolver) Evaluator() *expr.Evaluator { return r.eval }

// Conditions returns the condition evaluator used by the resolver.
func (r *Resolver) Conditions() *Conditions { return r.conds }

// Input carries everything one resolution pass reads.
type Input struct {
	SessionID  string
	Page       *domain.Page
	Breakpoint string
	Locale     string

	Overrides ports.OverrideStore
	States    ports.StateStore

	// Context holds the page-wide scopes (data, site, page, user, viewport).
	Context domain.EvaluationContext

	// PageDataLoading is true while the page-level data context is being fetched.
	PageDataLoading bool
}

// Result is the outcome of one resolution pass.
type Result struct {
	Nodes []*domain.ResolvedNode

	// Materialized counts nodes whose initial state was seeded during the pass.
	// Those nodes render as loading until the next pass.
	Materialized int

	// Loading counts nodes rendered as placeholders.
	Loading int

	// Required lists the ids of nodes whose data requirements were ensured,
	// in resolution order.
	Required []string
}

type pass struct {
	ctx    context.Context
	in     Input
	index  map[string]*domain.Node
	states domain.Snapshot
	result *Result
}

type frame struct {
	depth        int
	path         []string
	parentState  map[string]any
	inheritState bool
}

func (f frame) child(id string, state map[string]any) frame {
	path := make([]string, len(f.path), len(f.path)+1)
	copy(path, f.path)
	return frame{
		depth:       f.depth + 1,
		path:        append(path, id),
		parentState: state,
	}
}

// Resolve resolves every top-level node of the page, ordered by Order.
// It never fails: problems are isolated into unsupported nodes.
func (r *Resolver) Resolve(ctx context.Context, in Input) *Result {
	p := r.newPass(ctx, &in)
	for _, n := range ordered(in.Page.Nodes) {
		p.result.Nodes = append(p.result.Nodes, r.resolve(p, n, in.Context, frame{}))
	}
	return p.result
}

// ResolveNode resolves a single node of the page, looked up by id.
func (r *Resolver) ResolveNode(ctx context.Context, in Input, nodeID string) (*domain.ResolvedNode, error) {
	p := r.newPass(ctx, &in)
	n, ok := p.index[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	return r.resolve(p, n, in.Context, frame{}), nil
}

func (r *Resolver) newPass(ctx context.Context, in *Input) *pass {
	if in.Page == nil {
		in.Page = &domain.Page{}
	}
	if in.Overrides == nil {
		in.Overrides = memory.NewNodeStore()
	}
	if in.States == nil {
		in.States = memory.NewNodeStore()
	}
	if in.Context.Page == nil {
		in.Context.Page = in.Page.Meta()
	}
	if in.Context.Site == nil {
		in.Context.Site = in.Page.Site
	}
	if in.Context.Data == nil {
		in.Context.Data = in.Page.Data
	}
	if in.Locale == "" {
		in.Locale = in.Page.Locale
	}
	return &pass{
		ctx:    ctx,
		in:     *in,
		index:  in.Page.Index(),
		states: in.States.Snapshot(),
		result: &Result{},
	}
}

func (r *Resolver) resolve(p *pass, n *domain.Node, c domain.EvaluationContext, f frame) (out *domain.ResolvedNode) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("node resolution panicked", "node_id", n.ID, "panic", rec)
			out = unsupported(n, fmt.Errorf("resolution panic: %v", rec))
		}
	}()

	if f.depth > r.maxDepth {
		r.logger.Warn("resolution depth exceeded", "node_id", n.ID, "max_depth", r.maxDepth)
		return unsupported(n, domain.ErrMaxDepth)
	}

	live, _ := p.in.Overrides.Get(n.ID)
	eff, err := ApplyOverrides(n, p.in.Breakpoint, p.in.Locale, live)
	if err != nil {
		r.logger.Error("failed to apply overrides", "node_id", n.ID, "error", err)
		return unsupported(n, err)
	}
	global := c.Global()
	r.resolveSources(eff, &global)

	state, has := p.in.States.Get(eff.ID)
	materializing := false
	if !has {
		state = domain.CloneMap(eff.State)
		if len(eff.State) > 0 && p.in.States.Init(eff.ID, eff.State) {
			materializing = true
			p.result.Materialized++
		}
	}
	if state == nil {
		state = map[string]any{}
	}

	c.ParentState = f.parentState
	if !f.inheritState {
		c.State = state
	}
	c.States = p.states

	var status domain.RequirementStatus
	if len(eff.DataRequirements) > 0 && r.data != nil {
		status = r.data.Ensure(p.ctx, eff.ID, eff.DataRequirements)
		p.result.Required = append(p.result.Required, eff.ID)
	}
	c.NodeData = status.Values
	if c.NodeData == nil {
		c.NodeData = map[string]any{}
	}

	loading := status.Loading || materializing ||
		(p.in.PageDataLoading && r.references(eff, domain.ScopeData))

	out = &domain.ResolvedNode{
		ID:            eff.ID,
		Type:          eff.Type,
		Kind:          eff.Kind,
		Loading:       loading,
		EventHandlers: eff.EventHandlers,
		DataErrors:    status.Errors,
	}
	if c.Repeater != nil {
		owner := eff.ID
		if f.inheritState {
			owner = c.Repeater.ParentID
		}
		out.Scope = &domain.ItemScope{Item: c.Item, Index: c.Index, Repeater: *c.Repeater, StateNodeID: owner}
	}
	out.Visible = r.Visible(eff.Visibility, &c, loading)
	defer r.emitNode(p, out)

	if !out.Visible {
		return out
	}
	if loading {
		p.result.Loading++
		out.Placeholder = r.placeholder(p, eff, c, f)
		return out
	}

	handler, ok := r.handlers[eff.Type]
	if !ok {
		r.logger.Warn("unsupported node type", "node_id", eff.ID, "node_type", eff.Type)
		return markUnsupported(out, fmt.Errorf("%w: %q", domain.ErrUnsupportedNode, eff.Type))
	}

	out.Positioning = r.eval.ResolveMap(eff.Positioning, &c)
	out.InteractionStates = r.eval.ResolveMap(eff.InteractionStates, &c)
	for _, a := range eff.Animations {
		out.Animations = append(out.Animations, r.eval.ResolveMap(a, &c))
	}
	handler(r, p, eff, c, f.child(eff.ID, state), out)
	return out
}

func (r *Resolver) emitNode(p *pass, out *domain.ResolvedNode) {
	if r.hooks.OnNodeResolve == nil {
		return
	}
	r.hooks.OnNodeResolve(p.ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now(),
			Type:      domain.EventNodeResolve,
			SessionID: p.in.SessionID,
		},
		NodeID:   out.ID,
		NodeType: out.Type,
		Visible:  out.Visible,
		Loading:  out.Loading,
	})
}

func resolveWidget(r *Resolver, p *pass, n *domain.Node, c domain.EvaluationContext, f frame, out *domain.ResolvedNode) {
	if len(r.kinds) > 0 && !r.kinds[n.Kind] {
		r.logger.Warn("unsupported node kind", "node_id", n.ID, "node_type", n.Type, "kind", n.Kind)
		markUnsupported(out, fmt.Errorf("%w: %s %q", domain.ErrUnsupportedNode, n.Type, n.Kind))
		return
	}
	out.Params = r.eval.ResolveMap(n.Params, &c)
}

func resolveCodeBlock(r *Resolver, p *pass, n *domain.Node, c domain.EvaluationContext, f frame, out *domain.ResolvedNode) {
	out.Params = r.eval.ResolveMap(n.Params, &c)
	out.Code = expr.Stringify(r.eval.Resolve(n.Code, &c))
	out.Language = n.Language
}

func resolveSection(r *Resolver, p *pass, n *domain.Node, c domain.EvaluationContext, f frame, out *domain.ResolvedNode) {
	out.Params = r.eval.ResolveMap(n.Params, &c)

	if n.Repeater != nil {
		for _, rc := range r.expand(n, c, f.parentState, p.in.Locale) {
			cf := f
			cf.inheritState = true
			out.Children = append(out.Children, r.resolve(p, rc.node, rc.ctx, cf))
		}
		return
	}
	for _, child := range ordered(n.Children) {
		out.Children = append(out.Children, r.resolve(p, child, c, f))
	}
}

func (r *Resolver) placeholder(p *pass, n *domain.Node, c domain.EvaluationContext, f frame) *domain.ResolvedPlaceholder {
	cfg := n.LoadingPlaceholder
	if cfg == nil {
		return &domain.ResolvedPlaceholder{Type: domain.PlaceholderSkeleton}
	}
	out := &domain.ResolvedPlaceholder{
		Type:   cfg.Type,
		Config: r.eval.ResolveMap(cfg.Config, &c),
	}
	if cfg.Type != domain.PlaceholderNode {
		return out
	}

	target, ok := p.index[cfg.NodeID]
	switch {
	case cfg.NodeID == n.ID || slices.Contains(f.path, cfg.NodeID):
		r.logger.Warn("placeholder cycle", "node_id", n.ID, "placeholder_id", cfg.NodeID)
		out.Node = unsupported(&domain.Node{ID: cfg.NodeID}, fmt.Errorf("%w: %s -> %s", domain.ErrPlaceholderCycle, n.ID, cfg.NodeID))
	case !ok:
		out.Node = unsupported(&domain.Node{ID: cfg.NodeID}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, cfg.NodeID))
	default:
		out.Node = r.resolve(p, target, c, f.child(n.ID, f.parentState))
	}
	return out
}

func unsupported(n *domain.Node, err error) *domain.ResolvedNode {
	return markUnsupported(&domain.ResolvedNode{
		ID:      n.ID,
		Type:    n.Type,
		Kind:    n.Kind,
		Visible: true,
	}, err)
}

func markUnsupported(out *domain.ResolvedNode, err error) *domain.ResolvedNode {
	out.Unsupported = true
	out.Error = err.Error()
	out.Params = nil
	out.Children = nil
	return out
}

// ordered returns pointers to nodes sorted by Order, keeping document order for ties.
func ordered(nodes []domain.Node) []*domain.Node {
	out := make([]*domain.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
