package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/registry"
	"github.com/google/uuid"
)

// Engine runs event-triggered action chains.
type Engine struct {
	eval   *expr.Evaluator
	conds  *runtime.Conditions
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	transport ports.QueryTransport
	submitter ports.Submitter
	cart      ports.Cart
	navigator ports.Navigator
	custom    *registry.Registry

	handlers map[domain.ActionType]handler
}

// Env is the page session an action chain runs against.
type Env struct {
	SessionID string
	// Context holds the page-wide scopes. State scopes are filled from States.
	Context   domain.EvaluationContext
	Overrides ports.OverrideStore
	States    ports.StateStore
	Forms     ports.FormScope
	// Item is the repeater scope of the trigger node, nil outside repeaters.
	Item *domain.ItemScope

	// Origin is the page origin (scheme://host) used to detect cross-origin navigation.
	Origin string
	// Preview routes navigation through the host instead of leaving the page.
	Preview bool
	// Refetch reloads the page-level data context.
	Refetch func(ctx context.Context) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEvaluator shares an expression evaluator.
func WithEvaluator(eval *expr.Evaluator) Option {
	return func(e *Engine) {
		e.eval = eval
	}
}

// WithLifecycleHooks registers OnActionStart and OnActionEnd.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithQueryTransport wires executeRQL.
func WithQueryTransport(t ports.QueryTransport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithSubmitter wires submitData.
func WithSubmitter(s ports.Submitter) Option {
	return func(e *Engine) {
		e.submitter = s
	}
}

// WithCart wires addItemToCart.
func WithCart(c ports.Cart) Option {
	return func(e *Engine) {
		e.cart = c
	}
}

// WithNavigator wires navigate.
func WithNavigator(n ports.Navigator) Option {
	return func(e *Engine) {
		e.navigator = n
	}
}

// WithRegistry adds host-defined action types. Built-in types cannot be replaced.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.custom = reg
	}
}

// New creates an action engine.
func New(opts ...Option) *Engine {
	e := &Engine{handlers: builtins()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.eval == nil {
		e.eval = expr.New(e.logger)
	}
	e.conds = runtime.NewConditions(e.eval, e.logger)
	return e
}

// Report records what a run did, in execution order.
type Report struct {
	RunID         string `json:"runId"`
	TriggerNodeID string `json:"triggerNodeId"`
	Steps         []Step `json:"steps"`
}

// Step is one action of a run. Branch steps follow their parent.
type Step struct {
	ActionID string            `json:"actionId"`
	Type     domain.ActionType `json:"type"`
	// Path locates the step: "", "onSuccess" or "onError" segments joined by '/'.
	Path     string        `json:"path,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Success  bool          `json:"success"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Executed returns the ids of the steps that were not skipped.
func (r *Report) Executed() []string {
	var ids []string
	for _, s := range r.Steps {
		if !s.Skipped {
			ids = append(ids, s.ActionID)
		}
	}
	return ids
}

// Failed returns the steps that did not succeed.
func (r *Report) Failed() []Step {
	var out []Step
	for _, s := range r.Steps {
		if !s.Skipped && !s.Success {
			out = append(out, s)
		}
	}
	return out
}

// Run executes actions in order. A failing or panicking action routes to its
// onError branch and never stops its siblings. Run returns early only when
// ctx is done.
func (e *Engine) Run(ctx context.Context, env *Env, actions []domain.Action, triggerNodeID string, aux domain.AuxContext) *Report {
	if env == nil {
		env = &Env{}
	}
	rep := &Report{RunID: uuid.NewString(), TriggerNodeID: triggerNodeID}
	r := &run{engine: e, env: env, trigger: triggerNodeID, report: rep}
	r.list(ctx, actions, aux, "")
	return rep
}

// run is the state of one Run call.
type run struct {
	engine  *Engine
	env     *Env
	trigger string
	report  *Report
}

// call is what a handler sees.
type call struct {
	env     *Env
	action  domain.Action
	params  map[string]any
	trigger string
}

// actionFailure carries the payload of a failed step into the error branch.
type actionFailure struct {
	err     error
	payload any
}

func (f *actionFailure) Error() string { return f.err.Error() }
func (f *actionFailure) Unwrap() error { return f.err }

func (r *run) list(ctx context.Context, actions []domain.Action, aux domain.AuxContext, path string) {
	for _, a := range actions {
		if ctx.Err() != nil {
			r.engine.logger.Warn("action chain cancelled", "run_id", r.report.RunID, "action_id", a.ID, "error", ctx.Err())
			return
		}
		r.step(ctx, a, aux, path)
	}
}

func (r *run) step(ctx context.Context, a domain.Action, aux domain.AuxContext, path string) {
	e := r.engine
	logger := e.logger.With("run_id", r.report.RunID, "action_id", a.ID, "action_type", a.Type)

	scope := r.scope(aux)
	params := e.eval.ResolveMap(a.Params, &scope)

	if len(a.Conditions) > 0 && !e.conds.All(a.Conditions, a.ConditionLogic, &scope) {
		logger.Debug("action skipped")
		r.report.Steps = append(r.report.Steps, Step{ActionID: a.ID, Type: a.Type, Path: path, Skipped: true})
		e.emit(ctx, domain.EventActionEnd, r, a, true, true, 0, nil)
		return
	}

	e.emit(ctx, domain.EventActionStart, r, a, false, false, 0, nil)
	begin := time.Now()

	if a.DelayMs > 0 {
		if err := sleep(ctx, time.Duration(a.DelayMs)*time.Millisecond); err != nil {
			logger.Warn("action delay interrupted", "error", err)
			r.record(a, path, nil, err, time.Since(begin))
			return
		}
	}

	result, err := r.invoke(ctx, call{env: r.env, action: a, params: params, trigger: r.trigger})
	d := time.Since(begin)
	r.record(a, path, result, err, d)
	e.emit(ctx, domain.EventActionEnd, r, a, false, err == nil, d, err)

	key := resultKey(a, params)
	if err == nil {
		logger.Debug("action succeeded", "duration", d)
		if len(a.OnSuccess) > 0 {
			r.list(ctx, a.OnSuccess, aux.WithResult(key, result), join(path, "onSuccess"))
		}
		return
	}

	logger.Warn("action failed", "error", err)
	if len(a.OnError) > 0 {
		next := aux.WithResult(key, result)
		next.Error = map[string]any{"message": err.Error(), "payload": payload(err)}
		r.list(ctx, a.OnError, next, join(path, "onError"))
	}
}

// invoke runs the side effect. Panics become errors.
func (r *run) invoke(ctx context.Context, c call) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &domain.ActionError{ActionID: c.action.ID, Type: c.action.Type, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if h, ok := r.engine.handlers[c.action.Type]; ok {
		result, err = h(ctx, r.engine, c)
	} else if r.engine.custom != nil && r.engine.custom.Has(c.action.Type) {
		result, err = r.engine.custom.Execute(ctx, c.action.Type, c.params)
	} else {
		err = fmt.Errorf("%w: %q", domain.ErrUnknownAction, c.action.Type)
	}
	if err != nil {
		err = &domain.ActionError{ActionID: c.action.ID, Type: c.action.Type, Err: err}
	}
	return result, err
}

// scope layers the trigger's state and the auxiliary context on the page scopes.
// A repeated trigger sees its item and the state it was rendered with.
func (r *run) scope(aux domain.AuxContext) domain.EvaluationContext {
	c := r.env.Context
	owner := r.trigger
	if it := r.env.Item; it != nil {
		rs := it.Repeater
		c.Item, c.Index, c.Repeater = it.Item, it.Index, &rs
		owner = it.StateNodeID
	}
	if r.env.States != nil {
		snap := r.env.States.Snapshot()
		c.States = snap
		c.State = snap[owner]
	}
	return c.WithAux(aux)
}

func (r *run) record(a domain.Action, path string, result any, err error, d time.Duration) {
	s := Step{ActionID: a.ID, Type: a.Type, Path: path, Success: err == nil, Result: result, Duration: d}
	if err != nil {
		s.Error = err.Error()
	}
	r.report.Steps = append(r.report.Steps, s)
}

func (e *Engine) emit(ctx context.Context, typ domain.EventType, r *run, a domain.Action, skipped, success bool, d time.Duration, err error) {
	hook := e.hooks.OnActionEnd
	if typ == domain.EventActionStart {
		hook = e.hooks.OnActionStart
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, SessionID: r.env.SessionID},
		RunID:     r.report.RunID,
		NodeID:    r.trigger,
		ActionID:  a.ID,
		Action:    a.Type,
		Skipped:   skipped,
		Success:   success,
		Duration:  d,
		Err:       err,
	})
}

// resultKey is the resultKey param, or the action id.
func resultKey(a domain.Action, params map[string]any) string {
	if k, ok := params["resultKey"].(string); ok && k != "" {
		return k
	}
	return a.ID
}

func payload(err error) any {
	var f *actionFailure
	if errors.As(err, &f) {
		return f.payload
	}
	return nil
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "/" + seg
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
