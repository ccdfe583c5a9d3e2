package canopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aretw0/canopy/internal/actions"
	"github.com/aretw0/canopy/internal/data"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/registry"
)

// EnvMaxDepth overrides the resolution depth limit.
const EnvMaxDepth = "CANOPY_MAX_DEPTH"

// Engine is the high-level entry point for the Canopy library.
// It holds the configuration shared by every page session: collaborators,
// the shared requirement cache, hooks and the action registry.
type Engine struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	eval   *expr.Evaluator
	loader ports.PageLoader

	cache        ports.RequirementCache
	fetchers     map[string]data.Fetcher
	fetchTimeout time.Duration
	batchWindow  time.Duration
	httpClient   *http.Client

	transport ports.QueryTransport
	submitter ports.Submitter
	cart      ports.Cart
	navigator ports.Navigator
	sessions  ports.SessionProvider
	pageData  ports.PageDataLoader
	registry  *registry.Registry

	kinds    []string
	maxDepth int

	actions *actions.Engine
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls chain the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader sets the page document source used by MountPage.
func WithLoader(l ports.PageLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithCache sets the shared requirement cache (in-memory by default).
func WithCache(c ports.RequirementCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithFetcher registers the fetcher of a data source kind.
func WithFetcher(kind string, f data.Fetcher) Option {
	return func(e *Engine) {
		e.fetchers[kind] = f
	}
}

// WithFetchTimeout bounds every data requirement fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.fetchTimeout = d
	}
}

// WithBatchWindow sets how long contract queries are collected before one transport call.
func WithBatchWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.batchWindow = d
	}
}

// WithHTTPClient sets the client used by rest and graphql sources.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithQueryTransport wires contract sources and the executeRQL action.
func WithQueryTransport(t ports.QueryTransport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithSubmitter wires the submitData action.
func WithSubmitter(s ports.Submitter) Option {
	return func(e *Engine) {
		e.submitter = s
	}
}

// WithCart wires the addItemToCart action.
func WithCart(c ports.Cart) Option {
	return func(e *Engine) {
		e.cart = c
	}
}

// WithNavigator wires the navigate action.
func WithNavigator(n ports.Navigator) Option {
	return func(e *Engine) {
		e.navigator = n
	}
}

// WithSessionProvider exposes the authenticated user to bindings.
func WithSessionProvider(p ports.SessionProvider) Option {
	return func(e *Engine) {
		e.sessions = p
	}
}

// WithPageDataLoader sets the page-level data loader (also used by refetchPageData).
func WithPageDataLoader(l ports.PageDataLoader) Option {
	return func(e *Engine) {
		e.pageData = l
	}
}

// WithRegistry adds host-defined action types.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithKinds restricts atoms and components to the given widget kinds.
// Other kinds render as unsupported nodes.
func WithKinds(kinds ...string) Option {
	return func(e *Engine) {
		e.kinds = append(e.kinds, kinds...)
	}
}

// WithMaxDepth bounds nesting of children, repeaters and placeholders.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// New initializes a new Canopy Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		fetchers:     make(map[string]data.Fetcher),
		fetchTimeout: data.DefaultFetchTimeout,
		batchWindow:  data.DefaultBatchWindow,
		maxDepth:     maxDepthFromEnv(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.eval = expr.New(e.logger)
	if e.cache == nil {
		e.cache = memory.NewCache()
	}

	httpFetcher := data.HTTPFetcher{Client: e.httpClient}
	for _, kind := range []string{domain.SourceREST, domain.SourceGraphQL} {
		if _, ok := e.fetchers[kind]; !ok {
			e.fetchers[kind] = httpFetcher
		}
	}
	if _, ok := e.fetchers[domain.SourceContract]; !ok && e.transport != nil {
		e.fetchers[domain.SourceContract] = data.NewContractFetcher(e.transport, e.batchWindow)
	}

	e.actions = actions.New(
		actions.WithLogger(e.logger),
		actions.WithEvaluator(e.eval),
		actions.WithLifecycleHooks(e.hooks),
		actions.WithQueryTransport(e.transport),
		actions.WithSubmitter(e.submitter),
		actions.WithCart(e.cart),
		actions.WithNavigator(e.navigator),
		actions.WithRegistry(e.registry),
	)
	return e
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// LoadPage loads a page document through the configured loader.
func (e *Engine) LoadPage(id string) (*domain.Page, error) {
	if e.loader == nil {
		return nil, errors.New("no page loader configured")
	}
	return e.loader.LoadPage(id)
}

// MountPage loads the page stored under pageID and mounts it.
func (e *Engine) MountPage(ctx context.Context, pageID string, opts ...SessionOption) (*Session, error) {
	page, err := e.LoadPage(pageID)
	if err != nil {
		return nil, err
	}
	return e.Mount(ctx, page, opts...)
}

// Watch returns a channel that signals when the page documents change.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

func (e *Engine) newOrchestrator(sessionID string) *data.Orchestrator {
	opts := []data.Option{
		data.WithCache(e.cache),
		data.WithLogger(e.logger.With("session_id", sessionID)),
		data.WithLifecycleHooks(e.hooks),
		data.WithTimeout(e.fetchTimeout),
		data.WithSessionID(sessionID),
	}
	for kind, f := range e.fetchers {
		opts = append(opts, data.WithFetcher(kind, f))
	}
	return data.New(opts...)
}

func (e *Engine) newResolver(req runtime.Requirements) *runtime.Resolver {
	opts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithEvaluator(e.eval),
		runtime.WithRequirements(req),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithMaxDepth(e.maxDepth),
	}
	if len(e.kinds) > 0 {
		opts = append(opts, runtime.WithKinds(e.kinds...))
	}
	return runtime.NewResolver(opts...)
}

func maxDepthFromEnv() int {
	if val := os.Getenv(EnvMaxDepth); val != "" {
		if depth, err := strconv.Atoi(val); err == nil && depth > 0 {
			return depth
		}
	}
	return runtime.DefaultMaxDepth
}
