package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single fetch.
const DefaultFetchTimeout = 30 * time.Second

// DefaultErrorTTL is how long a failure is cached when the requirement sets
// no cache duration. Successes without a duration never expire.
const DefaultErrorTTL = 5 * time.Second

// Orchestrator resolves node data requirements with a shared cache and
// per-node loading state. Fetches run in the background; Ensure never blocks.
type Orchestrator struct {
	cache    ports.RequirementCache
	fetchers map[string]Fetcher
	group    singleflight.Group
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	timeout  time.Duration
	errTTL   time.Duration
	session  string

	mu       sync.Mutex
	nodes    map[stateKey]*reqState
	gens     map[string]uint64
	epoch    uint64
	inflight int
	idle     chan struct{}
}

type stateKey struct {
	nodeID string
	key    string
}

type reqState struct {
	cacheKey string
	loading  bool
	value    any
	err      string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache sets the shared requirement cache (in-memory by default).
func WithCache(cache ports.RequirementCache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithFetcher registers (or replaces) the fetcher of a source kind.
func WithFetcher(kind string, f Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetchers[kind] = f
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks (OnFetch).
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithTimeout overrides DefaultFetchTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithErrorTTL overrides DefaultErrorTTL. A non-positive value disables
// caching of failures without a cache duration.
func WithErrorTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.errTTL = d
	}
}

// WithSessionID tags emitted events with a session id.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) {
		o.session = id
	}
}

// New creates an orchestrator. Mock and static sources work out of the box;
// contract, rest and graphql need their fetchers registered.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetchers: map[string]Fetcher{
			domain.SourceMock:   MockFetcher{},
			domain.SourceStatic: MockFetcher{},
		},
		timeout: DefaultFetchTimeout,
		errTTL:  DefaultErrorTTL,
		nodes:   make(map[stateKey]*reqState),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = memory.NewCache()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// CacheKey hashes the canonical JSON form of a resolved source.
func CacheKey(src domain.DataSource) string {
	m, err := domain.ToMap(src)
	if err != nil {
		return ""
	}
	raw, _ := json.Marshal(m) // map keys are emitted sorted
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Ensure reports the current status of nodeID's requirements and starts the
// fetches that are neither cached nor in flight.
func (o *Orchestrator) Ensure(ctx context.Context, nodeID string, reqs []domain.DataRequirementConfig) domain.RequirementStatus {
	status := domain.RequirementStatus{Values: make(map[string]any, len(reqs))}

	for _, req := range reqs {
		ck := CacheKey(req.Source)
		sk := stateKey{nodeID: nodeID, key: req.Key}

		entry, hit, err := o.cache.Get(ctx, ck)
		if err != nil {
			o.logger.Warn("requirement cache unavailable", "node_id", nodeID, "key", req.Key, "error", err)
		}

		fresh := false
		o.mu.Lock()
		st := o.nodes[sk]
		switch {
		case hit:
			fresh = st == nil || st.cacheKey != ck || st.loading
			st = settled(ck, req, entry.Value, entry.Err)
			o.nodes[sk] = st
		case st != nil && st.cacheKey == ck && st.loading:
			// already in flight
		default:
			st = &reqState{cacheKey: ck, loading: true, value: req.DefaultValue}
			o.nodes[sk] = st
			o.start(ctx, nodeID, req, ck)
		}
		if st.loading && req.IsBlocking() {
			status.Loading = true
		}
		status.Values[req.Key] = st.value
		if st.err != "" {
			if status.Errors == nil {
				status.Errors = make(map[string]string)
			}
			status.Errors[req.Key] = st.err
		}
		o.mu.Unlock()

		if fresh {
			o.emitFetch(ctx, nodeID, req, true, 0, entry.Err)
		}
	}
	return status
}

func settled(ck string, req domain.DataRequirementConfig, value any, errMsg string) *reqState {
	if errMsg != "" {
		return &reqState{cacheKey: ck, value: req.DefaultValue, err: errMsg}
	}
	return &reqState{cacheKey: ck, value: value}
}

// start launches a fetch. Callers hold o.mu.
func (o *Orchestrator) start(ctx context.Context, nodeID string, req domain.DataRequirementConfig, ck string) {
	gen, epoch := o.gens[nodeID], o.epoch
	o.inflight++
	if o.inflight == 1 {
		o.idle = make(chan struct{})
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	go func() {
		defer cancel()
		defer o.done()

		begin := time.Now()
		v, err, _ := o.group.Do(ck, func() (any, error) {
			return o.fetch(fctx, req.Source)
		})

		entry := domain.CacheEntry{Value: v, StoredAt: time.Now(), TTL: req.CacheTTL()}
		errMsg := ""
		if err != nil {
			ferr := &domain.FetchError{NodeID: nodeID, Key: req.Key, Err: err}
			o.logger.Warn("data requirement failed", "node_id", nodeID, "key", req.Key, "source", req.Source.Type, "error", err)
			errMsg = ferr.Error()
			entry = domain.CacheEntry{Err: errMsg, StoredAt: entry.StoredAt, TTL: entry.TTL}
			if entry.TTL == 0 {
				entry.TTL = o.errTTL
			}
		}
		o.mu.Lock()
		current := o.epoch == epoch
		o.mu.Unlock()
		if current && (errMsg == "" || entry.TTL > 0) {
			if cerr := o.cache.Set(fctx, ck, entry); cerr != nil {
				o.logger.Warn("failed to cache requirement", "node_id", nodeID, "key", req.Key, "error", cerr)
			}
		}

		o.mu.Lock()
		if o.epoch == epoch && o.gens[nodeID] == gen {
			o.nodes[stateKey{nodeID: nodeID, key: req.Key}] = settled(ck, req, v, errMsg)
		} else {
			o.logger.Debug("dropping fetch result for released node", "node_id", nodeID, "key", req.Key)
		}
		o.mu.Unlock()

		o.emitFetch(fctx, nodeID, req, false, time.Since(begin), errMsg)
	}()
}

func (o *Orchestrator) fetch(ctx context.Context, src domain.DataSource) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetcher panic: %v", rec)
		}
	}()
	f, ok := o.fetchers[src.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, src.Type)
	}
	return f.Fetch(ctx, src)
}

func (o *Orchestrator) done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if o.inflight == 0 {
		close(o.idle)
	}
}

func (o *Orchestrator) emitFetch(ctx context.Context, nodeID string, req domain.DataRequirementConfig, hit bool, d time.Duration, errMsg string) {
	if o.hooks.OnFetch == nil {
		return
	}
	var err error
	if errMsg != "" {
		err = fmt.Errorf("%s", errMsg)
	}
	o.hooks.OnFetch(ctx, &domain.FetchEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFetch, SessionID: o.session},
		NodeID:    nodeID,
		Key:       req.Key,
		Source:    req.Source.Type,
		CacheHit:  hit,
		Duration:  d,
		Err:       err,
	})
}

// Wait blocks until no fetch is in flight or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		if o.inflight == 0 {
			o.mu.Unlock()
			return nil
		}
		idle := o.idle
		o.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of fetches in flight.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight
}

// Release forgets the per-node state of nodeID. Results of fetches started
// before the release are not written back.
func (o *Orchestrator) Release(nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gens[nodeID]++
	for k := range o.nodes {
		if k.nodeID == nodeID {
			delete(o.nodes, k)
		}
	}
}

// Forget drops every per-node state. Fetches already in flight settle
// without writing back. The shared cache is left intact.
func (o *Orchestrator) Forget() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.nodes = make(map[stateKey]*reqState)
}

// Reset forgets every per-node state and clears the cache, e.g. on navigation.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.Forget()
	return o.cache.Clear(ctx)
}
