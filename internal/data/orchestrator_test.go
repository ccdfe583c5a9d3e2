package data_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/data"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockReq(key string, value any) domain.DataRequirementConfig {
	return domain.DataRequirementConfig{
		Key:          key,
		Source:       domain.DataSource{Type: domain.SourceMock, Data: value},
		DefaultValue: "fallback",
	}
}

func wait(t *testing.T, o *data.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func newGated() *gatedFetcher { return &gatedFetcher{release: make(chan struct{})} }

func (g *gatedFetcher) Fetch(ctx context.Context, src domain.DataSource) (any, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return src.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEnsure_LoadingThenSettled(t *testing.T) {
	o := data.New()
	ctx := context.Background()
	reqs := []domain.DataRequirementConfig{mockReq("user", map[string]any{"name": "Ana"})}

	first := o.Ensure(ctx, "card", reqs)
	assert.True(t, first.Loading)
	assert.Equal(t, "fallback", first.Values["user"])

	wait(t, o)

	second := o.Ensure(ctx, "card", reqs)
	assert.False(t, second.Loading)
	assert.Empty(t, second.Errors)
	assert.Equal(t, map[string]any{"name": "Ana"}, second.Values["user"])
}

func TestEnsure_NonBlockingNeverLoads(t *testing.T) {
	gate := newGated()
	o := data.New(data.WithFetcher("slow", gate))
	off := false
	req := domain.DataRequirementConfig{Key: "k", Source: domain.DataSource{Type: "slow", Data: "v"}, Blocking: &off}

	st := o.Ensure(context.Background(), "n", []domain.DataRequirementConfig{req})
	assert.False(t, st.Loading)
	assert.Nil(t, st.Values["k"])
	assert.Equal(t, 1, o.Pending())

	close(gate.release)
	wait(t, o)
	assert.Equal(t, "v", o.Ensure(context.Background(), "n", []domain.DataRequirementConfig{req}).Values["k"])
}

func TestEnsure_FailureUsesDefaultAndIsCached(t *testing.T) {
	var calls atomic.Int32
	o := data.New(data.WithFetcher("flaky", data.FetcherFunc(func(ctx context.Context, src domain.DataSource) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})))
	req := domain.DataRequirementConfig{Key: "orders", Source: domain.DataSource{Type: "flaky"}, DefaultValue: []any{}}
	ctx := context.Background()

	o.Ensure(ctx, "a", []domain.DataRequirementConfig{req})
	wait(t, o)

	st := o.Ensure(ctx, "a", []domain.DataRequirementConfig{req})
	assert.False(t, st.Loading)
	assert.Equal(t, []any{}, st.Values["orders"])
	assert.Contains(t, st.Errors["orders"], "boom")

	other := o.Ensure(ctx, "b", []domain.DataRequirementConfig{req})
	assert.False(t, other.Loading, "errors are served from the cache too")
	assert.Contains(t, other.Errors["orders"], "boom")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsure_TransientFailureRecovers(t *testing.T) {
	tests := []struct {
		name   string
		errTTL time.Duration
		pause  time.Duration
	}{
		{name: "Bounded Error TTL", errTTL: 50 * time.Millisecond, pause: 100 * time.Millisecond},
		{name: "Errors Not Cached", errTTL: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			o := data.New(
				data.WithErrorTTL(tt.errTTL),
				data.WithFetcher("flaky", data.FetcherFunc(func(ctx context.Context, src domain.DataSource) (any, error) {
					if calls.Add(1) == 1 {
						return nil, errors.New("transient")
					}
					return "d", nil
				})),
			)
			reqs := []domain.DataRequirementConfig{{Key: "k", Source: domain.DataSource{Type: "flaky"}}}
			ctx := context.Background()

			o.Ensure(ctx, "n", reqs)
			wait(t, o)
			time.Sleep(tt.pause)

			o.Ensure(ctx, "n", reqs)
			wait(t, o)
			st := o.Ensure(ctx, "n", reqs)
			assert.Empty(t, st.Errors)
			assert.Equal(t, "d", st.Values["k"])
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestEnsure_IdenticalSourcesShareOneFetch(t *testing.T) {
	gate := newGated()
	o := data.New(data.WithFetcher("slow", gate))
	req := domain.DataRequirementConfig{Key: "k", Source: domain.DataSource{Type: "slow", Data: "shared"}}
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Ensure(ctx, id, []domain.DataRequirementConfig{req})
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	close(gate.release)
	wait(t, o)

	assert.Equal(t, int32(1), gate.calls.Load())
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, "shared", o.Ensure(ctx, id, []domain.DataRequirementConfig{req}).Values["k"])
	}
}

func TestEnsure_InFlightIsNotRestarted(t *testing.T) {
	gate := newGated()
	o := data.New(data.WithFetcher("slow", gate))
	reqs := []domain.DataRequirementConfig{{Key: "k", Source: domain.DataSource{Type: "slow"}}}
	ctx := context.Background()

	o.Ensure(ctx, "n", reqs)
	st := o.Ensure(ctx, "n", reqs)
	assert.True(t, st.Loading)
	assert.Equal(t, 1, o.Pending())

	close(gate.release)
	wait(t, o)
	assert.Equal(t, int32(1), gate.calls.Load())
}

func TestReset_DropsStaleResults(t *testing.T) {
	gate := newGated()
	o := data.New(data.WithFetcher("slow", gate))
	reqs := []domain.DataRequirementConfig{{Key: "k", Source: domain.DataSource{Type: "slow", Data: "old"}}}
	ctx := context.Background()

	o.Ensure(ctx, "n", reqs)
	require.NoError(t, o.Reset(ctx))
	close(gate.release)
	wait(t, o)

	st := o.Ensure(ctx, "n", reqs)
	assert.True(t, st.Loading, "the settled result belonged to the previous page")
	wait(t, o)
	assert.Equal(t, int32(2), gate.calls.Load())
}

func TestRelease_ForgetsNodeState(t *testing.T) {
	gate := newGated()
	o := data.New(data.WithFetcher("slow", gate))
	reqs := []domain.DataRequirementConfig{{Key: "k", Source: domain.DataSource{Type: "slow", Data: "v"}}}
	ctx := context.Background()

	o.Ensure(ctx, "n", reqs)
	o.Release("n")
	close(gate.release)
	wait(t, o)

	// The shared cache still holds the value for any live node.
	st := o.Ensure(ctx, "n", reqs)
	assert.False(t, st.Loading)
	assert.Equal(t, "v", st.Values["k"])
}

func TestEnsure_UnsupportedSourceAndPanics(t *testing.T) {
	o := data.New(data.WithFetcher("explode", data.FetcherFunc(func(ctx context.Context, src domain.DataSource) (any, error) {
		panic("kaboom")
	})))
	ctx := context.Background()
	reqs := []domain.DataRequirementConfig{
		{Key: "ftp", Source: domain.DataSource{Type: "ftp"}},
		{Key: "bad", Source: domain.DataSource{Type: "explode"}},
	}

	o.Ensure(ctx, "n", reqs)
	wait(t, o)

	st := o.Ensure(ctx, "n", reqs)
	assert.Contains(t, st.Errors["ftp"], domain.ErrUnsupportedSource.Error())
	assert.Contains(t, st.Errors["bad"], "kaboom")
}

func TestEnsure_ExpiredEntriesRefetch(t *testing.T) {
	var calls atomic.Int32
	o := data.New(data.WithFetcher("count", data.FetcherFunc(func(ctx context.Context, src domain.DataSource) (any, error) {
		return calls.Add(1), nil
	})))
	req := domain.DataRequirementConfig{Key: "k", Source: domain.DataSource{Type: "count"}, CacheDurationMs: 200}
	ctx := context.Background()

	o.Ensure(ctx, "n", []domain.DataRequirementConfig{req})
	wait(t, o)
	assert.Equal(t, int32(1), o.Ensure(ctx, "n", []domain.DataRequirementConfig{req}).Values["k"])

	time.Sleep(300 * time.Millisecond)
	assert.True(t, o.Ensure(ctx, "n", []domain.DataRequirementConfig{req}).Loading)
	wait(t, o)
	assert.Equal(t, int32(2), o.Ensure(ctx, "n", []domain.DataRequirementConfig{req}).Values["k"])
}

func TestEnsure_OnFetchHook(t *testing.T) {
	var mu sync.Mutex
	var events []domain.FetchEvent
	o := data.New(
		data.WithSessionID("s1"),
		data.WithLifecycleHooks(domain.LifecycleHooks{
			OnFetch: func(ctx context.Context, e *domain.FetchEvent) {
				mu.Lock()
				defer mu.Unlock()
				events = append(events, *e)
			},
		}),
	)
	reqs := []domain.DataRequirementConfig{mockReq("k", "v")}
	ctx := context.Background()

	o.Ensure(ctx, "a", reqs)
	wait(t, o)
	o.Ensure(ctx, "b", reqs)
	o.Ensure(ctx, "b", reqs)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2, "a fetch and a single cache hit")
	assert.False(t, events[0].CacheHit)
	assert.Equal(t, "a", events[0].NodeID)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.True(t, events[1].CacheHit)
	assert.Equal(t, "b", events[1].NodeID)
}

func TestCacheKey(t *testing.T) {
	a := domain.DataSource{Type: domain.SourceContract, Contract: "orders", Params: map[string]any{"x": 1, "y": 2}}
	b := domain.DataSource{Type: domain.SourceContract, Contract: "orders", Params: map[string]any{"y": 2, "x": 1}}
	c := domain.DataSource{Type: domain.SourceContract, Contract: "orders", Params: map[string]any{"x": 2}}

	assert.Equal(t, data.CacheKey(a), data.CacheKey(b))
	assert.NotEqual(t, data.CacheKey(a), data.CacheKey(c))
	assert.Len(t, data.CacheKey(a), 64)
}
