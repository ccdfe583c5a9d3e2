package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// DefaultBatchWindow is how long contract queries are collected before a batch is sent.
const DefaultBatchWindow = 5 * time.Millisecond

// ContractFetcher batches contract queries that arrive within a short window
// into a single transport call.
type ContractFetcher struct {
	transport ports.QueryTransport
	window    time.Duration

	mu      sync.Mutex
	pending map[string]*contractCall
	seq     int
}

type contractCall struct {
	ctx   context.Context
	query domain.QueryDescription
	done  chan struct{}
	value any
	err   error
}

// NewContractFetcher creates a batching fetcher. A non-positive window uses DefaultBatchWindow.
func NewContractFetcher(transport ports.QueryTransport, window time.Duration) *ContractFetcher {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return &ContractFetcher{transport: transport, window: window}
}

// Fetch implements Fetcher.
func (f *ContractFetcher) Fetch(ctx context.Context, src domain.DataSource) (any, error) {
	if src.Contract == "" {
		return nil, errors.New("contract source has no contract name")
	}
	call := &contractCall{
		ctx:   ctx,
		query: domain.QueryDescription{Contract: src.Contract, Params: src.Params},
		done:  make(chan struct{}),
	}

	f.mu.Lock()
	if f.pending == nil {
		f.pending = make(map[string]*contractCall)
		time.AfterFunc(f.window, f.flush)
	}
	f.seq++
	f.pending["q"+strconv.Itoa(f.seq)] = call
	f.mu.Unlock()

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *ContractFetcher) flush() {
	f.mu.Lock()
	batch := f.pending
	f.pending = nil
	f.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	queries := make(map[string]domain.QueryDescription, len(batch))
	var ctx context.Context
	for key, call := range batch {
		queries[key] = call.query
		if ctx == nil || call.ctx.Err() == nil {
			ctx = call.ctx
		}
	}

	resp, err := f.execute(ctx, queries)
	for key, call := range batch {
		switch {
		case err != nil:
			call.err = err
		case resp == nil:
			call.err = errors.New("empty query response")
		default:
			call.value, call.err = result(resp, key)
		}
		close(call.done)
	}
}

// execute runs on the batch timer goroutine, out of reach of the
// orchestrator's recover, so transport panics are turned into errors here.
func (f *ContractFetcher) execute(ctx context.Context, queries map[string]domain.QueryDescription) (resp *domain.QueryResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, fmt.Errorf("query transport panic: %v", rec)
		}
	}()
	return f.transport.Execute(ctx, queries)
}

func result(resp *domain.QueryResponse, key string) (any, error) {
	for _, qe := range resp.Errors {
		if qe.QueryKey == "" || qe.QueryKey == key {
			if qe.Code != "" {
				return nil, fmt.Errorf("%s: %s", qe.Code, qe.Message)
			}
			return nil, errors.New(qe.Message)
		}
	}
	return resp.Data[key], nil
}
