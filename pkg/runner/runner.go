package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
)

// Runner drives a page session from a stream of JSON-lines events.
// Every input line is one Event; every response is written as one JSON line.
type Runner struct {
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer
	settle     bool
	bufferSize int
}

// Output is one line written by the Runner.
type Output struct {
	Type   string         `json:"type"` // "tree", "report" or "error"
	Tree   *canopy.Tree   `json:"tree,omitempty"`
	Report *canopy.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewRunner creates a Runner on stdin and stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:     logging.NewNop(),
		in:         os.Stdin,
		out:        os.Stdout,
		settle:     true,
		bufferSize: DefaultInputBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type inputResult struct {
	text string
	err  error
}

// Run writes the initial tree, then applies events until the input ends
// or ctx is cancelled. Malformed events produce an error line and the loop
// continues; only I/O failures stop it.
func (r *Runner) Run(ctx context.Context, s *canopy.Session) error {
	enc := json.NewEncoder(r.out)

	tree, err := render(ctx, s, r.settle)
	if err := enc.Encode(Output{Type: "tree", Tree: tree}); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	if err != nil {
		return err
	}

	lines := r.readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ln, ok := <-lines:
			if !ok {
				return nil
			}
			if ln.err != nil {
				if errors.Is(ln.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("input error: %w", ln.err)
			}
			if err := r.handle(ctx, s, enc, ln.text); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, s *canopy.Session, enc *json.Encoder, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	resp, err := r.apply(ctx, s, line)
	if resp != nil && resp.Report != nil {
		if werr := enc.Encode(Output{Type: "report", Report: resp.Report}); werr != nil {
			return fmt.Errorf("output error: %w", werr)
		}
	}
	if resp != nil && resp.Tree != nil {
		if werr := enc.Encode(Output{Type: "tree", Tree: resp.Tree}); werr != nil {
			return fmt.Errorf("output error: %w", werr)
		}
	}
	if err != nil {
		r.logger.Warn("event failed", "session_id", s.ID, "error", err)
		if werr := enc.Encode(Output{Type: "error", Error: err.Error()}); werr != nil {
			return fmt.Errorf("output error: %w", werr)
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, s *canopy.Session, line string) (*Response, error) {
	clean, err := SanitizeInput(line)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal([]byte(clean), &ev); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	r.logger.Debug("event received", "session_id", s.ID, "type", ev.Type, "node_id", ev.NodeID)
	return Apply(ctx, s, ev, r.settle)
}

// readLines reads the input in the background so Run can honour ctx.
func (r *Runner) readLines(ctx context.Context) <-chan inputResult {
	ch := make(chan inputResult, r.bufferSize)
	go func() {
		defer close(ch)
		reader := bufio.NewReader(r.in)
		for {
			text, err := reader.ReadString('\n')
			if text != "" {
				select {
				case ch <- inputResult{text: text}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case ch <- inputResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return ch
}
