package runner

import (
	"io"
	"log/slog"
)

// DefaultInputBufferSize is the default number of lines to buffer for input handlers.
const DefaultInputBufferSize = 64

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithInput sets the reader events are read from (stdin by default).
func WithInput(in io.Reader) Option {
	return func(r *Runner) {
		r.in = in
	}
}

// WithOutput sets the writer responses are written to (stdout by default).
func WithOutput(out io.Writer) Option {
	return func(r *Runner) {
		r.out = out
	}
}

// WithSettle controls whether every response waits for pending fetches.
// It is on by default; without it responses may carry loading placeholders.
func WithSettle(settle bool) Option {
	return func(r *Runner) {
		r.settle = settle
	}
}

// WithInputBufferSize sets how many lines may be read ahead of processing.
func WithInputBufferSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}
