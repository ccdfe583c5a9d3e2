package cli

import (
	"context"
	"errors"
	"io"

	"github.com/aretw0/canopy/pkg/runner"
)

// RunStream mounts a page and drives it with JSON-lines events from in,
// writing trees, reports and errors to out. It stops at end of input or
// when ctx is cancelled (which is not an error).
func RunStream(ctx context.Context, opts RenderOptions, in io.Reader, out io.Writer) error {
	logger := createLogger(opts.Debug)
	engine, cleanup, err := createEngine(opts.EngineOptions, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := mount(ctx, engine, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInput(in),
		runner.WithOutput(out),
		runner.WithSettle(!opts.NoSettle),
	)
	logger.Info("runner started", "session_id", sess.ID, "page_id", sess.Page().ID)
	return handleExecutionError(r.Run(ctx, sess))
}

// handleExecutionError maps interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
