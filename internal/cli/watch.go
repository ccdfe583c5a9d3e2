package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/runner"
)

// RunWatch renders a page and renders it again every time a page document
// changes, until ctx is cancelled. A page that fails to load is reported and
// the watcher keeps going.
func RunWatch(ctx context.Context, opts RenderOptions, w io.Writer) error {
	format, err := resolveFormat(opts.Format, w)
	if err != nil {
		return err
	}
	logger := createLogger(opts.Debug)
	engine, cleanup, err := createEngine(opts.EngineOptions, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	events, err := engine.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("starting watcher", "dir", opts.Dir)

	iteration := func() {
		sess, err := mount(ctx, engine, opts)
		if err != nil {
			fmt.Fprintf(w, ">>> %v\n", err)
			return
		}
		defer sess.Close()
		resp, err := runner.Apply(ctx, sess, runner.Event{Type: runner.EventRender}, !opts.NoSettle)
		if err != nil {
			fmt.Fprintf(w, ">>> render: %v\n", err)
			return
		}
		if err := printResponse(w, format, resp); err != nil {
			logger.Warn("print failed", "error", err)
		}
	}

	iteration()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("watcher reloading")
			fmt.Fprintf(w, ">>> reloaded\n")
			iteration()
		}
	}
}
