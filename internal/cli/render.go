package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/runner"
)

// RenderOptions configures the render and trigger commands.
type RenderOptions struct {
	EngineOptions

	PageID string
	Width  int
	Height int
	Locale string
	// User is a raw JSON object exposed as the user scope.
	User string
	// NoSettle prints the first pass without waiting for fetches.
	NoSettle bool
	Format   string

	// Trigger, when NodeID is set, runs the node's handlers before printing.
	NodeID string
	Event  string
	// Aux is a raw JSON domain.AuxContext.
	Aux string
}

// Render mounts a page, optionally triggers an event and prints the result.
func Render(ctx context.Context, opts RenderOptions, w io.Writer) error {
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

	sess, err := mount(ctx, engine, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	ev := runner.Event{Type: runner.EventRender}
	if opts.NodeID != "" {
		ev = runner.Event{Type: runner.EventTrigger, NodeID: opts.NodeID, Event: opts.Event}
		if opts.Aux != "" {
			if err := json.Unmarshal([]byte(opts.Aux), &ev.Aux); err != nil {
				return fmt.Errorf("error parsing --aux JSON: %w", err)
			}
		}
		// Handlers act on resolved state, so settle the page first.
		if _, err := sess.Render(ctx); err != nil {
			return err
		}
	}

	resp, err := runner.Apply(ctx, sess, ev, !opts.NoSettle)
	if err != nil {
		return err
	}
	return printResponse(w, format, resp)
}

func mount(ctx context.Context, engine *canopy.Engine, opts RenderOptions) (*canopy.Session, error) {
	pageID := opts.PageID
	if pageID == "" {
		var err error
		if pageID, err = DetermineEntryPage(opts.Dir); err != nil {
			return nil, err
		}
	}
	sessOpts := []canopy.SessionOption{canopy.WithViewport(opts.Width, opts.Height)}
	if opts.Locale != "" {
		sessOpts = append(sessOpts, canopy.WithLocale(opts.Locale))
	}
	if opts.User != "" {
		var user map[string]any
		if err := json.Unmarshal([]byte(opts.User), &user); err != nil {
			return nil, fmt.Errorf("error parsing --user JSON: %w", err)
		}
		sessOpts = append(sessOpts, canopy.WithUser(runner.SanitizeMap(user)))
	}
	sess, err := engine.MountPage(ctx, pageID, sessOpts...)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", pageID, err)
	}
	return sess, nil
}
