package cli

import (
	"context"
	"io"

	"github.com/aretw0/canopy/internal/presentation/graph"
)

// Graph prints the Mermaid diagram of a page. With overlay, the page is
// rendered first and hidden or loading nodes are styled.
func Graph(ctx context.Context, opts RenderOptions, overlay bool, w io.Writer) error {
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

	var ov *graph.Overlay
	if overlay {
		tree := sess.Resolve(ctx)
		if !opts.NoSettle {
			if tree, err = sess.Render(ctx); err != nil {
				return err
			}
		}
		ov = graph.OverlayOf(tree.Nodes)
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(sess.Page(), ov))
	return err
}
