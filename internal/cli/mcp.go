package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/canopy"
	mcpadapter "github.com/aretw0/canopy/pkg/adapters/mcp"
	"github.com/aretw0/canopy/pkg/session"
)

// Supported MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPOptions configures the MCP server.
type MCPOptions struct {
	EngineOptions

	Transport string
	Port      int
	Version   string
	// IdleTimeout drops sessions without activity for that long; 0 keeps them.
	IdleTimeout time.Duration
}

// ServeMCP runs the MCP server on the selected transport until ctx is
// cancelled or, on stdio, the client disconnects. Logs go to stderr so they
// never mix with the protocol stream.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	logger := createLogger(opts.Debug)
	engine, cleanup, err := createEngine(opts.EngineOptions, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.NewManager[*canopy.Session](session.WithLogger(logger))
	if opts.IdleTimeout > 0 {
		go sweep(ctx, sessions, opts.IdleTimeout)
	}
	srv := mcpadapter.NewServer(engine,
		mcpadapter.WithLogger(logger),
		mcpadapter.WithSessions(sessions),
		mcpadapter.WithVersion(opts.Version),
	)

	switch opts.Transport {
	case "", TransportStdio:
		logger.Info("starting canopy MCP server (stdio)", "dir", opts.Dir)
		return srv.ServeStdio()
	case TransportSSE:
		addr := fmt.Sprintf(":%d", opts.Port)
		return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", opts.Port))
	default:
		return fmt.Errorf("unknown transport %q (supported: %s, %s)", opts.Transport, TransportStdio, TransportSSE)
	}
}
