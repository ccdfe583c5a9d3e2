package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/runner"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PageResponse is the structured output of the session tools.
type PageResponse struct {
	SessionID string         `json:"sessionId" jsonschema_description:"The session the page is mounted in"`
	Report    *canopy.Report `json:"report,omitempty" jsonschema_description:"Outcome of the triggered action chain"`
	Tree      *canopy.Tree   `json:"tree" jsonschema_description:"The resolved node tree"`
}

// Engine mounts and loads pages. *canopy.Engine implements it.
type Engine interface {
	MountPage(ctx context.Context, pageID string, opts ...canopy.SessionOption) (*canopy.Session, error)
	LoadPage(id string) (*domain.Page, error)
}

// Server exposes page sessions as MCP tools.
type Server struct {
	engine    Engine
	sessions  *session.Manager[*canopy.Session]
	logger    *slog.Logger
	version   string
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSessions shares a session manager with the host.
func WithSessions(m *session.Manager[*canopy.Session]) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new MCP server over engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine, logger: logging.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager[*canopy.Session](session.WithLogger(s.logger))
	}
	s.mcpServer = server.NewMCPServer("canopy-mcp", s.version, server.WithToolCapabilities(false))
	s.registerTools()
	return s
}

// MCPServer returns the protocol server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	r := chi.NewRouter()
	r.Use(cors)
	r.Handle("/sse", sse.SSEHandler())
	r.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RenderArgs are the arguments of render_page.
type RenderArgs struct {
	SessionID string `json:"session_id"`
	PageID    string `json:"page_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Locale    string `json:"locale"`
	NoSettle  bool   `json:"no_settle"`
}

// TriggerArgs are the arguments of trigger_event.
type TriggerArgs struct {
	SessionID string            `json:"session_id"`
	NodeID    string            `json:"node_id"`
	Event     string            `json:"event"`
	Aux       domain.AuxContext `json:"aux"`
}

// NavigateArgs are the arguments of navigate.
type NavigateArgs struct {
	SessionID string `json:"session_id"`
	PageID    string `json:"page_id"`
}

// GraphArgs are the arguments of get_graph.
type GraphArgs struct {
	SessionID string `json:"session_id"`
	PageID    string `json:"page_id"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("render_page",
		mcp.WithDescription("Render a page session. Without session_id, mounts page_id in a new session."),
		mcp.WithString("session_id", mcp.Description("Session to render (optional)")),
		mcp.WithString("page_id", mcp.Description("Page to mount when no session is given")),
		mcp.WithNumber("width", mcp.Description("Viewport width in pixels, selects the breakpoint")),
		mcp.WithNumber("height", mcp.Description("Viewport height in pixels")),
		mcp.WithString("locale", mcp.Description("Active locale")),
		mcp.WithBoolean("no_settle", mcp.Description("Return the current pass without waiting for data requirements")),
		mcp.WithOutputSchema[PageResponse](),
	), mcp.NewStructuredToolHandler(s.handleRender))

	s.mcpServer.AddTool(mcp.NewTool("trigger_event",
		mcp.WithDescription("Run the action chain bound to an event of a node and render the result."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node that fires the event")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name, e.g. click")),
		mcp.WithObject("aux", mcp.Description("Auxiliary context: formData, event, extra")),
		mcp.WithOutputSchema[PageResponse](),
	), mcp.NewStructuredToolHandler(s.handleTrigger))

	s.mcpServer.AddTool(mcp.NewTool("navigate",
		mcp.WithDescription("Replace the page mounted in a session. Stores of the previous page are dropped."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("page_id", mcp.Required(), mcp.Description("Page to navigate to")),
		mcp.WithOutputSchema[PageResponse](),
	), mcp.NewStructuredToolHandler(s.handleNavigate))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid diagram of a page. With session_id, hidden and loading nodes are styled."),
		mcp.WithString("session_id", mcp.Description("Session whose page and state to draw")),
		mcp.WithString("page_id", mcp.Description("Page to draw when no session is given")),
	), mcp.NewTypedToolHandler(s.handleGraph))
}

func (s *Server) handleRender(ctx context.Context, _ mcp.CallToolRequest, args RenderArgs) (PageResponse, error) {
	id := args.SessionID
	if id == "" {
		if args.PageID == "" {
			return PageResponse{}, errors.New("session_id or page_id is required")
		}
		sess, err := s.engine.MountPage(ctx, args.PageID)
		if err != nil {
			return PageResponse{}, err
		}
		s.sessions.Put(sess.ID, sess)
		s.logger.Info("session created", "session_id", sess.ID, "page_id", args.PageID)
		id = sess.ID
	}

	resp := PageResponse{SessionID: id}
	err := s.sessions.WithLock(ctx, id, func(ctx context.Context, sess *canopy.Session) error {
		if args.Width > 0 || args.Height > 0 {
			sess.SetViewport(args.Width, args.Height)
		}
		if args.Locale != "" {
			sess.SetLocale(args.Locale)
		}
		out, err := runner.Apply(ctx, sess, runner.Event{Type: runner.EventRender}, !args.NoSettle)
		if out != nil {
			resp.Tree = out.Tree
		}
		return err
	})
	if err != nil {
		return PageResponse{}, err
	}
	return resp, nil
}

func (s *Server) handleTrigger(ctx context.Context, _ mcp.CallToolRequest, args TriggerArgs) (PageResponse, error) {
	return s.apply(ctx, args.SessionID, runner.Event{
		Type:   runner.EventTrigger,
		NodeID: args.NodeID,
		Event:  args.Event,
		Aux:    args.Aux,
	}, true)
}

func (s *Server) handleNavigate(ctx context.Context, _ mcp.CallToolRequest, args NavigateArgs) (PageResponse, error) {
	page, err := s.engine.LoadPage(args.PageID)
	if err != nil {
		return PageResponse{}, err
	}
	resp := PageResponse{SessionID: args.SessionID}
	err = s.sessions.WithLock(ctx, args.SessionID, func(ctx context.Context, sess *canopy.Session) error {
		if err := sess.Navigate(ctx, page); err != nil {
			return err
		}
		tree, err := sess.Render(ctx)
		resp.Tree = tree
		return err
	})
	if err != nil {
		return PageResponse{}, err
	}
	s.logger.Debug("session navigated", "session_id", args.SessionID, "page_id", args.PageID)
	return resp, nil
}

func (s *Server) handleGraph(ctx context.Context, _ mcp.CallToolRequest, args GraphArgs) (*mcp.CallToolResult, error) {
	if args.SessionID == "" {
		page, err := s.engine.LoadPage(args.PageID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(page, nil)), nil
	}

	var out string
	err := s.sessions.WithLock(ctx, args.SessionID, func(ctx context.Context, sess *canopy.Session) error {
		tree := sess.Resolve(ctx)
		out = graph.GenerateMermaid(sess.Page(), graph.OverlayOf(tree.Nodes))
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

// apply runs ev on the session under its lock.
func (s *Server) apply(ctx context.Context, id string, ev runner.Event, settle bool) (PageResponse, error) {
	resp := PageResponse{SessionID: id}
	err := s.sessions.WithLock(ctx, id, func(ctx context.Context, sess *canopy.Session) error {
		out, err := runner.Apply(ctx, sess, ev, settle)
		if out != nil {
			resp.Report, resp.Tree = out.Report, out.Tree
		}
		return err
	})
	if err != nil {
		s.logger.Warn("MCP tool failed", "session_id", id, "event", ev.Type, "error", err)
		return PageResponse{}, err
	}
	return resp, nil
}
