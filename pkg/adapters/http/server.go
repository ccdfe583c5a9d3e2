package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/runner"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/go-chi/chi/v5"
)

// Engine mounts pages for new sessions. *canopy.Engine implements it.
type Engine interface {
	MountPage(ctx context.Context, pageID string, opts ...canopy.SessionOption) (*canopy.Session, error)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Server exposes page sessions over HTTP.
type Server struct {
	Engine   Engine
	Sessions *session.Manager[*canopy.Session]
	Streams  *StreamManager

	logger  *slog.Logger
	metrics http.Handler
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
		s.Sessions = m
	}
}

// WithMetricsHandler mounts h on GET /metrics (usually promhttp.Handler()).
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Sessions == nil {
		server.Sessions = session.NewManager[*canopy.Session](session.WithLogger(server.logger))
	}
	server.Streams.logger = server.logger

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}
	r.Get("/events", server.SubscribeReload)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", server.CreateSession)
		r.Get("/", server.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/render", server.Render)
			r.Post("/events", server.Event)
			r.Put("/viewport", server.Viewport)
			r.Get("/stream", server.SubscribeSession)
			r.Delete("/", server.DeleteSession)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	PageID  string         `json:"pageId"`
	Width   int            `json:"width,omitempty"`
	Height  int            `json:"height,omitempty"`
	Locale  string         `json:"locale,omitempty"`
	User    map[string]any `json:"user,omitempty"`
	Origin  string         `json:"origin,omitempty"`
	Preview bool           `json:"preview,omitempty"`
}

// CreateSessionResponse is returned by POST /sessions.
type CreateSessionResponse struct {
	SessionID string       `json:"sessionId"`
	Tree      *canopy.Tree `json:"tree"`
}

// ViewportRequest is the body of PUT /sessions/{id}/viewport.
type ViewportRequest struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Breakpoint string `json:"breakpoint,omitempty"`
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := decodeLimited(r, &body); err != nil || body.PageID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateSession: invalid request body", "error", err)
		return
	}

	opts := []canopy.SessionOption{
		canopy.WithViewport(body.Width, body.Height),
		canopy.WithOrigin(body.Origin),
		canopy.WithPreview(body.Preview),
	}
	if body.Locale != "" {
		opts = append(opts, canopy.WithLocale(body.Locale))
	}
	if body.User != nil {
		opts = append(opts, canopy.WithUser(runner.SanitizeMap(body.User)))
	}
	sess, err := s.Engine.MountPage(r.Context(), body.PageID, opts...)
	if err != nil {
		if errors.Is(err, domain.ErrPageNotFound) {
			http.Error(w, fmt.Sprintf("Page not found: %s", body.PageID), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Mount error: %v", err), http.StatusInternalServerError)
		s.logger.Error("CreateSession: mount failed", "page_id", body.PageID, "error", err)
		return
	}
	s.Sessions.Put(sess.ID, sess)

	tree, err := sess.Render(r.Context())
	if err != nil {
		s.logger.Warn("CreateSession: render did not settle", "session_id", sess.ID, "error", err)
	}
	s.logger.Info("session created", "session_id", sess.ID, "page_id", body.PageID)
	writeJSON(w, s.logger, http.StatusCreated, CreateSessionResponse{SessionID: sess.ID, Tree: tree})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string][]string{"sessions": s.Sessions.List()})
}

// Render handles the GET /sessions/{id}/render request.
// ?settle=false returns the current pass without waiting for fetches.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	settle := true
	if v := r.URL.Query().Get("settle"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "Invalid settle parameter", http.StatusBadRequest)
			return
		}
		settle = b
	}
	s.apply(w, r, runner.Event{Type: runner.EventRender}, settle)
}

// Event handles the POST /sessions/{id}/events request.
func (s *Server) Event(w http.ResponseWriter, r *http.Request) {
	var ev runner.Event
	if err := decodeLimited(r, &ev); err != nil {
		http.Error(w, fmt.Sprintf("Invalid event: %v", err), http.StatusBadRequest)
		s.logger.Warn("Event: input rejected", "error", err)
		return
	}
	s.apply(w, r, ev, true)
}

// Viewport handles the PUT /sessions/{id}/viewport request.
func (s *Server) Viewport(w http.ResponseWriter, r *http.Request) {
	var body ViewportRequest
	if err := decodeLimited(r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ev := runner.Event{Type: runner.EventViewport, Width: body.Width, Height: body.Height, Breakpoint: body.Breakpoint}
	s.apply(w, r, ev, true)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.sessionError(w, id, err)
		return
	}
	s.logger.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// apply runs ev under the session lock and broadcasts the resulting store diff.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, ev runner.Event, settle bool) {
	id := chi.URLParam(r, "id")
	var resp *runner.Response
	err := s.Sessions.WithLock(r.Context(), id, func(ctx context.Context, sess *canopy.Session) error {
		before := sess.Snapshot()
		var err error
		resp, err = runner.Apply(ctx, sess, ev, settle)
		s.broadcastDiff(id, before, sess.Snapshot())
		return err
	})
	if err != nil {
		s.sessionError(w, id, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

// SessionDiff is pushed to stream subscribers after every event.
type SessionDiff struct {
	Overrides *domain.StoreDiff `json:"overrides,omitempty"`
	States    *domain.StoreDiff `json:"states,omitempty"`
}

func (s *Server) broadcastDiff(id string, before, after canopy.StoreSnapshot) {
	diff := SessionDiff{
		Overrides: domain.Diff(before.Overrides, after.Overrides),
		States:    domain.Diff(before.States, after.States),
	}
	if diff.Overrides == nil && diff.States == nil {
		s.logger.Debug("no store diff", "session_id", id)
		return
	}
	bytes, err := json.Marshal(diff)
	if err != nil {
		s.logger.Warn("failed to encode diff", "session_id", id, "error", err)
		return
	}
	s.Streams.Broadcast(id, string(bytes))
}

func (s *Server) sessionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, fmt.Sprintf("Session not found: %s", id), http.StatusNotFound)
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, runner.ErrUnknownEvent), errors.Is(err, runner.ErrInvalidEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		s.logger.Error("session request failed", "session_id", id, "error", err)
	}
}

// decodeLimited applies the input policy of the JSON-lines runner to every
// request body the server decodes.
func decodeLimited(r *http.Request, out any) error {
	limit := int64(runner.MaxInputSize())
	raw := make([]byte, 0, 512)
	buf := make([]byte, 4096)
	for {
		n, err := r.Body.Read(buf)
		raw = append(raw, buf[:n]...)
		if int64(len(raw)) > limit {
			return fmt.Errorf("%w: limit=%d", runner.ErrInputTooLarge, limit)
		}
		if err != nil {
			break
		}
	}
	clean, err := runner.SanitizeInput(string(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(clean), out)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
