package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/go-chi/chi/v5"
)

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a buffered channel for sessionID. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Broadcast sends msg to every subscriber of sessionID without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	sm.logger.Debug("broadcasting diff", "session_id", sessionID, "subscribers", len(subs), "payload_size", len(msg))
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			// slow client
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Subscribers returns the number of open streams of sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	return flusher, true
}

// SubscribeReload handles the GET /events request: a global hot reload stream
// fed by the page loader watcher.
func (s *Server) SubscribeReload(w http.ResponseWriter, r *http.Request) {
	events, err := s.Engine.Watch(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusNotImplemented)
		return
	}
	flusher, ok := startSSE(w)
	if !ok {
		return
	}
	s.logger.Info("SSE: subscribing to hot reload")

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

// SubscribeSession handles the GET /sessions/{id}/stream request.
// ?watch=states,overrides narrows the stream to diffs touching those stores.
func (s *Server) SubscribeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Sessions.Get(id); err != nil {
		s.sessionError(w, id, err)
		return
	}

	var watchList []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, field := range strings.Split(v, ",") {
			watchList = append(watchList, strings.TrimSpace(field))
		}
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	flusher, ok := startSSE(w)
	if !ok {
		return
	}
	s.logger.Info("SSE: subscribing to session updates", "session_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var diff SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range fields {
		switch field {
		case "states":
			if diff.States != nil {
				return true
			}
		case "overrides":
			if diff.Overrides != nil {
				return true
			}
		}
	}
	return false
}
