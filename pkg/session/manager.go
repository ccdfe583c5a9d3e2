package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/google/uuid"
)

// Closer is implemented by sessions that hold resources.
type Closer interface {
	Close() error
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type slot[S any] struct {
	value    S
	lastSeen time.Time
}

// Manager keeps live page sessions by id and serializes access to each one.
// Locks are reference counted so idle ids do not leak.
type Manager[S any] struct {
	mu       sync.Mutex
	sessions map[string]*slot[S]
	locks    map[string]*lockEntry

	logger *slog.Logger
	now    func() time.Time
}

type config struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Manager.
type Option func(*config)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock overrides time.Now (used by Sweep).
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewManager creates an empty session manager.
func NewManager[S any](opts ...Option) *Manager[S] {
	cfg := config{logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[S]{
		sessions: make(map[string]*slot[S]),
		locks:    make(map[string]*lockEntry),
		logger:   cfg.logger,
		now:      cfg.now,
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager[S]) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager[S]) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create registers s under a fresh id.
func (m *Manager[S]) Create(s S) string {
	id := uuid.NewString()
	m.Put(id, s)
	return id
}

// Put registers s under id, replacing any previous session.
func (m *Manager[S]) Put(id string, s S) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &slot[S]{value: s, lastSeen: m.now()}
}

// Get returns the session registered under id.
func (m *Manager[S]) Get(id string) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.sessions[id]
	if !ok {
		var zero S
		return zero, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	sl.lastSeen = m.now()
	return sl.value, nil
}

// WithLock runs fn with exclusive access to the session registered under id.
func (m *Manager[S]) WithLock(ctx context.Context, id string, fn func(ctx context.Context, s S) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return fn(ctx, s)
}

// Delete removes the session, closing it when it implements Closer.
func (m *Manager[S]) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context, s S) error {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return closeSession(s)
	})
}

// List returns the ids of every live session in sorted order.
func (m *Manager[S]) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep closes and removes sessions not accessed for longer than idle.
// It returns the number of sessions removed.
func (m *Manager[S]) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []string
	for id, sl := range m.sessions {
		if sl.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, id := range stale {
		if err := m.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to close idle session", "session_id", id, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("idle sessions swept", "count", removed)
	}
	return removed
}

func closeSession(s any) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
