package middleware

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

type piiMiddleware struct {
	next     ports.RequirementCache
	patterns []*regexp.Regexp
	logger   *slog.Logger
}

// NewPIIMiddleware creates a middleware that keeps personal data out of a
// shared cache. Entries whose value holds a key matching one of the patterns
// are not stored, so every session fetches them again.
func NewPIIMiddleware(patternStrings []string, logger *slog.Logger) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next ports.RequirementCache) ports.RequirementCache {
		return &piiMiddleware{next: next, patterns: patterns, logger: logger}
	}, nil
}

func (m *piiMiddleware) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	if field, ok := findPII(entry.Value, m.patterns); ok {
		m.logger.Debug("skipping cache write", "cache_key", key, "field", field)
		return nil
	}
	return m.next.Set(ctx, key, entry)
}

func (m *piiMiddleware) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Clear(ctx context.Context) error {
	return m.next.Clear(ctx)
}

// findPII walks maps and slices looking for a key matching any pattern.
func findPII(v any, patterns []*regexp.Regexp) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			for _, p := range patterns {
				if p.MatchString(k) {
					return k, true
				}
			}
			if field, ok := findPII(sub, patterns); ok {
				return field, true
			}
		}
	case []any:
		for _, sub := range t {
			if field, ok := findPII(sub, patterns); ok {
				return field, true
			}
		}
	}
	return "", false
}
