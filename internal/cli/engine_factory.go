package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/canopy"
	httpadapter "github.com/aretw0/canopy/pkg/adapters/http"
	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/loader"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/persistence/middleware"
)

// EngineOptions holds the flags shared by every command that mounts pages.
type EngineOptions struct {
	Dir           string
	Validate      bool
	Debug         bool
	RedisAddr     string
	RedisPrefix   string
	QueryEndpoint string
	Kinds         []string
	FetchTimeout  time.Duration
	Metrics       *observability.Metrics

	// CachePII lists key patterns whose values never reach the shared cache.
	CachePII []string
}

// createEngine initializes a Canopy engine with standard CLI conventions.
// The returned cleanup releases the Redis connection when one was opened.
func createEngine(opts EngineOptions, logger *slog.Logger) (*canopy.Engine, func() error, error) {
	if _, err := os.Stat(opts.Dir); err != nil {
		return nil, nil, fmt.Errorf("pages directory: %w", err)
	}

	loaderOpts := []loader.Option{loader.WithLogger(logger)}
	if opts.Validate {
		loaderOpts = append(loaderOpts, loader.WithValidation())
	}

	engineOpts := []canopy.Option{
		canopy.WithLogger(logger),
		canopy.WithLoader(loader.NewFileLoader(opts.Dir, loaderOpts...)),
		canopy.WithSubmitter(httpadapter.NewSubmitClient(httpadapter.WithClientLogger(logger))),
	}

	// 1. Hooks
	if opts.Debug {
		engineOpts = append(engineOpts, canopy.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	if opts.Metrics != nil {
		engineOpts = append(engineOpts, canopy.WithLifecycleHooks(opts.Metrics.Hooks()))
	}

	// 2. Collaborators
	if opts.QueryEndpoint != "" {
		engineOpts = append(engineOpts, canopy.WithQueryTransport(
			httpadapter.NewQueryClient(opts.QueryEndpoint, httpadapter.WithClientLogger(logger)),
		))
	}
	if len(opts.Kinds) > 0 {
		engineOpts = append(engineOpts, canopy.WithKinds(opts.Kinds...))
	}
	if opts.FetchTimeout > 0 {
		engineOpts = append(engineOpts, canopy.WithFetchTimeout(opts.FetchTimeout))
	}

	// 3. Shared cache
	cleanup := func() error { return nil }
	if opts.RedisAddr != "" {
		var redisOpts []redis.Option
		if opts.RedisPrefix != "" {
			redisOpts = append(redisOpts, redis.WithPrefix(opts.RedisPrefix))
		}
		cache := redis.New(opts.RedisAddr, os.Getenv("CANOPY_REDIS_PASSWORD"), 0, redisOpts...)
		mws, err := cacheMiddlewares(opts, logger)
		if err != nil {
			cache.Close()
			return nil, nil, err
		}
		engineOpts = append(engineOpts, canopy.WithCache(middleware.Chain(cache, mws...)))
		cleanup = cache.Close
		logger.Info("using redis requirement cache", "addr", opts.RedisAddr, "middlewares", len(mws))
	}

	return canopy.New(engineOpts...), cleanup, nil
}

// cacheMiddlewares builds the PII filter from opts.CachePII and the
// encryption layer from CANOPY_CACHE_KEY, plus CANOPY_CACHE_FALLBACK_KEYS
// (comma separated) for rotation. Keys are base64 encoded 32 byte values.
func cacheMiddlewares(opts EngineOptions, logger *slog.Logger) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(opts.CachePII) > 0 {
		pii, err := middleware.NewPIIMiddleware(opts.CachePII, logger)
		if err != nil {
			return nil, fmt.Errorf("cache pii patterns: %w", err)
		}
		mws = append(mws, pii)
	}

	encoded := os.Getenv("CANOPY_CACHE_KEY")
	if encoded == "" {
		return mws, nil
	}
	cfg := middleware.EncryptionConfig{}
	var err error
	if cfg.ActiveKey, err = middleware.DecodeKey(encoded); err != nil {
		return nil, fmt.Errorf("CANOPY_CACHE_KEY: %w", err)
	}
	for _, s := range strings.Split(os.Getenv("CANOPY_CACHE_FALLBACK_KEYS"), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		key, err := middleware.DecodeKey(s)
		if err != nil {
			return nil, fmt.Errorf("CANOPY_CACHE_FALLBACK_KEYS: %w", err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	enc, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	return append(mws, enc), nil
}

// entryCandidates are tried in order when no page id is given.
var entryCandidates = []string{"home", "index", "main"}

// DetermineEntryPage picks the page to mount when the user names none:
// home, index or main, then the directory name, then the first page found.
func DetermineEntryPage(dir string) (string, error) {
	l := loader.NewFileLoader(dir)
	pages, err := l.ListPages()
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", errors.New("no pages found in " + dir)
	}
	known := make(map[string]bool, len(pages))
	for _, p := range pages {
		known[p] = true
	}
	for _, c := range entryCandidates {
		if known[c] {
			return c, nil
		}
	}
	if abs, err := filepath.Abs(dir); err == nil && known[filepath.Base(abs)] {
		return filepath.Base(abs), nil
	}
	return pages[0], nil
}
