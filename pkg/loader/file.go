package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// FileLoader implements ports.PageLoader over a directory of JSON and YAML
// documents. A page id is its file name without extension.
type FileLoader struct {
	dir      string
	logger   *slog.Logger
	validate bool
	debounce time.Duration
}

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *FileLoader) {
		l.logger = logger
	}
}

// WithValidation makes LoadPage reject pages that fail Validate.
func WithValidation() Option {
	return func(l *FileLoader) {
		l.validate = true
	}
}

// WithDebounce coalesces file events arriving within d (default 100ms).
func WithDebounce(d time.Duration) Option {
	return func(l *FileLoader) {
		l.debounce = d
	}
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string, opts ...Option) *FileLoader {
	l := &FileLoader{dir: dir, debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// LoadPage reads and decodes the document of page id.
func (l *FileLoader) LoadPage(id string) (*domain.Page, error) {
	path, err := l.find(id)
	if err != nil {
		return nil, err
	}
	page, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if page.ID == "" {
		page.ID = id
	}
	if l.validate {
		if err := Validate(page); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// LoadFile decodes a single document, picking the format from its extension.
func LoadFile(path string) (*domain.Page, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported page file %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, path)
		}
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	page, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return page, nil
}

func (l *FileLoader) find(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: invalid id %q", domain.ErrPageNotFound, id)
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
}

// ListPages returns the ids of every document in the directory.
func (l *FileLoader) ListPages() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(e.Name()); !ok {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Watch signals on the returned channel whenever a page document changes.
// The channel is closed when ctx is done.
func (l *FileLoader) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if _, page := FormatFromPath(ev.Name); !page {
					continue
				}
				l.logger.Debug("page document changed", "file", ev.Name, "op", ev.Op.String())
				if timer == nil {
					timer = time.NewTimer(l.debounce)
				} else {
					timer.Reset(l.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("page watcher error", "error", err)
			}
		}
	}()
	return out, nil
}
