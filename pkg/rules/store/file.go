package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mailrules/pkg/rules"
)

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Path is the YAML store document.
	Path string

	// Watch enables hot reload on file changes.
	Watch bool

	// DebounceInterval is the quiet period before a reload. Default: 100ms.
	DebounceInterval time.Duration
}

// FileStore serves a YAML store document from memory and optionally reloads
// it when the file changes. A reload that fails to parse keeps the previous
// contents.
type FileStore struct {
	*MemoryStore

	config  FileStoreConfig
	logger  *slog.Logger
	watcher *FileWatcher

	mu       sync.Mutex
	reloads  int
	lastErr  error
	hooks    []func(users []string)
	cancel   context.CancelFunc
	watchErr chan error
}

// NewFileStore loads the document at cfg.Path and, when cfg.Watch is set,
// starts watching it. Call Close to stop watching.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store file path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs := &FileStore{
		MemoryStore: NewMemoryStore(),
		config:      cfg,
		logger:      logger.With("component", "rules.store.file"),
	}
	if err := fs.Reload(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		w, err := NewFileWatcher(cfg.Path, cfg.DebounceInterval, fs.logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		fs.watcher = w
		fs.cancel = cancel
		fs.watchErr = make(chan error, 1)
		go func() {
			fs.watchErr <- w.Watch(ctx, fs.Reload)
		}()
	}
	return fs, nil
}

// Reload re-reads the store document. After a successful reload every
// OnReload hook is called with the users present before or after it.
func (fs *FileStore) Reload() error {
	before := fs.MemoryStore.Users()
	doc, err := LoadDocument(fs.config.Path)
	if err == nil {
		err = fs.MemoryStore.Replace(doc)
	}

	fs.mu.Lock()
	fs.lastErr = err
	if err != nil {
		fs.mu.Unlock()
		return fmt.Errorf("failed to reload %s: %w", fs.config.Path, err)
	}
	fs.reloads++
	reloads := fs.reloads
	hooks := append([]func([]string){}, fs.hooks...)
	fs.mu.Unlock()

	fs.logger.Info("Store file loaded", "path", fs.config.Path, "users", len(doc.Users), "reloads", reloads)
	if len(hooks) == 0 {
		return nil
	}
	users := mergeUsers(before, fs.MemoryStore.Users())
	for _, h := range hooks {
		h(users)
	}
	return nil
}

// OnReload registers fn to run after each successful reload.
func (fs *FileStore) OnReload(fn func(users []string)) {
	fs.mu.Lock()
	fs.hooks = append(fs.hooks, fn)
	fs.mu.Unlock()
}

func mergeUsers(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, u := range list {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

// Reloads returns how many times the document was loaded successfully.
func (fs *FileStore) Reloads() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.reloads
}

// LastError returns the error of the most recent reload attempt, if any.
func (fs *FileStore) LastError() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastErr
}

// Close stops the file watcher.
func (fs *FileStore) Close() error {
	if fs.watcher == nil {
		return nil
	}
	fs.cancel()
	werr := <-fs.watchErr
	err := fs.watcher.Stop()
	fs.watcher = nil
	if werr != nil {
		return werr
	}
	return err
}

var _ rules.Store = (*FileStore)(nil)
