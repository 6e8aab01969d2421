package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mailrules/pkg/rules"
)

// CategoryCache caches sender category lookups across evaluation runs.
// A cached nil category means the sender is known to have no assignment.
type CategoryCache interface {
	// Get returns the cached category and whether the entry was present.
	Get(ctx context.Context, userID, sender string) (*rules.Category, bool, error)

	// Set stores the result of a lookup. cat may be nil.
	Set(ctx context.Context, userID, sender string, cat *rules.Category) error

	// Invalidate drops every cached entry for the user.
	Invalidate(ctx context.Context, userID string) error
}

// CachedStore decorates a rules.Store with a cross-run category cache.
// Rules and groups pass through to the underlying store. Cache failures
// fall back to the store; store failures are returned and never cached.
type CachedStore struct {
	rules.Store
	cache    CategoryCache
	recorder CacheRecorder
	logger   *slog.Logger
}

// CacheRecorder receives cache hit and miss counts.
type CacheRecorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

const categoryCacheName = "sender_category"

// reloadNotifier is implemented by stores whose contents change underneath
// the cache, such as FileStore.
type reloadNotifier interface {
	OnReload(fn func(users []string))
}

// NewCachedStore wraps next with cache. When next reports reloads, the
// cached categories of every reloaded user are dropped.
func NewCachedStore(next rules.Store, cache CategoryCache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CachedStore{
		Store:  next,
		cache:  cache,
		logger: logger.With("component", "rules.store.cache"),
	}
	if n, ok := next.(reloadNotifier); ok {
		n.OnReload(func(users []string) {
			s.invalidateUsers(context.Background(), users)
		})
	}
	return s
}

// WithRecorder sets the hit/miss recorder and returns s.
func (s *CachedStore) WithRecorder(r CacheRecorder) *CachedStore {
	s.recorder = r
	return s
}

// LookupSenderCategory implements rules.Store.
func (s *CachedStore) LookupSenderCategory(ctx context.Context, userID, sender string) (*rules.Category, error) {
	sender = rules.NormalizeAddress(sender)

	cat, ok, err := s.cache.Get(ctx, userID, sender)
	if err != nil {
		s.logger.Warn("Category cache read failed", "user_id", userID, "error", err)
	} else if ok {
		if s.recorder != nil {
			s.recorder.RecordCacheHit(categoryCacheName)
		}
		return cat, nil
	}
	if s.recorder != nil {
		s.recorder.RecordCacheMiss(categoryCacheName)
	}

	cat, err = s.Store.LookupSenderCategory(ctx, userID, sender)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userID, sender, cat); err != nil {
		s.logger.Warn("Category cache write failed", "user_id", userID, "error", err)
	}
	return cat, nil
}

// Invalidate drops the cached categories of a user.
func (s *CachedStore) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

func (s *CachedStore) invalidateUsers(ctx context.Context, users []string) {
	for _, u := range users {
		if err := s.cache.Invalidate(ctx, u); err != nil {
			s.logger.Warn("Category cache invalidation failed", "user_id", u, "error", err)
		}
	}
}

// AssignSenderCategory records the assignment in the underlying store and
// drops the user's cached categories. It fails with errors.ErrUnsupported
// when the underlying store is read-only.
func (s *CachedStore) AssignSenderCategory(ctx context.Context, userID, sender, categoryID string) error {
	var err error
	switch next := s.Store.(type) {
	case interface {
		AssignSenderCategory(ctx context.Context, userID, sender, categoryID string) error
	}:
		err = next.AssignSenderCategory(ctx, userID, sender, categoryID)
	case interface {
		AssignSenderCategory(userID, sender, categoryID string) error
	}:
		err = next.AssignSenderCategory(userID, sender, categoryID)
	default:
		return fmt.Errorf("%w: store does not support sender assignment", errors.ErrUnsupported)
	}
	if err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("Category cache invalidation failed", "user_id", userID, "error", err)
	}
	return nil
}

type cacheEntry struct {
	category  *rules.Category
	expiresAt time.Time
}

// MemoryCategoryCache is an in-process CategoryCache with a fixed TTL.
type MemoryCategoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]map[string]cacheEntry
}

// NewMemoryCategoryCache creates a cache whose entries live for ttl.
// A zero ttl defaults to one minute.
func NewMemoryCategoryCache(ttl time.Duration) *MemoryCategoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCategoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]cacheEntry),
	}
}

// Get implements CategoryCache.
func (c *MemoryCategoryCache) Get(ctx context.Context, userID, sender string) (*rules.Category, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[userID][sender]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.category, true, nil
}

// Set implements CategoryCache.
func (c *MemoryCategoryCache) Set(ctx context.Context, userID, sender string, cat *rules.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.entries[userID]
	if !ok {
		user = make(map[string]cacheEntry)
		c.entries[userID] = user
	}
	user[sender] = cacheEntry{category: cat, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Invalidate implements CategoryCache.
func (c *MemoryCategoryCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *MemoryCategoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, user := range c.entries {
		n += len(user)
	}
	return n
}
