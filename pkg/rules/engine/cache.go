package engine

import (
	"context"

	"mercator-hq/mailrules/pkg/rules"
)

// RunCache holds the store data loaded during one evaluation run: the
// user's groups (loaded at most once, on first use) and the categories of
// the senders seen so far. A RunCache is bound to a single user and is not
// safe for concurrent use; create one per message or per sequential batch.
type RunCache struct {
	userID string
	store  rules.Store

	groups       []*rules.GroupWithRules
	groupsLoaded bool
	groupLoads   int

	categories      map[string]*rules.Category
	categoryLookups int
}

// NewRunCache creates an empty cache for one user.
func NewRunCache(userID string, store rules.Store) *RunCache {
	return &RunCache{
		userID:     userID,
		store:      store,
		categories: make(map[string]*rules.Category),
	}
}

// UserID returns the user the cache is bound to.
func (c *RunCache) UserID() string {
	return c.userID
}

// Groups returns the user's groups, loading them from the store on first call.
func (c *RunCache) Groups(ctx context.Context) ([]*rules.GroupWithRules, error) {
	if c.groupsLoaded {
		return c.groups, nil
	}
	if c.store == nil {
		return nil, &GroupLoadError{UserID: c.userID, Cause: ErrNilStore}
	}

	c.groupLoads++
	groups, err := c.store.LoadGroupsWithRules(ctx, c.userID)
	if err != nil {
		return nil, &GroupLoadError{UserID: c.userID, Cause: err}
	}

	c.groups = groups
	c.groupsLoaded = true
	return c.groups, nil
}

// SenderCategory returns the category assigned to sender, or nil when the
// sender has none. Results, including "none", are memoised; failures are not.
func (c *RunCache) SenderCategory(ctx context.Context, sender string) (*rules.Category, error) {
	key := rules.NormalizeAddress(sender)
	if cat, ok := c.categories[key]; ok {
		return cat, nil
	}
	if c.store == nil {
		return nil, &CategoryLookupError{UserID: c.userID, Sender: key, Cause: ErrNilStore}
	}

	c.categoryLookups++
	cat, err := c.store.LookupSenderCategory(ctx, c.userID, key)
	if err != nil {
		return nil, &CategoryLookupError{UserID: c.userID, Sender: key, Cause: err}
	}

	c.categories[key] = cat
	return cat, nil
}

// GroupLoads returns how many times groups were fetched from the store.
func (c *RunCache) GroupLoads() int {
	return c.groupLoads
}

// CategoryLookups returns how many category lookups reached the store.
func (c *RunCache) CategoryLookups() int {
	return c.categoryLookups
}
