package store

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/mailrules/pkg/rules"
)

// userIndex is the read-optimised form of UserData.
type userIndex struct {
	rules      []*rules.Rule
	groups     []*rules.GroupWithRules
	categories map[string]*rules.Category
	senders    map[string]string // normalised address -> category id
}

// MemoryStore implements rules.Store using in-memory maps.
// It is safe for concurrent use. Replace swaps the whole data set atomically,
// which is how the file store applies reloads.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userIndex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*userIndex)}
}

// NewMemoryStoreFromDocument creates a store populated from a decoded document.
func NewMemoryStoreFromDocument(doc *Document) (*MemoryStore, error) {
	s := NewMemoryStore()
	if err := s.Replace(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Put adds or replaces a single user.
func (s *MemoryStore) Put(u *UserData) error {
	idx, err := buildIndex(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users[u.ID] = idx
	s.mu.Unlock()
	return nil
}

// Replace swaps the store contents for the users in doc.
func (s *MemoryStore) Replace(doc *Document) error {
	users := make(map[string]*userIndex, len(doc.Users))
	for _, u := range doc.Users {
		idx, err := buildIndex(u)
		if err != nil {
			return err
		}
		users[u.ID] = idx
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// AssignSenderCategory records that sender belongs to categoryID.
func (s *MemoryStore) AssignSenderCategory(userID, sender, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %q", rules.ErrNotFound, userID)
	}
	if _, ok := idx.categories[categoryID]; !ok {
		return fmt.Errorf("%w: category %q", rules.ErrNotFound, categoryID)
	}
	idx.senders[rules.NormalizeAddress(sender)] = categoryID
	return nil
}

// Users returns the IDs of all users in the store.
func (s *MemoryStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	return out
}

// LoadRules implements rules.Store.
func (s *MemoryStore) LoadRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", rules.ErrNotFound, userID)
	}
	out := make([]*rules.Rule, len(idx.rules))
	copy(out, idx.rules)
	return out, nil
}

// LoadGroupsWithRules implements rules.Store. Unknown users have no groups.
func (s *MemoryStore) LoadGroupsWithRules(ctx context.Context, userID string) ([]*rules.GroupWithRules, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*rules.GroupWithRules, len(idx.groups))
	copy(out, idx.groups)
	return out, nil
}

// LookupSenderCategory implements rules.Store.
func (s *MemoryStore) LookupSenderCategory(ctx context.Context, userID, sender string) (*rules.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	catID, ok := idx.senders[rules.NormalizeAddress(sender)]
	if !ok {
		return nil, nil
	}
	return idx.categories[catID], nil
}

func buildIndex(u *UserData) (*userIndex, error) {
	if u == nil || u.ID == "" {
		return nil, fmt.Errorf("user data has no id")
	}
	u.stampOwner()
	for _, r := range u.Rules {
		if r == nil {
			continue
		}
		if err := checkOperator(r); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.ID, err)
		}
	}

	idx := &userIndex{
		rules:      enabledRules(u.Rules),
		categories: make(map[string]*rules.Category, len(u.Categories)),
		senders:    make(map[string]string, len(u.Senders)),
	}
	idx.groups = joinGroups(u.Groups, idx.rules)

	for _, c := range u.Categories {
		if c != nil {
			idx.categories[c.ID] = c
		}
	}
	for _, a := range u.Senders {
		if _, ok := idx.categories[a.Category]; !ok {
			return nil, fmt.Errorf("user %q: sender %q assigned to unknown category %q", u.ID, a.Address, a.Category)
		}
		idx.senders[rules.NormalizeAddress(a.Address)] = a.Category
	}
	return idx, nil
}
