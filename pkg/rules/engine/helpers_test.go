package engine

import (
	"context"
	"errors"
	"sync"

	"mercator-hq/mailrules/pkg/rules"
)

func strPtr(s string) *string { return &s }

func filterPtr(t rules.CategoryFilterType) *rules.CategoryFilterType { return &t }

// fakeStore is an in-test Store with call counting and error injection.
type fakeStore struct {
	mu          sync.Mutex
	groups      []*rules.GroupWithRules
	senders     map[string]*rules.Category
	groupErr    error
	categoryErr error
	groupCalls  int
	catCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{senders: make(map[string]*rules.Category)}
}

func (s *fakeStore) LoadRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	return nil, errors.New("not used")
}

func (s *fakeStore) LoadGroupsWithRules(ctx context.Context, userID string) ([]*rules.GroupWithRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupCalls++
	if s.groupErr != nil {
		return nil, s.groupErr
	}
	return s.groups, nil
}

func (s *fakeStore) LookupSenderCategory(ctx context.Context, userID, sender string) (*rules.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catCalls++
	if s.categoryErr != nil {
		return nil, s.categoryErr
	}
	return s.senders[sender], nil
}

func (s *fakeStore) addGroup(id string, items ...rules.GroupItem) {
	s.groups = append(s.groups, &rules.GroupWithRules{
		Group: &rules.Group{ID: id, UserID: "user1", Name: id, Items: items},
	})
}

func testMessage(from string) *rules.Message {
	return &rules.Message{
		ID:       "msg1",
		ThreadID: "thread1",
		From:     from,
		To:       "me@example.com",
		Subject:  "Hello",
		Body:     "Body text",
	}
}

func newTestEvaluator(cfg *EngineConfig) *Evaluator {
	e, err := NewEvaluator(cfg, nil)
	if err != nil {
		panic(err)
	}
	return e
}
