package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"mercator-hq/mailrules/pkg/rules"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	if err := s.Put(testUserData()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(&UserData{ID: "user2", Rules: []*rules.Rule{{ID: "r1", Subject: strPtr("hello")}}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	return s
}

func TestMemoryStore_Contract(t *testing.T) {
	checkStoreContract(t, newTestMemoryStore(t))
}

func TestMemoryStore_FromDocument(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(testDocument))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	s, err := NewMemoryStoreFromDocument(doc)
	if err != nil {
		t.Fatalf("NewMemoryStoreFromDocument() error = %v", err)
	}
	checkStoreContract(t, s)

	if got := len(s.Users()); got != 2 {
		t.Errorf("Users() = %d, want 2", got)
	}
}

func TestMemoryStore_UnknownCategoryAssignment(t *testing.T) {
	u := testUserData()
	u.Senders = append(u.Senders, SenderAssignment{Address: "a@b.com", Category: "missing"})
	if err := NewMemoryStore().Put(u); err == nil {
		t.Error("expected error for sender assigned to unknown category")
	}
}

func TestMemoryStore_RuleOperator(t *testing.T) {
	tests := []struct {
		name     string
		operator rules.LogicalOperator
		wantErr  bool
	}{
		{"empty", "", false},
		{"canonical", rules.OperatorOr, false},
		{"lowercase", "or", false},
		{"unknown", "XOR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testUserData()
			u.Rules = append(u.Rules, &rules.Rule{ID: "op", Operator: tt.operator, Subject: strPtr("x")})
			err := NewMemoryStore().Put(u)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_AssignSenderCategory(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	if err := s.AssignSenderCategory("user1", "New <New@Example.com>", "catA"); err != nil {
		t.Fatalf("AssignSenderCategory() error = %v", err)
	}
	cat, err := s.LookupSenderCategory(ctx, "user1", "new@example.com")
	if err != nil || cat == nil || cat.ID != "catA" {
		t.Errorf("LookupSenderCategory() = %v, %v", cat, err)
	}

	if err := s.AssignSenderCategory("user1", "x@y.com", "nope"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("unknown category error = %v, want ErrNotFound", err)
	}
	if err := s.AssignSenderCategory("ghost", "x@y.com", "catA"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.LoadRules(ctx, "user1"); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadRules() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.LoadRules(ctx, "user1")
			_, _ = s.LoadGroupsWithRules(ctx, "user1")
			_, _ = s.LookupSenderCategory(ctx, "user1", "digest@news.example.com")
		}()
		go func() {
			defer wg.Done()
			_ = s.Put(testUserData())
		}()
	}
	wg.Wait()
}
