package engine

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/mailrules/pkg/rules"
)

func TestFindPotentialMatchingRules_StaticMatch(t *testing.T) {
	e := newTestEvaluator(nil)
	rule := &rules.Rule{ID: "r1", UserID: "user1", From: strPtr("*@gmail.com")}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule},
		Message: testMessage("test@gmail.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateResolved {
		t.Fatalf("state = %q, want %q", out.State, StateResolved)
	}
	if out.Match != rule {
		t.Errorf("match = %v, want r1", out.Match)
	}
	if out.Reason != "Matched static conditions" {
		t.Errorf("reason = %q", out.Reason)
	}
	if out.MatchedBy != rules.ConditionStatic {
		t.Errorf("matched by = %q", out.MatchedBy)
	}
	if out.RunID == "" {
		t.Error("expected run id to be set")
	}
}

func TestFindPotentialMatchingRules_NoMatch(t *testing.T) {
	e := newTestEvaluator(nil)

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID: "user1",
		Rules: []*rules.Rule{
			{ID: "r1", From: strPtr("*@gmail.com")},
			{ID: "r2", From: strPtr("[invalid(regex")},
			{ID: "r3"},
		},
		Message: testMessage("test@yahoo.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateExhausted {
		t.Errorf("state = %q, want %q", out.State, StateExhausted)
	}
	if out.Match != nil || len(out.PotentialMatches) != 0 {
		t.Errorf("expected no match and no potential matches, got %+v", out)
	}
	if out.RulesScanned != 3 {
		t.Errorf("rules scanned = %d, want 3", out.RulesScanned)
	}
}

func TestFindPotentialMatchingRules_PriorityOrder(t *testing.T) {
	e := newTestEvaluator(nil)
	r1 := &rules.Rule{ID: "r1", From: strPtr("@example.com")}
	r2 := &rules.Rule{ID: "r2", Subject: strPtr("Hello")}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{r1, r2},
		Message: testMessage("test@example.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != r1 {
		t.Errorf("match = %v, want r1", out.Match)
	}
	if out.RulesScanned != 1 {
		t.Errorf("rules scanned = %d, want 1 (short-circuit)", out.RulesScanned)
	}
}

func TestFindPotentialMatchingRules_MatchDiscardsEarlierPotentials(t *testing.T) {
	e := newTestEvaluator(nil)
	aiRule := &rules.Rule{ID: "ai", Instructions: strPtr("newsletters")}
	staticRule := &rules.Rule{ID: "static", From: strPtr("@example.com")}
	later := &rules.Rule{ID: "later", Instructions: strPtr("anything")}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{aiRule, staticRule, later},
		Message: testMessage("test@example.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateResolved || out.Match != staticRule {
		t.Fatalf("expected static rule to resolve, got %+v", out)
	}
	if len(out.PotentialMatches) != 0 {
		t.Errorf("expected no potential matches on a definitive match, got %d", len(out.PotentialMatches))
	}
}

func TestFindPotentialMatchingRules_AndStrictness(t *testing.T) {
	store := newFakeStore()
	store.addGroup("g1", rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})
	e := newTestEvaluator(nil)

	rule := &rules.Rule{
		ID:       "r1",
		Operator: rules.OperatorAnd,
		Subject:  strPtr("does not appear"),
		GroupID:  strPtr("g1"),
	}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != nil {
		t.Errorf("expected AND rule with failing static condition not to match")
	}
	if store.groupCalls != 0 {
		t.Errorf("expected groups not to be loaded after AND failure, got %d loads", store.groupCalls)
	}
}

func TestFindPotentialMatchingRules_AndAllMatch(t *testing.T) {
	store := newFakeStore()
	store.addGroup("g1", rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})
	e := newTestEvaluator(nil)

	rule := &rules.Rule{
		ID:       "r1",
		Operator: rules.OperatorAnd,
		Subject:  strPtr("Hello"),
		GroupID:  strPtr("g1"),
	}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != rule {
		t.Fatalf("expected rule to match")
	}
	if out.MatchedBy != rules.ConditionGroup {
		t.Errorf("matched by = %q, want GROUP (last kind to match)", out.MatchedBy)
	}
	if out.Reason != `Matched group item: "FROM: test@example.com"` {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestFindPotentialMatchingRules_OrLeniency(t *testing.T) {
	tests := []struct {
		name        string
		groupItem   string
		category    *rules.Category
		wantMatch   bool
		wantKind    rules.ConditionType
		wantReason  string
	}{
		{
			name:       "group alone",
			groupItem:  "test@example.com",
			wantMatch:  true,
			wantKind:   rules.ConditionGroup,
			wantReason: `Matched group item: "FROM: test@example.com"`,
		},
		{
			name:       "category alone",
			groupItem:  "someone@else.com",
			category:   &rules.Category{ID: "catA", Name: "Newsletter"},
			wantMatch:  true,
			wantKind:   rules.ConditionCategory,
			wantReason: `Matched category: "Newsletter"`,
		},
		{
			name:      "neither",
			groupItem: "someone@else.com",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.addGroup("g1", rules.GroupItem{Type: rules.GroupItemFrom, Value: tt.groupItem})
			if tt.category != nil {
				store.senders["test@example.com"] = tt.category
			}
			rule := &rules.Rule{
				ID:                 "r1",
				Operator:           rules.OperatorOr,
				GroupID:            strPtr("g1"),
				CategoryFilterType: filterPtr(rules.CategoryInclude),
				CategoryFilters:    []string{"catA"},
			}

			e := newTestEvaluator(nil)
			out, err := e.FindPotentialMatchingRules(context.Background(), Input{
				UserID:  "user1",
				Rules:   []*rules.Rule{rule},
				Message: testMessage("test@example.com"),
				Store:   store,
			})
			if err != nil {
				t.Fatalf("FindPotentialMatchingRules() error = %v", err)
			}
			if (out.Match != nil) != tt.wantMatch {
				t.Fatalf("match = %v, want %v", out.Match != nil, tt.wantMatch)
			}
			if !tt.wantMatch {
				return
			}
			if out.MatchedBy != tt.wantKind {
				t.Errorf("matched by = %q, want %q", out.MatchedBy, tt.wantKind)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", out.Reason, tt.wantReason)
			}
		})
	}
}

func TestFindPotentialMatchingRules_DisplayNameSender(t *testing.T) {
	e := newTestEvaluator(nil)
	rule := &rules.Rule{ID: "r1", UserID: "user1", From: strPtr("*@gmail.com")}

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule},
		Message: testMessage("Test User <test@gmail.com>"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateResolved {
		t.Fatalf("state = %q, want %q", out.State, StateResolved)
	}
	if out.Match != rule {
		t.Errorf("match = %v, want r1", out.Match)
	}
}

func TestFindPotentialMatchingRules_OperatorSpelling(t *testing.T) {
	tests := []struct {
		name           string
		operator       rules.LogicalOperator
		rule           rules.Rule
		from           string
		wantState      State
		wantPotentials int
	}{
		{
			name:           "lowercase or defers when static fails",
			operator:       "or",
			rule:           rules.Rule{From: strPtr("*@gmail.com"), Instructions: strPtr("Is this a receipt?")},
			from:           "a@yahoo.com",
			wantState:      StateDeferred,
			wantPotentials: 1,
		},
		{
			name:      "lowercase or resolves on static match with missing group",
			operator:  "or",
			rule:      rules.Rule{From: strPtr("*@gmail.com"), GroupID: strPtr("missing")},
			from:      "a@gmail.com",
			wantState: StateResolved,
		},
		{
			name:      "padded OR resolves on static match with missing group",
			operator:  " OR ",
			rule:      rules.Rule{From: strPtr("*@gmail.com"), GroupID: strPtr("missing")},
			from:      "a@gmail.com",
			wantState: StateResolved,
		},
		{
			name:      "lowercase and skips when static fails",
			operator:  "and",
			rule:      rules.Rule{From: strPtr("*@gmail.com"), Instructions: strPtr("Is this a receipt?")},
			from:      "a@yahoo.com",
			wantState: StateExhausted,
		},
		{
			name:      "lowercase and needs the group too",
			operator:  "and",
			rule:      rules.Rule{From: strPtr("*@gmail.com"), GroupID: strPtr("missing")},
			from:      "a@gmail.com",
			wantState: StateExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.ID = "r1"
			rule.Operator = tt.operator

			e := newTestEvaluator(nil)
			out, err := e.FindPotentialMatchingRules(context.Background(), Input{
				UserID:  "user1",
				Rules:   []*rules.Rule{&rule},
				Message: testMessage(tt.from),
				Store:   newFakeStore(),
			})
			if err != nil {
				t.Fatalf("FindPotentialMatchingRules() error = %v", err)
			}
			if out.State != tt.wantState {
				t.Errorf("state = %q, want %q", out.State, tt.wantState)
			}
			if len(out.PotentialMatches) != tt.wantPotentials {
				t.Errorf("potential matches = %d, want %d", len(out.PotentialMatches), tt.wantPotentials)
			}
		})
	}
}

func TestFindPotentialMatchingRules_GroupIsolation(t *testing.T) {
	store := newFakeStore()
	store.addGroup("group1", rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})
	store.addGroup("group2", rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})

	rule1 := &rules.Rule{ID: "rule1", UserID: "user1", GroupID: strPtr("group1")}
	rule2 := &rules.Rule{ID: "rule2", UserID: "user1", GroupID: strPtr("group2")}
	store.groups[0].Rules = []*rules.Rule{rule1}
	store.groups[1].Rules = []*rules.Rule{rule2}

	e := newTestEvaluator(nil)

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule1, rule2},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != rule1 {
		t.Errorf("match = %v, want rule1", out.Match)
	}

	// A value present only in group2 must not match rule1.
	store2 := newFakeStore()
	store2.addGroup("group1", rules.GroupItem{Type: rules.GroupItemFrom, Value: "other@example.com"})
	store2.addGroup("group2", rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})

	out, err = e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule1, rule2},
		Message: testMessage("test@example.com"),
		Store:   store2,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != rule2 {
		t.Errorf("match = %v, want rule2", out.Match)
	}
}

func TestFindPotentialMatchingRules_GroupsLoadedOnce(t *testing.T) {
	store := newFakeStore()
	store.addGroup("g1", rules.GroupItem{Type: rules.GroupItemSubject, Value: "nope"})
	store.addGroup("g2", rules.GroupItem{Type: rules.GroupItemSubject, Value: "nope either"})
	e := newTestEvaluator(nil)

	cache := NewRunCache("user1", store)
	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID: "user1",
		Rules: []*rules.Rule{
			{ID: "r0", From: strPtr("nobody")},
			{ID: "r1", GroupID: strPtr("g1")},
			{ID: "r2", GroupID: strPtr("g2")},
			{ID: "r3", GroupID: strPtr("missing")},
		},
		Message: testMessage("test@example.com"),
		Store:   store,
		Cache:   cache,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateExhausted {
		t.Errorf("state = %q, want exhausted", out.State)
	}
	if store.groupCalls != 1 || cache.GroupLoads() != 1 {
		t.Errorf("group loads = %d (cache %d), want 1", store.groupCalls, cache.GroupLoads())
	}
}

func TestFindPotentialMatchingRules_NoGroupLoadWithoutGroupRules(t *testing.T) {
	store := newFakeStore()
	e := newTestEvaluator(nil)

	_, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{{ID: "r1", Subject: strPtr("nothing")}},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if store.groupCalls != 0 || store.catCalls != 0 {
		t.Errorf("expected no store calls, got groups=%d categories=%d", store.groupCalls, store.catCalls)
	}
}

func TestFindPotentialMatchingRules_CategoryExclude(t *testing.T) {
	rule := &rules.Rule{
		ID:                 "r1",
		CategoryFilterType: filterPtr(rules.CategoryExclude),
		CategoryFilters:    []string{"catA"},
	}

	t.Run("sender in excluded category", func(t *testing.T) {
		store := newFakeStore()
		store.senders["test@example.com"] = &rules.Category{ID: "catA", Name: "Newsletter"}
		out, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID:  "user1",
			Rules:   []*rules.Rule{rule},
			Message: testMessage("Test <test@example.com>"),
			Store:   store,
		})
		if err != nil {
			t.Fatalf("FindPotentialMatchingRules() error = %v", err)
		}
		if out.Match != nil {
			t.Error("expected no match for excluded category")
		}
	})

	t.Run("sender without category", func(t *testing.T) {
		store := newFakeStore()
		out, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID:  "user1",
			Rules:   []*rules.Rule{rule},
			Message: testMessage("test@example.com"),
			Store:   store,
		})
		if err != nil {
			t.Fatalf("FindPotentialMatchingRules() error = %v", err)
		}
		if out.Match != rule {
			t.Fatal("expected match for sender without category")
		}
		if out.Reason != `Matched category: "Uncategorized"` {
			t.Errorf("reason = %q", out.Reason)
		}
	})
}

func TestFindPotentialMatchingRules_CategoryLookupMemoised(t *testing.T) {
	store := newFakeStore()
	store.senders["test@example.com"] = &rules.Category{ID: "catB", Name: "Other"}
	include := filterPtr(rules.CategoryInclude)

	_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
		UserID: "user1",
		Rules: []*rules.Rule{
			{ID: "r1", CategoryFilterType: include, CategoryFilters: []string{"catA"}},
			{ID: "r2", CategoryFilterType: include, CategoryFilters: []string{"catC"}},
		},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if store.catCalls != 1 {
		t.Errorf("category lookups = %d, want 1", store.catCalls)
	}
}

func TestFindPotentialMatchingRules_AIDeferral(t *testing.T) {
	store := newFakeStore()
	store.senders["test@example.com"] = &rules.Category{ID: "catA", Name: "Newsletter"}

	aiOnly := &rules.Rule{ID: "ai-only", Instructions: strPtr("Emails about travel")}
	andCategory := &rules.Rule{
		ID:                 "and-category",
		Operator:           rules.OperatorAnd,
		Instructions:       strPtr("Newsletters I never read"),
		CategoryFilterType: filterPtr(rules.CategoryInclude),
		CategoryFilters:    []string{"catA"},
	}
	andFailing := &rules.Rule{
		ID:           "and-failing",
		Operator:     rules.OperatorAnd,
		Instructions: strPtr("Receipts"),
		From:         strPtr("@shop.com"),
	}
	orFailing := &rules.Rule{
		ID:           "or-failing",
		Operator:     rules.OperatorOr,
		Instructions: strPtr("Anything urgent"),
		From:         strPtr("@shop.com"),
	}

	out, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{aiOnly, andCategory, andFailing, orFailing},
		Message: testMessage("test@example.com"),
		Store:   store,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.State != StateDeferred {
		t.Fatalf("state = %q, want deferred", out.State)
	}

	want := []string{"ai-only", "and-category", "or-failing"}
	if len(out.PotentialMatches) != len(want) {
		t.Fatalf("potential matches = %d, want %d", len(out.PotentialMatches), len(want))
	}
	for i, id := range want {
		if out.PotentialMatches[i].ID != id {
			t.Errorf("potential[%d] = %q, want %q", i, out.PotentialMatches[i].ID, id)
		}
	}
}

func TestFindPotentialMatchingRules_LegacyCategoryShortCircuit(t *testing.T) {
	store := newFakeStore()
	store.senders["test@example.com"] = &rules.Category{ID: "catA", Name: "Newsletter"}

	andCategoryAI := &rules.Rule{
		ID:                 "r1",
		Operator:           rules.OperatorAnd,
		Instructions:       strPtr("Newsletters"),
		CategoryFilterType: filterPtr(rules.CategoryInclude),
		CategoryFilters:    []string{"catA"},
	}
	andCategoryOnly := &rules.Rule{
		ID:                 "r2",
		Operator:           rules.OperatorAnd,
		CategoryFilterType: filterPtr(rules.CategoryInclude),
		CategoryFilters:    []string{"catA"},
	}

	tests := []struct {
		name      string
		legacy    bool
		rule      *rules.Rule
		wantState State
	}{
		{"default defers AND category+AI", false, andCategoryAI, StateDeferred},
		{"default resolves AND category only", false, andCategoryOnly, StateResolved},
		{"legacy resolves AND category+AI", true, andCategoryAI, StateResolved},
		{"legacy never resolves AND category only", true, andCategoryOnly, StateExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(DefaultEngineConfig().WithLegacyCategoryShortCircuit(tt.legacy))
			out, err := e.FindPotentialMatchingRules(context.Background(), Input{
				UserID:  "user1",
				Rules:   []*rules.Rule{tt.rule},
				Message: testMessage("test@example.com"),
				Store:   store,
			})
			if err != nil {
				t.Fatalf("FindPotentialMatchingRules() error = %v", err)
			}
			if out.State != tt.wantState {
				t.Errorf("state = %q, want %q", out.State, tt.wantState)
			}
		})
	}
}

func TestFindPotentialMatchingRules_ThreadFiltering(t *testing.T) {
	noThreads := &rules.Rule{ID: "r1", From: strPtr("@example.com"), RunOnThreads: false}
	threads := &rules.Rule{ID: "r2", From: strPtr("@example.com"), RunOnThreads: true}
	e := newTestEvaluator(nil)

	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:   "user1",
		Rules:    []*rules.Rule{noThreads, threads},
		Message:  testMessage("test@example.com"),
		IsThread: true,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != threads {
		t.Errorf("match = %v, want r2 on thread message", out.Match)
	}

	out, err = e.FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{noThreads, threads},
		Message: testMessage("test@example.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != noThreads {
		t.Errorf("match = %v, want r1 on standalone message", out.Match)
	}
}

func TestFindPotentialMatchingRules_SkipsForeignRules(t *testing.T) {
	foreign := &rules.Rule{ID: "r1", UserID: "user2", From: strPtr("@example.com")}
	out, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{foreign},
		Message: testMessage("test@example.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if out.Match != nil {
		t.Error("expected rule owned by another user to be skipped")
	}
}

func TestFindPotentialMatchingRules_Errors(t *testing.T) {
	storeDown := errors.New("store unavailable")

	t.Run("nil message", func(t *testing.T) {
		_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{})
		if !errors.Is(err, ErrNilMessage) {
			t.Errorf("error = %v, want ErrNilMessage", err)
		}
	})

	t.Run("too many rules", func(t *testing.T) {
		e := newTestEvaluator(DefaultEngineConfig().WithMaxRules(1))
		_, err := e.FindPotentialMatchingRules(context.Background(), Input{
			Rules:   []*rules.Rule{{ID: "a"}, {ID: "b"}},
			Message: testMessage("a@b.com"),
		})
		if !errors.Is(err, ErrTooManyRules) {
			t.Errorf("error = %v, want ErrTooManyRules", err)
		}
	})

	t.Run("category lookup failure propagates", func(t *testing.T) {
		store := newFakeStore()
		store.categoryErr = storeDown
		_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID: "user1",
			Rules: []*rules.Rule{{
				ID:                 "r1",
				CategoryFilterType: filterPtr(rules.CategoryExclude),
				CategoryFilters:    []string{"catA"},
			}},
			Message: testMessage("test@example.com"),
			Store:   store,
		})
		var lookupErr *CategoryLookupError
		if !errors.As(err, &lookupErr) {
			t.Fatalf("error = %v, want CategoryLookupError", err)
		}
		if !errors.Is(err, storeDown) {
			t.Errorf("expected cause to be preserved, got %v", err)
		}
		if lookupErr.Sender != "test@example.com" {
			t.Errorf("sender = %q", lookupErr.Sender)
		}
	})

	t.Run("group load failure propagates", func(t *testing.T) {
		store := newFakeStore()
		store.groupErr = storeDown
		_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID:  "user1",
			Rules:   []*rules.Rule{{ID: "r1", GroupID: strPtr("g1")}},
			Message: testMessage("test@example.com"),
			Store:   store,
		})
		var loadErr *GroupLoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("error = %v, want GroupLoadError", err)
		}
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID:  "user1",
			Rules:   []*rules.Rule{{ID: "r1", GroupID: strPtr("g1")}},
			Message: testMessage("test@example.com"),
		})
		if !errors.Is(err, ErrNilStore) {
			t.Errorf("error = %v, want ErrNilStore", err)
		}
	})

	t.Run("cache bound to another user", func(t *testing.T) {
		_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
			UserID:  "user1",
			Rules:   []*rules.Rule{{ID: "r1"}},
			Message: testMessage("test@example.com"),
			Cache:   NewRunCache("user2", newFakeStore()),
		})
		if !errors.Is(err, ErrCacheUserMismatch) {
			t.Errorf("error = %v, want ErrCacheUserMismatch", err)
		}
	})
}

func TestFindPotentialMatchingRules_DoesNotMutateInputs(t *testing.T) {
	rule := &rules.Rule{ID: "r1", Operator: rules.OperatorOr, From: strPtr("*@gmail.com"), Instructions: strPtr("x")}
	msg := testMessage("test@gmail.com")
	ruleCopy, msgCopy := *rule, *msg

	_, err := newTestEvaluator(nil).FindPotentialMatchingRules(context.Background(), Input{
		UserID:  "user1",
		Rules:   []*rules.Rule{rule},
		Message: msg,
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if *msg != msgCopy {
		t.Error("message was mutated")
	}
	if rule.ID != ruleCopy.ID || rule.From != ruleCopy.From || rule.Operator != ruleCopy.Operator {
		t.Error("rule was mutated")
	}
}

func TestFindPotentialMatchingRules_Trace(t *testing.T) {
	e := newTestEvaluator(DefaultEngineConfig().WithTrace(true))
	out, err := e.FindPotentialMatchingRules(context.Background(), Input{
		UserID: "user1",
		Rules: []*rules.Rule{
			{ID: "r1", Subject: strPtr("nope")},
			{ID: "r2", Instructions: strPtr("ai")},
		},
		Message: testMessage("test@example.com"),
	})
	if err != nil {
		t.Fatalf("FindPotentialMatchingRules() error = %v", err)
	}
	if len(out.Trace) != 2 {
		t.Fatalf("trace steps = %d, want 2", len(out.Trace))
	}
	if out.Trace[0].Result != "skip" || out.Trace[1].Result != "defer" {
		t.Errorf("unexpected trace: %+v %+v", out.Trace[0], out.Trace[1])
	}
}

func TestNewEvaluator_InvalidConfig(t *testing.T) {
	_, err := NewEvaluator(DefaultEngineConfig().WithMaxRules(0), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}
