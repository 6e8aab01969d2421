package engine

import (
	"testing"

	"mercator-hq/mailrules/pkg/rules"
)

func TestMatchesGroup(t *testing.T) {
	store := newFakeStore()
	store.addGroup("newsletters",
		rules.GroupItem{Type: rules.GroupItemFrom, Value: "@substack.com"},
		rules.GroupItem{Type: rules.GroupItemSubject, Value: "Weekly digest"},
	)
	store.addGroup("vip",
		rules.GroupItem{Type: rules.GroupItemFrom, Value: "Boss@Example.com"},
	)

	tests := []struct {
		name      string
		groupID   string
		msg       *rules.Message
		wantValue string
	}{
		{
			name:      "from item with domain value",
			groupID:   "newsletters",
			msg:       &rules.Message{From: "writer@substack.com", Subject: "Hi"},
			wantValue: "@substack.com",
		},
		{
			name:      "subject item",
			groupID:   "newsletters",
			msg:       &rules.Message{From: "a@b.com", Subject: "Your Weekly digest is here"},
			wantValue: "Weekly digest",
		},
		{
			name:      "from item is case-insensitive",
			groupID:   "vip",
			msg:       &rules.Message{From: "The Boss <boss@example.com>"},
			wantValue: "Boss@Example.com",
		},
		{
			name:    "subject item is case-sensitive",
			groupID: "newsletters",
			msg:     &rules.Message{From: "a@b.com", Subject: "your weekly DIGEST"},
		},
		{
			name:    "item of another group is ignored",
			groupID: "vip",
			msg:     &rules.Message{From: "writer@substack.com"},
		},
		{
			name:    "missing group",
			groupID: "does-not-exist",
			msg:     &rules.Message{From: "writer@substack.com"},
		},
		{
			name:    "empty group id",
			groupID: "",
			msg:     &rules.Message{From: "writer@substack.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := MatchesGroup(tt.groupID, store.groups, tt.msg)
			if tt.wantValue == "" {
				if item != nil {
					t.Errorf("MatchesGroup() = %+v, want nil", item)
				}
				return
			}
			if item == nil {
				t.Fatalf("MatchesGroup() = nil, want item %q", tt.wantValue)
			}
			if item.Value != tt.wantValue {
				t.Errorf("MatchesGroup() value = %q, want %q", item.Value, tt.wantValue)
			}
		})
	}
}

func TestMatchesGroup_SkipsEmptyValues(t *testing.T) {
	groups := []*rules.GroupWithRules{
		nil,
		{Group: nil},
		{Group: &rules.Group{ID: "g", Items: []rules.GroupItem{{Type: rules.GroupItemFrom, Value: ""}}}},
	}
	if item := MatchesGroup("g", groups, &rules.Message{From: "a@b.com"}); item != nil {
		t.Errorf("expected empty item value never to match, got %+v", item)
	}
}

func TestGroupReason(t *testing.T) {
	got := groupReason(&rules.GroupItem{Type: rules.GroupItemFrom, Value: "test@example.com"})
	want := `Matched group item: "FROM: test@example.com"`
	if got != want {
		t.Errorf("groupReason() = %q, want %q", got, want)
	}
}
