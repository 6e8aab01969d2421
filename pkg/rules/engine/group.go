package engine

import (
	"strings"

	"mercator-hq/mailrules/pkg/rules"
)

// MatchesGroup returns the first item of the group identified by groupID
// that matches the message. Items of other groups are never consulted, even
// when their values are identical. A missing group yields no match.
func MatchesGroup(groupID string, groups []*rules.GroupWithRules, msg *rules.Message) *rules.GroupItem {
	if groupID == "" || msg == nil {
		return nil
	}

	group := findGroup(groupID, groups)
	if group == nil {
		return nil
	}

	for i := range group.Items {
		item := &group.Items[i]
		if matchGroupItem(item, msg) {
			return item
		}
	}
	return nil
}

func findGroup(groupID string, groups []*rules.GroupWithRules) *rules.Group {
	for _, g := range groups {
		if g == nil || g.Group == nil {
			continue
		}
		if g.Group.ID == groupID {
			return g.Group
		}
	}
	return nil
}

// matchGroupItem compares one item to the message. FROM items are matched
// case-insensitively against the sender header so that both full addresses
// and "@domain" values work. SUBJECT items must be contained in the subject.
func matchGroupItem(item *rules.GroupItem, msg *rules.Message) bool {
	if item.Value == "" {
		return false
	}
	switch item.Type {
	case rules.GroupItemFrom:
		// Addresses are compared case-insensitively, the same way sender
		// categories are keyed. Subjects keep static pattern semantics.
		sender := strings.ToLower(msg.From)
		value := strings.ToLower(item.Value)
		return sender == value || strings.Contains(sender, value)
	case rules.GroupItemSubject:
		return strings.Contains(msg.Subject, item.Value)
	default:
		return false
	}
}

// groupReason formats the reason string for a group match.
func groupReason(item *rules.GroupItem) string {
	return `Matched group item: "` + string(item.Type) + ": " + item.Value + `"`
}
