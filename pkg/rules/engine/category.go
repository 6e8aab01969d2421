package engine

import (
	"mercator-hq/mailrules/pkg/rules"
)

// CategoryFilterHolds reports whether the rule's category filter is
// satisfied by the sender's assigned category. assigned is nil when the
// sender has no assignment, which counts as "not included".
//
// A rule without a filter type or with an empty filter list is vacuously
// satisfied.
func CategoryFilterHolds(rule *rules.Rule, assigned *rules.Category) bool {
	if rule == nil || rule.CategoryFilterType == nil || len(rule.CategoryFilters) == 0 {
		return true
	}

	included := false
	if assigned != nil {
		for _, id := range rule.CategoryFilters {
			if id == assigned.ID {
				included = true
				break
			}
		}
	}

	switch *rule.CategoryFilterType {
	case rules.CategoryInclude:
		return included
	case rules.CategoryExclude:
		return !included
	default:
		return false
	}
}

// categoryReason formats the reason string for a category match.
func categoryReason(assigned *rules.Category) string {
	name := UncategorizedName
	if assigned != nil && assigned.Name != "" {
		name = assigned.Name
	}
	return `Matched category: "` + name + `"`
}
