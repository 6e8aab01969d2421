package rules

import (
	"fmt"
	"strings"
)

// IssueSeverity ranks validation findings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"   // Rule can never behave as written
	SeverityWarning IssueSeverity = "warning" // Rule is legal but likely a mistake
)

// Issue is a single validation finding for a rule or group.
type Issue struct {
	Severity IssueSeverity
	RuleID   string
	GroupID  string
	Message  string
}

// Error implements the error interface.
func (i *Issue) Error() string {
	var subject string
	switch {
	case i.RuleID != "":
		subject = "rule " + i.RuleID
	case i.GroupID != "":
		subject = "group " + i.GroupID
	default:
		subject = "store"
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, subject, i.Message)
}

// IssueList accumulates findings instead of failing on the first one.
type IssueList struct {
	Issues []*Issue
}

// Add appends a finding.
func (l *IssueList) Add(sev IssueSeverity, ruleID, groupID, format string, args ...any) {
	l.Issues = append(l.Issues, &Issue{
		Severity: sev,
		RuleID:   ruleID,
		GroupID:  groupID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any finding has error severity.
func (l *IssueList) HasErrors() bool {
	for _, i := range l.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of findings with the given severity.
func (l *IssueList) Count(sev IssueSeverity) int {
	n := 0
	for _, i := range l.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// Error implements the error interface.
func (l *IssueList) Error() string {
	lines := make([]string, 0, len(l.Issues))
	for _, i := range l.Issues {
		lines = append(lines, i.Error())
	}
	return strings.Join(lines, "\n")
}

// ToError returns nil when the list holds no error-severity findings.
func (l *IssueList) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// Validate checks a user's rules against their groups and categories. It
// never changes evaluation semantics: every finding describes a rule that
// evaluates, just not the way its author probably intended.
func Validate(ruleSet []*Rule, groups []*Group, categories []*Category) *IssueList {
	list := &IssueList{}

	groupIDs := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g == nil {
			continue
		}
		if groupIDs[g.ID] {
			list.Add(SeverityError, "", g.ID, "duplicate group id")
		}
		groupIDs[g.ID] = true
		for n, item := range g.Items {
			if !item.Type.Valid() {
				list.Add(SeverityError, "", g.ID, "item %d has unknown type %q", n, item.Type)
			}
			if item.Value == "" {
				list.Add(SeverityWarning, "", g.ID, "item %d has an empty value and never matches", n)
			}
		}
	}

	categoryIDs := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c != nil {
			categoryIDs[c.ID] = true
		}
	}

	ruleIDs := make(map[string]bool, len(ruleSet))
	for _, r := range ruleSet {
		if r == nil {
			continue
		}
		if r.ID == "" {
			list.Add(SeverityError, "", "", "rule %q has no id", r.Name)
		} else if ruleIDs[r.ID] {
			list.Add(SeverityError, r.ID, "", "duplicate rule id")
		}
		ruleIDs[r.ID] = true

		if r.Operator != "" && !r.Operator.Valid() {
			list.Add(SeverityError, r.ID, "", "unknown conditional operator %q", r.Operator)
		}
		if r.CategoryFilterType != nil && !r.CategoryFilterType.Valid() {
			list.Add(SeverityError, r.ID, "", "unknown category filter type %q", *r.CategoryFilterType)
		}
		if r.CategoryFilterType != nil && len(r.CategoryFilters) == 0 {
			list.Add(SeverityWarning, r.ID, "", "category filter type set without categories; filter is ignored")
		}
		if r.CategoryFilterType == nil && len(r.CategoryFilters) > 0 {
			list.Add(SeverityWarning, r.ID, "", "categories listed without a filter type; filter is ignored")
		}
		if len(categoryIDs) > 0 {
			for _, id := range r.CategoryFilters {
				if !categoryIDs[id] {
					list.Add(SeverityWarning, r.ID, "", "category filter references unknown category %q", id)
				}
			}
		}
		if r.HasGroup() && !groupIDs[*r.GroupID] {
			list.Add(SeverityWarning, r.ID, "", "group %q does not exist; group condition never matches", *r.GroupID)
		}
		if len(r.ConditionTypes()) == 0 {
			list.Add(SeverityWarning, r.ID, "", "no conditions declared; rule never matches")
		}
	}

	return list
}
