package rules

import (
	"strings"
	"time"
)

// LogicalOperator joins the condition kinds declared on a rule.
type LogicalOperator string

const (
	// OperatorAnd requires every declared condition kind to hold.
	OperatorAnd LogicalOperator = "AND"

	// OperatorOr requires at least one declared condition kind to hold.
	OperatorOr LogicalOperator = "OR"
)

// Normalize trims and upper-cases the operator so "or" and " OR " are read as OR.
func (o LogicalOperator) Normalize() LogicalOperator {
	return LogicalOperator(strings.ToUpper(strings.TrimSpace(string(o))))
}

// Valid reports whether the operator is one of the known operators.
func (o LogicalOperator) Valid() bool {
	n := o.Normalize()
	return n == OperatorAnd || n == OperatorOr
}

// CategoryFilterType selects how a rule's category filter is applied.
type CategoryFilterType string

const (
	// CategoryInclude holds when the sender's category is in the filter list.
	CategoryInclude CategoryFilterType = "INCLUDE"

	// CategoryExclude holds when the sender's category is not in the filter list.
	CategoryExclude CategoryFilterType = "EXCLUDE"
)

// Valid reports whether the filter type is one of the known types.
func (t CategoryFilterType) Valid() bool {
	return t == CategoryInclude || t == CategoryExclude
}

// GroupItemType identifies which message field a group item is compared to.
type GroupItemType string

const (
	// GroupItemFrom matches the message sender.
	GroupItemFrom GroupItemType = "FROM"

	// GroupItemSubject matches the message subject.
	GroupItemSubject GroupItemType = "SUBJECT"
)

// Valid reports whether the item type is one of the known types.
func (t GroupItemType) Valid() bool {
	return t == GroupItemFrom || t == GroupItemSubject
}

// ConditionType is one of the four predicate kinds a rule can declare.
type ConditionType string

const (
	ConditionStatic   ConditionType = "STATIC"
	ConditionGroup    ConditionType = "GROUP"
	ConditionCategory ConditionType = "CATEGORY"
	ConditionAI       ConditionType = "AI"
)

// ConditionOrder is the fixed order in which condition kinds are evaluated.
var ConditionOrder = []ConditionType{
	ConditionStatic,
	ConditionGroup,
	ConditionCategory,
	ConditionAI,
}

// Message is the email under evaluation. It is owned by the caller and is
// never modified during evaluation.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id" yaml:"id"`

	// ThreadID identifies the conversation the message belongs to.
	ThreadID string `json:"thread_id" yaml:"thread_id"`

	// From is the raw sender header (e.g. "Jane <jane@example.com>").
	From string `json:"from" yaml:"from"`

	// To is the raw recipient header.
	To string `json:"to" yaml:"to"`

	// Subject is the message subject.
	Subject string `json:"subject" yaml:"subject"`

	// Body is the plain-text body.
	Body string `json:"body" yaml:"body"`

	// Date is when the message was received. Informational only.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`
}

// Rule is a user-authored automation policy. Rules are read-only inputs to
// evaluation.
type Rule struct {
	// ID is the stable rule identifier.
	ID string `json:"id" yaml:"id"`

	// UserID is the owning user.
	UserID string `json:"user_id" yaml:"user_id"`

	// Name is the human-readable rule name shown to the tie-breaker.
	Name string `json:"name" yaml:"name"`

	// Operator joins the declared condition kinds. Empty means AND.
	Operator LogicalOperator `json:"conditional_operator,omitempty" yaml:"conditional_operator,omitempty"`

	// Static conditions. Nil means the field is not declared.
	From    *string `json:"from,omitempty" yaml:"from,omitempty"`
	To      *string `json:"to,omitempty" yaml:"to,omitempty"`
	Subject *string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body    *string `json:"body,omitempty" yaml:"body,omitempty"`

	// GroupID references the group whose items this rule matches against.
	GroupID *string `json:"group_id,omitempty" yaml:"group_id,omitempty"`

	// CategoryFilterType and CategoryFilters form the category filter.
	CategoryFilterType *CategoryFilterType `json:"category_filter_type,omitempty" yaml:"category_filter_type,omitempty"`
	CategoryFilters    []string            `json:"category_filters,omitempty" yaml:"category_filters,omitempty"`

	// Instructions are the free-text AI instructions.
	Instructions *string `json:"instructions,omitempty" yaml:"instructions,omitempty"`

	// RunOnThreads allows the rule to apply to messages that are part of a thread.
	RunOnThreads bool `json:"run_on_threads" yaml:"run_on_threads"`

	// Enabled rules are evaluated; disabled rules are ignored by stores.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// EffectiveOperator returns the normalized rule operator. Anything other
// than OR, the empty operator included, is AND.
func (r *Rule) EffectiveOperator() LogicalOperator {
	if r.Operator.Normalize() == OperatorOr {
		return OperatorOr
	}
	return OperatorAnd
}

// IsEnabled reports whether the rule is enabled. Rules are enabled by default.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// HasStatic reports whether any static field is declared.
func (r *Rule) HasStatic() bool {
	return nonEmpty(r.From) || nonEmpty(r.To) || nonEmpty(r.Subject) || nonEmpty(r.Body)
}

// HasGroup reports whether the rule references a group.
func (r *Rule) HasGroup() bool {
	return nonEmpty(r.GroupID)
}

// HasCategory reports whether the rule declares a non-empty category filter.
func (r *Rule) HasCategory() bool {
	return r.CategoryFilterType != nil && len(r.CategoryFilters) > 0
}

// HasAI reports whether the rule carries AI instructions.
func (r *Rule) HasAI() bool {
	return nonEmpty(r.Instructions)
}

// ConditionTypes returns the set of declared condition kinds.
func (r *Rule) ConditionTypes() ConditionSet {
	set := ConditionSet{}
	if r.HasStatic() {
		set[ConditionStatic] = struct{}{}
	}
	if r.HasGroup() {
		set[ConditionGroup] = struct{}{}
	}
	if r.HasCategory() {
		set[ConditionCategory] = struct{}{}
	}
	if r.HasAI() {
		set[ConditionAI] = struct{}{}
	}
	return set
}

// DisplayName returns the rule name, falling back to its ID.
func (r *Rule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// ConditionSet is a set of condition kinds.
type ConditionSet map[ConditionType]struct{}

// Has reports whether kind is in the set.
func (s ConditionSet) Has(kind ConditionType) bool {
	_, ok := s[kind]
	return ok
}

// Clone returns an independent copy of the set.
func (s ConditionSet) Clone() ConditionSet {
	out := make(ConditionSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Ordered returns the kinds in evaluation order.
func (s ConditionSet) Ordered() []ConditionType {
	out := make([]ConditionType, 0, len(s))
	for _, kind := range ConditionOrder {
		if s.Has(kind) {
			out = append(out, kind)
		}
	}
	return out
}

// Group is a named, user-scoped collection of items.
type Group struct {
	ID     string      `json:"id" yaml:"id"`
	UserID string      `json:"user_id" yaml:"user_id"`
	Name   string      `json:"name" yaml:"name"`
	Items  []GroupItem `json:"items" yaml:"items"`
}

// GroupItem is a single sender or subject pattern belonging to one group.
type GroupItem struct {
	Type  GroupItemType `json:"type" yaml:"type"`
	Value string        `json:"value" yaml:"value"`
}

// GroupWithRules is a group together with the rules that reference it.
type GroupWithRules struct {
	Group *Group
	Rules []*Rule
}

// Category is a label attached to sender addresses.
type Category struct {
	ID     string `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`
	Name   string `json:"name" yaml:"name"`
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
