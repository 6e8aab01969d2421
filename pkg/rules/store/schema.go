package store

import (
	"encoding/json"
	"fmt"

	"mercator-hq/mailrules/pkg/rules"
)

// SchemaVersion is the current rule store schema version.
const SchemaVersion = 1

// Schema creates the rule store tables. The statements are portable between
// SQLite and PostgreSQL.
const Schema = `
CREATE TABLE IF NOT EXISTS mailrules_users (
    id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS mailrules_rules (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    enabled BOOLEAN NOT NULL,
    definition TEXT NOT NULL,
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_mailrules_rules_position ON mailrules_rules(user_id, position);

CREATE TABLE IF NOT EXISTS mailrules_groups (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS mailrules_group_items (
    user_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_type TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (user_id, group_id, position)
);

CREATE TABLE IF NOT EXISTS mailrules_categories (
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS mailrules_sender_categories (
    user_id TEXT NOT NULL,
    address TEXT NOT NULL,
    category_id TEXT NOT NULL,
    PRIMARY KEY (user_id, address)
);
`

// userTables lists the per-user tables in deletion order.
var userTables = []string{
	"mailrules_sender_categories",
	"mailrules_categories",
	"mailrules_group_items",
	"mailrules_groups",
	"mailrules_rules",
}

// checkOperator rejects rules whose conditional operator is neither AND nor OR.
func checkOperator(r *rules.Rule) error {
	if r.Operator != "" && !r.Operator.Valid() {
		return fmt.Errorf("rule %q: unknown conditional operator %q", r.ID, r.Operator)
	}
	return nil
}

func encodeRule(r *rules.Rule) (string, error) {
	if err := checkOperator(r); err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule %q: %w", r.ID, err)
	}
	return string(data), nil
}

func decodeRule(definition string) (*rules.Rule, error) {
	var r rules.Rule
	if err := json.Unmarshal([]byte(definition), &r); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	if err := checkOperator(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// groupAssembler collects group and item rows into ordered groups.
type groupAssembler struct {
	order []*rules.Group
	byID  map[string]*rules.Group
}

func newGroupAssembler() *groupAssembler {
	return &groupAssembler{byID: make(map[string]*rules.Group)}
}

func (a *groupAssembler) addGroup(userID, id, name string) {
	g := &rules.Group{ID: id, UserID: userID, Name: name}
	a.order = append(a.order, g)
	a.byID[id] = g
}

func (a *groupAssembler) addItem(groupID, itemType, value string) {
	if g, ok := a.byID[groupID]; ok {
		g.Items = append(g.Items, rules.GroupItem{Type: rules.GroupItemType(itemType), Value: value})
	}
}

// validateImport checks the references inside u before it is written.
func validateImport(u *UserData) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("user data has no id")
	}
	cats := make(map[string]bool, len(u.Categories))
	for _, c := range u.Categories {
		if c != nil {
			cats[c.ID] = true
		}
	}
	for _, a := range u.Senders {
		if !cats[a.Category] {
			return fmt.Errorf("user %q: sender %q assigned to unknown category %q", u.ID, a.Address, a.Category)
		}
	}
	for _, r := range u.Rules {
		if r == nil || r.ID == "" {
			return fmt.Errorf("user %q: rule without id", u.ID)
		}
	}
	return nil
}
