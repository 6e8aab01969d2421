package store

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/mailrules/pkg/rules"
)

// SenderAssignment attaches a category to a sender address.
type SenderAssignment struct {
	Address  string `yaml:"address" json:"address"`
	Category string `yaml:"category" json:"category"`
}

// UserData is everything a store knows about one user. Rules are kept in
// priority order.
type UserData struct {
	ID         string             `yaml:"id" json:"id"`
	Rules      []*rules.Rule      `yaml:"rules" json:"rules"`
	Groups     []*rules.Group     `yaml:"groups,omitempty" json:"groups,omitempty"`
	Categories []*rules.Category  `yaml:"categories,omitempty" json:"categories,omitempty"`
	Senders    []SenderAssignment `yaml:"senders,omitempty" json:"senders,omitempty"`
}

// Document is the on-disk store file: one entry per user.
type Document struct {
	Users []*UserData `yaml:"users" json:"users"`
}

// DecodeDocument parses a store document and stamps ownership on every
// rule, group and category that omits it.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("failed to decode store document: %w", err)
	}

	seen := make(map[string]bool, len(doc.Users))
	for i, u := range doc.Users {
		if u == nil || u.ID == "" {
			return nil, fmt.Errorf("user entry %d has no id", i)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("duplicate user id %q", u.ID)
		}
		seen[u.ID] = true
		u.stampOwner()
	}
	return &doc, nil
}

// LoadDocument reads a store document from disk.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store file: %w", err)
	}
	defer f.Close()
	return DecodeDocument(f)
}

// User returns the entry for userID, or nil.
func (d *Document) User(userID string) *UserData {
	for _, u := range d.Users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (u *UserData) stampOwner() {
	for _, r := range u.Rules {
		if r != nil && r.UserID == "" {
			r.UserID = u.ID
		}
	}
	for _, g := range u.Groups {
		if g != nil && g.UserID == "" {
			g.UserID = u.ID
		}
	}
	for _, c := range u.Categories {
		if c != nil && c.UserID == "" {
			c.UserID = u.ID
		}
	}
}

// enabledRules filters out disabled rules, preserving order.
func enabledRules(in []*rules.Rule) []*rules.Rule {
	out := make([]*rules.Rule, 0, len(in))
	for _, r := range in {
		if r != nil && r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

// joinGroups pairs every group with the enabled rules that reference it.
func joinGroups(groups []*rules.Group, ruleSet []*rules.Rule) []*rules.GroupWithRules {
	byGroup := make(map[string][]*rules.Rule)
	for _, r := range ruleSet {
		if r.HasGroup() {
			byGroup[*r.GroupID] = append(byGroup[*r.GroupID], r)
		}
	}

	out := make([]*rules.GroupWithRules, 0, len(groups))
	for _, g := range groups {
		if g == nil {
			continue
		}
		out = append(out, &rules.GroupWithRules{Group: g, Rules: byGroup[g.ID]})
	}
	return out
}
