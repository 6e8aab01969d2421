package rules

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a requested user or record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides the rules, groups and sender categories for a user.
// Implementations must be safe for concurrent use.
type Store interface {
	// LoadRules returns the user's enabled rules in priority order.
	LoadRules(ctx context.Context, userID string) ([]*Rule, error)

	// LoadGroupsWithRules returns every group owned by the user together
	// with the rules that reference it.
	LoadGroupsWithRules(ctx context.Context, userID string) ([]*GroupWithRules, error)

	// LookupSenderCategory returns the category assigned to the sender for
	// this user, or nil with a nil error when the sender has no assignment.
	// A non-nil error means the state is unknown.
	LookupSenderCategory(ctx context.Context, userID, sender string) (*Category, error)
}
