// Package user exposes the minimal user facts the coupon engine's callers
// need to build a validation context.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when the user does not exist or is deleted.
var ErrNotFound = errors.New("user not found")

// Context is the per-user slice of a coupon validation context: the user's
// membership tier and whether the account counts as newly registered. It is
// consumed by callers of the coupon engine, never by the engine itself.
type Context struct {
	MembershipTierID string
	IsNewUser        bool
}

// Repository provides user context lookup.
type Repository interface {
	GetContext(ctx context.Context, userID string) (*Context, error)
}
