package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdora/coupon-engine/internal/domain/user"
)

const getUserContextSQL = `SELECT membership_tier_id, created_at
	FROM users WHERE id = $1 AND NOT is_deleted`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. An account
// counts as newly registered while its age is below newUserWindow.
type UserRepository struct {
	pool          *pgxpool.Pool
	newUserWindow time.Duration
	now           func() time.Time
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool, newUserWindow time.Duration) *UserRepository {
	return &UserRepository{
		pool:          pool,
		newUserWindow: newUserWindow,
		now:           time.Now,
	}
}

// GetContext returns the membership tier and new-user flag for the given
// user. Returns user.ErrNotFound when the user does not exist or is deleted.
func (r *UserRepository) GetContext(ctx context.Context, userID string) (*user.Context, error) {
	var (
		tierID    string
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, getUserContextSQL, userID).Scan(&tierID, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user context %q: %w", userID, err)
	}

	return &user.Context{
		MembershipTierID: tierID,
		IsNewUser:        r.now().Sub(createdAt) < r.newUserWindow,
	}, nil
}
