package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdora/coupon-engine/internal/domain/coupon"
)

// PostgreSQL error code for unique_violation.
const uniqueViolationCode = "23505"

const (
	// The condition set and its live details are joined into the same query
	// so the caller receives one consistent snapshot: there is no second
	// round trip between resolving the coupon and reading its conditions.
	// The unique index on UPPER(code) guarantees at most one coupon matches,
	// so every returned row belongs to the same coupon.
	findActiveCouponSQL = `SELECT
		c.id, c.code, c.discount_type, c.value, c.max_discount,
		c.start_time, c.end_time, c.usage_limit, c.used_count,
		s.id, s.name, s.is_reusable,
		d.id, d.condition_type, d.condition_value
	FROM coupons c
	JOIN condition_sets s ON s.id = c.condition_set_id
	LEFT JOIN condition_details d ON d.condition_set_id = s.id AND NOT d.is_deleted
	WHERE UPPER(c.code) = UPPER($1)
	  AND NOT c.is_deleted
	  AND c.start_time <= now()
	  AND c.end_time >= now()
	ORDER BY d.id`

	// The usage-limit guard lives inside the UPDATE itself. Checking and
	// incrementing as two statements would admit a race under concurrent
	// applications of the same coupon.
	incrementUsageSQL = `UPDATE coupons
	SET used_count = used_count + 1, updated_at = now()
	WHERE id = $1 AND NOT is_deleted AND used_count < usage_limit`

	insertConditionSetSQL = `INSERT INTO condition_sets (id, name, is_reusable)
	VALUES ($1, $2, $3)`

	insertConditionDetailSQL = `INSERT INTO condition_details
	(condition_set_id, condition_type, condition_value)
	VALUES ($1, $2, $3)`

	insertCouponSQL = `INSERT INTO coupons
	(id, code, discount_type, value, max_discount, start_time, end_time,
	 usage_limit, condition_set_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	conditionSetExistsSQL = `SELECT EXISTS (SELECT 1 FROM condition_sets WHERE id = $1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveByCode looks up a currently valid coupon by its code
// (case-insensitive) and eagerly loads its condition set and non-deleted
// details. Returns coupon.ErrNotFound when no matching coupon exists.
// Usage limits are deliberately not checked here; enforcement happens at
// increment time.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findActiveCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	defer rows.Close()

	var c *coupon.Coupon
	for rows.Next() {
		var (
			row        couponRow
			detailID   *int64
			detailType *string
			detailVal  *string
		)
		err := rows.Scan(
			&row.id, &row.code, &row.discountType, &row.value, &row.maxDiscount,
			&row.startTime, &row.endTime, &row.usageLimit, &row.usedCount,
			&row.setID, &row.setName, &row.setReusable,
			&detailID, &detailType, &detailVal,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon %q: %w", code, err)
		}

		if c == nil {
			c = row.toDomain()
		}
		if detailID != nil {
			c.ConditionSet.Details = append(c.ConditionSet.Details, coupon.ConditionDetail{
				ID:    *detailID,
				Type:  coupon.ConditionType(*detailType),
				Value: *detailVal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	if c == nil {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

// IncrementUsage atomically adds one use to the coupon, guarded by
// used_count < usage_limit in a single conditional update. It reports false
// when the guard rejected the update, i.e. the coupon is exhausted.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, incrementUsageSQL, couponID)
	if err != nil {
		return false, fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Create persists the coupon and, with createSet, its condition set and
// details, all in one transaction. Without createSet the referenced set must
// already exist.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon, createSet bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	set := c.ConditionSet
	if createSet {
		if _, err := tx.Exec(ctx, insertConditionSetSQL, set.ID, set.Name, set.Reusable); err != nil {
			return fmt.Errorf("creating condition set %q: %w", set.ID, err)
		}
		for _, d := range set.Details {
			if _, err := tx.Exec(ctx, insertConditionDetailSQL, set.ID, string(d.Type), d.Value); err != nil {
				return fmt.Errorf("creating condition detail %s: %w", d.Type, err)
			}
		}
	} else {
		var exists bool
		if err := tx.QueryRow(ctx, conditionSetExistsSQL, set.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking condition set %q: %w", set.ID, err)
		}
		if !exists {
			return fmt.Errorf("condition set %q: %w", set.ID, coupon.ErrSetNotFound)
		}
	}

	_, err = tx.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, string(c.Type), c.Value, c.MaxDiscount,
		c.StartTime, c.EndTime, c.UsageLimit, set.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("coupon code %q: %w", c.Code, coupon.ErrCodeExists)
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing coupon %q: %w", c.Code, err)
	}
	return nil
}

type couponRow struct {
	id           string
	code         string
	discountType string
	value        decimal.Decimal
	maxDiscount  decimal.NullDecimal
	startTime    time.Time
	endTime      time.Time
	usageLimit   int32
	usedCount    int32
	setID        string
	setName      string
	setReusable  bool
}

func (row couponRow) toDomain() *coupon.Coupon {
	return &coupon.Coupon{
		ID:          row.id,
		Code:        row.code,
		Type:        coupon.DiscountType(row.discountType),
		Value:       row.value,
		MaxDiscount: row.maxDiscount,
		StartTime:   row.startTime,
		EndTime:     row.endTime,
		UsageLimit:  int(row.usageLimit),
		UsedCount:   int(row.usedCount),
		ConditionSet: coupon.ConditionSet{
			ID:       row.setID,
			Name:     row.setName,
			Reusable: row.setReusable,
		},
	}
}
