// Package coupon implements the coupon eligibility and discount engine:
// resolving a coupon by code, evaluating its condition set against a cart
// snapshot, computing the discount, and consuming one use of the coupon
// through an atomic guarded increment.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent applies a percentage of the subtotal, optionally
	// capped by the coupon's max discount.
	DiscountPercent DiscountType = "PERCENT"
	// DiscountFixed subtracts a fixed amount. The amount is not clamped to
	// the subtotal; capping at the order total is the caller's policy.
	DiscountFixed DiscountType = "FIXED"
)

// ConditionType enumerates the supported eligibility rule kinds.
type ConditionType string

const (
	// ConditionTier requires an exact membership tier match.
	ConditionTier ConditionType = "TIER"
	// ConditionMinOrderValue requires the cart subtotal to reach a threshold.
	ConditionMinOrderValue ConditionType = "MIN_ORDER_VALUE"
	// ConditionNewUser restricts the coupon to newly registered users when
	// its value is the literal string "true".
	ConditionNewUser ConditionType = "NEW_USER"
	// ConditionDayOfWeek restricts the coupon to a set of weekdays.
	ConditionDayOfWeek ConditionType = "DAY_OF_WEEK"
	// ConditionHourOfDay restricts the coupon to a time-of-day window.
	ConditionHourOfDay ConditionType = "HOUR_OF_DAY"
)

var (
	// ErrNotFound is returned when a coupon code does not exist, is deleted,
	// or is outside its validity window.
	ErrNotFound = errors.New("coupon not found or not active")
	// ErrUsageLimitExceeded is returned when the coupon has no uses left.
	// The guarded increment in the repository is the authoritative source of
	// this error; the service-level pre-check is only a fast path.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
	// ErrInvalidTimeWindow is returned on creation when start_time is not
	// strictly before end_time.
	ErrInvalidTimeWindow = errors.New("coupon start time must be before end time")
	// ErrCodeExists is returned on creation when the code is already taken.
	ErrCodeExists = errors.New("coupon code already exists")
	// ErrSetNotFound is returned on creation when a referenced condition set
	// does not exist.
	ErrSetNotFound = errors.New("condition set not found")
)

// ConditionNotMetError reports the first eligibility rule the cart failed.
// The reason is meant to be shown to the end user verbatim.
type ConditionNotMetError struct {
	Type   ConditionType
	Reason string
}

func (e *ConditionNotMetError) Error() string { return e.Reason }

// InvalidConditionError reports a condition whose stored value cannot be
// parsed for its declared type. This is corrupt coupon configuration, not a
// business rejection, and callers should treat it as an internal error.
type InvalidConditionError struct {
	Type  ConditionType
	Value string
	Cause string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid %s condition value %q: %s", e.Type, e.Value, e.Cause)
}

// Coupon is a discount offer with a validity window, a usage cap, and an
// attached condition set. The condition set is always loaded together with
// the coupon so that resolution and evaluation see one consistent snapshot.
type Coupon struct {
	ID           string
	Code         string
	Type         DiscountType
	Value        decimal.Decimal
	MaxDiscount  decimal.NullDecimal
	StartTime    time.Time
	EndTime      time.Time
	UsageLimit   int
	UsedCount    int
	ConditionSet ConditionSet
}

// ConditionSet is a named bundle of eligibility rules. A reusable set may be
// shared by several coupons. An empty set means the coupon is unconditional.
type ConditionSet struct {
	ID       string
	Name     string
	Reusable bool
	Details  []ConditionDetail
}

// ConditionDetail is one stored eligibility rule. Value is free-form text
// whose interpretation depends on Type; it is parsed exactly once per
// application attempt, before any rule is evaluated.
type ConditionDetail struct {
	ID    int64
	Type  ConditionType
	Value string
}

// CartInfo is the caller-supplied snapshot of user and cart facts a coupon
// is evaluated against. It is built fresh per application attempt and never
// persisted.
type CartInfo struct {
	UserID           string
	Subtotal         decimal.Decimal
	ProductIDs       []string
	MembershipTierID string
	IsNewUser        bool
}

// Application is the result of successfully applying a coupon.
type Application struct {
	DiscountAmount decimal.Decimal
	CouponID       string
	CouponCode     string
}

// Repository provides coupon storage. Implementations must make
// IncrementUsage a single conditional update so that concurrent applications
// can never push used_count past usage_limit.
type Repository interface {
	// FindActiveByCode returns the coupon whose code matches (not deleted,
	// currently inside its validity window) together with its condition set
	// and non-deleted details, loaded in the same call. Returns ErrNotFound
	// when no such coupon exists. Usage limits are not checked here.
	FindActiveByCode(ctx context.Context, code string) (*Coupon, error)

	// IncrementUsage adds one use to the coupon, guarded by
	// used_count < usage_limit in the same statement. It reports false when
	// the guard fails, i.e. the limit was already reached.
	IncrementUsage(ctx context.Context, couponID string) (bool, error)

	// Create persists a coupon. With createSet the coupon's condition set
	// and details are created in the same transaction; otherwise the set ID
	// must reference an existing set, which is reused as-is.
	Create(ctx context.Context, c *Coupon, createSet bool) error
}
