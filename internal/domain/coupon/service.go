package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the single entry point for applying and creating coupons.
//
// Apply guarantees atomicity of the usage increment only. Callers that need
// the discount and their own order write to succeed or fail together must
// invoke Apply inside their own transaction.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get resolves a currently active coupon by code without consuming a use.
func (s *Service) Get(ctx context.Context, code string) (*Coupon, error) {
	c, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "resolve coupon")
	}
	return c, nil
}

// Apply resolves the coupon for code, evaluates every condition of its set
// against info, computes the discount, and consumes one use. All failures
// are synchronous and typed: ErrNotFound, *ConditionNotMetError,
// ErrUsageLimitExceeded, or *InvalidConditionError. Nothing is retried here;
// retry policy belongs to the caller.
func (s *Service) Apply(ctx context.Context, code string, info CartInfo) (*Application, error) {
	c, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "resolve coupon")
	}

	// Fast path only. The guarded increment below is the authoritative
	// usage-limit check; a racing caller can still exhaust the coupon
	// between here and there.
	if c.UsedCount >= c.UsageLimit {
		return nil, ErrUsageLimitExceeded
	}

	conds, err := ParseConditions(c.ConditionSet.Details)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, cond := range conds {
		if err := cond.Evaluate(info, now); err != nil {
			return nil, err
		}
	}

	amount, err := Calculate(c, info.Subtotal)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.IncrementUsage(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "increment coupon usage")
	}
	if !ok {
		return nil, ErrUsageLimitExceeded
	}

	return &Application{
		DiscountAmount: amount,
		CouponID:       c.ID,
		CouponCode:     c.Code,
	}, nil
}

// CreateRequest holds the input for creating a coupon. When SetID is set the
// existing condition set is reused and Details must be empty; otherwise a new
// set named SetName is created from Details (which may be empty, meaning the
// coupon is unconditional).
type CreateRequest struct {
	Code        string
	Type        DiscountType
	Value       decimal.Decimal
	MaxDiscount decimal.NullDecimal
	StartTime   time.Time
	EndTime     time.Time
	UsageLimit  int
	SetID       string
	SetName     string
	SetReusable bool
	Details     []ConditionDetail
}

// Sentinel errors for creation input validation.
var (
	ErrEmptyCode       = errors.New("coupon code is required")
	ErrInvalidValue    = errors.New("coupon value must be positive")
	ErrInvalidLimit    = errors.New("usage limit must be at least 1")
	ErrSetConflict     = errors.New("cannot both reference an existing condition set and define details")
	ErrUnknownDiscount = errors.New("unknown discount type")
)

// Create validates the request and persists a new coupon. Every inline
// condition detail must parse for its declared type, which keeps
// *InvalidConditionError out of the application path.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Coupon, error) {
	if req.Code == "" {
		return nil, ErrEmptyCode
	}
	if req.Type != DiscountPercent && req.Type != DiscountFixed {
		return nil, ErrUnknownDiscount
	}
	if !req.Value.IsPositive() {
		return nil, ErrInvalidValue
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, ErrInvalidTimeWindow
	}
	if req.UsageLimit < 1 {
		return nil, ErrInvalidLimit
	}
	if req.SetID != "" && len(req.Details) > 0 {
		return nil, ErrSetConflict
	}

	for _, d := range req.Details {
		if _, err := ParseCondition(d); err != nil {
			return nil, err
		}
	}

	set := ConditionSet{
		ID:       req.SetID,
		Name:     req.SetName,
		Reusable: req.SetReusable,
		Details:  req.Details,
	}
	createSet := set.ID == ""
	if createSet {
		set.ID = uuid.New().String()
		if set.Name == "" {
			set.Name = "Conditions for " + req.Code
		}
	}

	c := &Coupon{
		ID:           uuid.New().String(),
		Code:         req.Code,
		Type:         req.Type,
		Value:        req.Value,
		MaxDiscount:  req.MaxDiscount,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		UsageLimit:   req.UsageLimit,
		ConditionSet: set,
	}

	if err := s.repo.Create(ctx, c, createSet); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}
