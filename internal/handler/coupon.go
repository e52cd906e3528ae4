package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/verdora/coupon-engine/internal/domain/coupon"
	"github.com/verdora/coupon-engine/internal/domain/user"
)

type applyCouponRequest struct {
	Code       string          `json:"code"`
	UserID     string          `json:"user_id"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ProductIDs []string        `json:"product_ids,omitempty"`
}

type applyCouponResponse struct {
	CouponID       string          `json:"coupon_id"`
	CouponCode     string          `json:"coupon_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
}

// ApplyCoupon evaluates a coupon against the caller's cart and, on success,
// consumes one use and returns the discount.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Code == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code and user_id are required")
		return
	}
	if req.Subtotal.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_request", "subtotal must not be negative")
		return
	}

	ctx := r.Context()
	uc, err := h.users.GetContext(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		logError(r, "loading user context", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	info := coupon.CartInfo{
		UserID:           req.UserID,
		Subtotal:         req.Subtotal,
		ProductIDs:       req.ProductIDs,
		MembershipTierID: uc.MembershipTierID,
		IsNewUser:        uc.IsNewUser,
	}

	app, err := h.coupons.Apply(ctx, req.Code, info)
	if err != nil {
		h.writeApplyError(w, r, err)
		return
	}

	final := req.Subtotal.Sub(app.DiscountAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	writeJSON(w, http.StatusOK, applyCouponResponse{
		CouponID:       app.CouponID,
		CouponCode:     app.CouponCode,
		DiscountAmount: app.DiscountAmount,
		FinalTotal:     final,
	})
}

// writeApplyError maps application failures onto HTTP statuses. Condition and
// usage-limit rejections are client-visible business outcomes (422); corrupted
// condition data is a server fault and must not leak stored values.
func (h *Handler) writeApplyError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notMet  *coupon.ConditionNotMetError
		invalid *coupon.InvalidConditionError
	)
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, "coupon_not_found", "coupon not found or not active")
	case errors.As(err, &notMet):
		writeError(w, http.StatusUnprocessableEntity, "condition_not_met", notMet.Reason)
	case errors.Is(err, coupon.ErrUsageLimitExceeded):
		writeError(w, http.StatusUnprocessableEntity, "usage_limit_exceeded", "coupon usage limit has been reached")
	case errors.As(err, &invalid):
		logError(r, "corrupted coupon condition data", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	default:
		logError(r, "applying coupon", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type conditionPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type couponResponse struct {
	ID          string             `json:"id"`
	Code        string             `json:"code"`
	Type        string             `json:"discount_type"`
	Value       decimal.Decimal    `json:"value"`
	MaxDiscount *decimal.Decimal   `json:"max_discount,omitempty"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	UsageLimit  int                `json:"usage_limit"`
	UsedCount   int                `json:"used_count"`
	SetID       string             `json:"condition_set_id"`
	Conditions  []conditionPayload `json:"conditions"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:         c.ID,
		Code:       c.Code,
		Type:       string(c.Type),
		Value:      c.Value,
		StartTime:  c.StartTime,
		EndTime:    c.EndTime,
		UsageLimit: c.UsageLimit,
		UsedCount:  c.UsedCount,
		SetID:      c.ConditionSet.ID,
		Conditions: make([]conditionPayload, 0, len(c.ConditionSet.Details)),
	}
	if c.MaxDiscount.Valid {
		md := c.MaxDiscount.Decimal
		resp.MaxDiscount = &md
	}
	for _, d := range c.ConditionSet.Details {
		resp.Conditions = append(resp.Conditions, conditionPayload{
			Type:  string(d.Type),
			Value: d.Value,
		})
	}
	return resp
}

// GetCoupon returns a currently active coupon by code.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	c, err := h.coupons.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon_not_found", "coupon not found or not active")
			return
		}
		logError(r, "resolving coupon", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

type createCouponRequest struct {
	Code        string             `json:"code"`
	Type        string             `json:"discount_type"`
	Value       decimal.Decimal    `json:"value"`
	MaxDiscount *decimal.Decimal   `json:"max_discount,omitempty"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	UsageLimit  int                `json:"usage_limit"`
	SetID       string             `json:"condition_set_id,omitempty"`
	SetName     string             `json:"set_name,omitempty"`
	SetReusable bool               `json:"set_reusable,omitempty"`
	Conditions  []conditionPayload `json:"conditions,omitempty"`
}

// CreateCoupon creates a coupon with either inline conditions or a reference
// to an existing reusable condition set.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	create := coupon.CreateRequest{
		Code:        req.Code,
		Type:        coupon.DiscountType(req.Type),
		Value:       req.Value,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		UsageLimit:  req.UsageLimit,
		SetID:       req.SetID,
		SetName:     req.SetName,
		SetReusable: req.SetReusable,
	}
	if req.MaxDiscount != nil {
		create.MaxDiscount = decimal.NewNullDecimal(*req.MaxDiscount)
	}
	for _, c := range req.Conditions {
		create.Details = append(create.Details, coupon.ConditionDetail{
			Type:  coupon.ConditionType(c.Type),
			Value: c.Value,
		})
	}

	c, err := h.coupons.Create(r.Context(), create)
	if err != nil {
		h.writeCreateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

func (h *Handler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *coupon.InvalidConditionError
	switch {
	case errors.Is(err, coupon.ErrEmptyCode),
		errors.Is(err, coupon.ErrUnknownDiscount),
		errors.Is(err, coupon.ErrInvalidValue),
		errors.Is(err, coupon.ErrInvalidTimeWindow),
		errors.Is(err, coupon.ErrInvalidLimit),
		errors.Is(err, coupon.ErrSetConflict):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_condition", invalid.Error())
	case errors.Is(err, coupon.ErrSetNotFound):
		writeError(w, http.StatusBadRequest, "condition_set_not_found", "referenced condition set does not exist")
	case errors.Is(err, coupon.ErrCodeExists):
		writeError(w, http.StatusConflict, "code_exists", "a coupon with this code already exists")
	default:
		logError(r, "creating coupon", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
