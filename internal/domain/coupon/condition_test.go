package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, d ConditionDetail) Condition {
	t.Helper()
	c, err := ParseCondition(d)
	require.NoError(t, err)
	return c
}

func TestParseCondition_InvalidData(t *testing.T) {
	tests := []struct {
		name   string
		detail ConditionDetail
	}{
		{
			name:   "unknown condition type",
			detail: ConditionDetail{Type: "CART_COLOR", Value: "red"},
		},
		{
			name:   "min order value is not a number",
			detail: ConditionDetail{Type: ConditionMinOrderValue, Value: "lots"},
		},
		{
			name:   "unknown day code",
			detail: ConditionDetail{Type: ConditionDayOfWeek, Value: "SAT,FUNDAY"},
		},
		{
			name:   "empty day code",
			detail: ConditionDetail{Type: ConditionDayOfWeek, Value: "SAT,,SUN"},
		},
		{
			name:   "hour window missing separator",
			detail: ConditionDetail{Type: ConditionHourOfDay, Value: "0900 to 1800"},
		},
		{
			name:   "hour out of range",
			detail: ConditionDetail{Type: ConditionHourOfDay, Value: "25:00-26:00"},
		},
		{
			name:   "minute out of range",
			detail: ConditionDetail{Type: ConditionHourOfDay, Value: "09:75-18:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.detail)

			var invalid *InvalidConditionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.detail.Type, invalid.Type)
			assert.Equal(t, tt.detail.Value, invalid.Value)
		})
	}
}

func TestParseConditions_FailsOnFirstInvalid(t *testing.T) {
	details := []ConditionDetail{
		{Type: ConditionTier, Value: "gold"},
		{Type: ConditionMinOrderValue, Value: "not-a-number"},
		{Type: ConditionNewUser, Value: "true"},
	}

	_, err := ParseConditions(details)

	var invalid *InvalidConditionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ConditionMinOrderValue, invalid.Type)
}

func TestMinOrderValueCondition(t *testing.T) {
	cond := mustParse(t, ConditionDetail{Type: ConditionMinOrderValue, Value: "500.00"})
	now := time.Now()

	tests := []struct {
		name     string
		subtotal string
		wantPass bool
	}{
		{name: "above threshold", subtotal: "750.00", wantPass: true},
		{name: "exactly at threshold", subtotal: "500.00", wantPass: true},
		{name: "one cent short", subtotal: "499.99", wantPass: false},
		{name: "zero subtotal", subtotal: "0", wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := CartInfo{Subtotal: decimal.RequireFromString(tt.subtotal)}

			err := cond.Evaluate(info, now)

			if tt.wantPass {
				assert.NoError(t, err)
				return
			}
			var notMet *ConditionNotMetError
			require.ErrorAs(t, err, &notMet)
			assert.Equal(t, ConditionMinOrderValue, notMet.Type)
			assert.Equal(t, "Minimum order value of 500 is required", notMet.Reason)
		})
	}
}

func TestTierCondition(t *testing.T) {
	cond := mustParse(t, ConditionDetail{Type: ConditionTier, Value: "gold"})
	now := time.Now()

	assert.NoError(t, cond.Evaluate(CartInfo{MembershipTierID: "gold"}, now))

	err := cond.Evaluate(CartInfo{MembershipTierID: "silver"}, now)
	var notMet *ConditionNotMetError
	require.ErrorAs(t, err, &notMet)
	assert.Equal(t, ConditionTier, notMet.Type)
	assert.Equal(t, "This coupon requires membership tier gold", notMet.Reason)
}

func TestNewUserCondition(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		value    string
		isNew    bool
		wantPass bool
	}{
		{name: "required and user is new", value: "true", isNew: true, wantPass: true},
		{name: "required and user is not new", value: "true", isNew: false, wantPass: false},
		{name: "literal false never constrains", value: "false", isNew: false, wantPass: true},
		{name: "non-literal value never constrains", value: "TRUE", isNew: false, wantPass: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := mustParse(t, ConditionDetail{Type: ConditionNewUser, Value: tt.value})

			err := cond.Evaluate(CartInfo{IsNewUser: tt.isNew}, now)

			if tt.wantPass {
				assert.NoError(t, err)
				return
			}
			var notMet *ConditionNotMetError
			require.ErrorAs(t, err, &notMet)
			assert.Equal(t, ConditionNewUser, notMet.Type)
		})
	}
}

func TestDayOfWeekCondition(t *testing.T) {
	// 2025-06-14 is a Saturday, 15 a Sunday, 16 a Monday.
	saturday := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

	cond := mustParse(t, ConditionDetail{Type: ConditionDayOfWeek, Value: "sat, Sun"})

	assert.NoError(t, cond.Evaluate(CartInfo{}, saturday))
	assert.NoError(t, cond.Evaluate(CartInfo{}, sunday))

	err := cond.Evaluate(CartInfo{}, monday)
	var notMet *ConditionNotMetError
	require.ErrorAs(t, err, &notMet)
	assert.Equal(t, ConditionDayOfWeek, notMet.Type)
	assert.Equal(t, "This coupon is only valid on sat, Sun", notMet.Reason)
}

func TestHourOfDayCondition(t *testing.T) {
	cond := mustParse(t, ConditionDetail{Type: ConditionHourOfDay, Value: "09:00-18:00"})
	at := func(hour, minute int) time.Time {
		return time.Date(2025, 6, 16, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		now      time.Time
		wantPass bool
	}{
		{name: "start is inclusive", now: at(9, 0), wantPass: true},
		{name: "inside window", now: at(12, 30), wantPass: true},
		{name: "last minute inside", now: at(17, 59), wantPass: true},
		{name: "end is exclusive", now: at(18, 0), wantPass: false},
		{name: "before window", now: at(8, 59), wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cond.Evaluate(CartInfo{}, tt.now)

			if tt.wantPass {
				assert.NoError(t, err)
				return
			}
			var notMet *ConditionNotMetError
			require.ErrorAs(t, err, &notMet)
			assert.Equal(t, ConditionHourOfDay, notMet.Type)
		})
	}
}

func TestHourOfDayCondition_HourOnlyForm(t *testing.T) {
	cond := mustParse(t, ConditionDetail{Type: ConditionHourOfDay, Value: "9-18"})
	noon := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, cond.Evaluate(CartInfo{}, noon))
}

func TestHourOfDayCondition_ReversedWindowNeverMatches(t *testing.T) {
	// Midnight wraparound is not supported; a reversed window matches nothing.
	cond := mustParse(t, ConditionDetail{Type: ConditionHourOfDay, Value: "22:00-02:00"})

	for _, hour := range []int{23, 1, 12} {
		now := time.Date(2025, 6, 16, hour, 0, 0, 0, time.UTC)
		var notMet *ConditionNotMetError
		require.ErrorAs(t, cond.Evaluate(CartInfo{}, now), &notMet, "hour %d", hour)
	}
}
