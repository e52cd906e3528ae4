package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *Coupon
		subtotal   string
		wantAmount string
	}{
		{
			name: "percentage without cap",
			coupon: &Coupon{
				Type:  DiscountPercent,
				Value: decimal.NewFromInt(10),
			},
			subtotal:   "2000.00",
			wantAmount: "200",
		},
		{
			name: "percentage clamped to cap",
			coupon: &Coupon{
				Type:        DiscountPercent,
				Value:       decimal.NewFromInt(10),
				MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(150)),
			},
			subtotal:   "2000.00",
			wantAmount: "150",
		},
		{
			name: "percentage under cap is untouched",
			coupon: &Coupon{
				Type:        DiscountPercent,
				Value:       decimal.NewFromInt(10),
				MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(500)),
			},
			subtotal:   "2000.00",
			wantAmount: "200",
		},
		{
			name: "percentage rounds to cents",
			coupon: &Coupon{
				Type:  DiscountPercent,
				Value: decimal.NewFromInt(10),
			},
			subtotal:   "33.33",
			wantAmount: "3.33",
		},
		{
			name: "fixed amount",
			coupon: &Coupon{
				Type:  DiscountFixed,
				Value: decimal.NewFromInt(50),
			},
			subtotal:   "300.00",
			wantAmount: "50",
		},
		{
			name: "fixed amount may exceed subtotal",
			coupon: &Coupon{
				Type:  DiscountFixed,
				Value: decimal.NewFromInt(50),
			},
			subtotal:   "30.00",
			wantAmount: "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.coupon, decimal.RequireFromString(tt.subtotal))

			require.NoError(t, err)
			want := decimal.RequireFromString(tt.wantAmount)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestCalculate_UnknownType(t *testing.T) {
	c := &Coupon{Type: "LOYALTY_POINTS", Value: decimal.NewFromInt(10)}

	_, err := Calculate(c, decimal.NewFromInt(100))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}
