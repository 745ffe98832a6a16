package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want decimal.Decimal
	}{
		{name: "nil becomes zero", in: nil, want: decimal.Zero},
		{name: "decimal passes through", in: decimal.NewFromInt(42), want: decimal.NewFromInt(42)},
		{name: "nil decimal pointer becomes zero", in: (*decimal.Decimal)(nil), want: decimal.Zero},
		{name: "numeric string", in: "19.99", want: decimal.RequireFromString("19.99")},
		{name: "garbage string becomes zero", in: "not-a-number", want: decimal.Zero},
		{name: "float", in: 12.5, want: decimal.NewFromFloat(12.5)},
		{name: "int", in: 7, want: decimal.NewFromInt(7)},
		{name: "unsupported type becomes zero", in: struct{}{}, want: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAny(tt.in)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestLineTotal(t *testing.T) {
	price := decimal.RequireFromString("9.99")

	assert.True(t, decimal.RequireFromString("29.97").Equal(LineTotal(price, 3)))
	assert.True(t, decimal.Zero.Equal(LineTotal(price, 0)))
	assert.True(t, decimal.Zero.Equal(LineTotal(price, -2)))
}

func TestClamp(t *testing.T) {
	lo := decimal.Zero
	hi := decimal.NewFromInt(100)

	assert.True(t, decimal.NewFromInt(50).Equal(Clamp(decimal.NewFromInt(50), lo, hi)))
	assert.True(t, lo.Equal(Clamp(decimal.NewFromInt(-1), lo, hi)))
	assert.True(t, hi.Equal(Clamp(decimal.NewFromInt(250), lo, hi)))
}

func TestFloorAtZero(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(FloorAtZero(decimal.NewFromInt(-5))))
	assert.True(t, decimal.NewFromInt(5).Equal(FloorAtZero(decimal.NewFromInt(5))))
}
