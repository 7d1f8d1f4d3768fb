package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestFormatTradedValue(t *testing.T) {
	tests := []struct {
		in   decimal.NullDecimal
		want string
	}{
		{nd("0"), "0억"},
		{nd("99"), "0억"},
		{nd("2500"), "25억"},
		{nd("999999"), "9999억"},
		{nd("1000000"), "1조 0억"},
		{nd("1234567"), "1조 2345억"},
		{nd("1234.9"), "12억"},
		{decimal.NullDecimal{}, "-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTradedValue(tt.in), "input %v", tt.in)
	}
}

func TestFormatChangePercent(t *testing.T) {
	assert.Equal(t, "+4.50%", FormatChangePercent(nd("4.5")))
	assert.Equal(t, "+0.00%", FormatChangePercent(nd("0")))
	assert.Equal(t, "-1.20%", FormatChangePercent(nd("-1.2")))
	assert.Equal(t, "-", FormatChangePercent(decimal.NullDecimal{}))
}

func TestFormatGrouped(t *testing.T) {
	assert.Equal(t, "18,302.46", FormatGrouped(18302.456, 2))
	assert.Equal(t, "999", FormatGrouped(999, 0))
	assert.Equal(t, "1,000", FormatGrouped(1000, 0))
	assert.Equal(t, "-5,137.00", FormatGrouped(-5137, 2))
	assert.Equal(t, "1,234,567.1", FormatGrouped(1234567.1, 1))
}
