package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDisplayDecimal(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"+3.21%", "3.21", true},
		{"-1.5%", "-1.5", true},
		{"1,234,567", "1234567", true},
		{" 0.00% ", "0", true},
		{"−0.7", "-0.7", true},
		{"12 345", "12345", true},
		{"", "", false},
		{"N/A", "", false},
		{"상한가", "", false},
	}
	for _, tt := range tests {
		got := ParseDisplayDecimal(tt.in)
		require.Equal(t, tt.valid, got.Valid, "input %q", tt.in)
		if tt.valid {
			assert.Equal(t, tt.want, got.Decimal.String(), "input %q", tt.in)
		}
	}
}

func TestParseDisplayDecimalZeroIsValid(t *testing.T) {
	got := ParseDisplayDecimal("0")
	assert.True(t, got.Valid)
	assert.True(t, got.Decimal.IsZero())
}

func TestNormalizeSign(t *testing.T) {
	assert.Equal(t, "+1.24%", NormalizeSign("1.24%"))
	assert.Equal(t, "+1.24%", NormalizeSign("+1.24%"))
	assert.Equal(t, "+1.24%", NormalizeSign("++1.24%"))
	assert.Equal(t, "-0.85%", NormalizeSign(" -0.85% "))
	assert.Equal(t, "-0.85%", NormalizeSign("−0.85%"))
	assert.Equal(t, "+0.00%", NormalizeSign("0.00%"))
	assert.Equal(t, "", NormalizeSign(""))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("KODEX 200", []string{"TIGER", "KODEX"}))
	assert.False(t, ContainsAny("삼성전자", []string{"KODEX", ""}))
	assert.False(t, ContainsAny("anything", nil))
}
