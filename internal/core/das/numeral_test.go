package das

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "thousands and cents", input: "1.234,56", want: "1234.56", ok: true},
		{name: "cents only", input: "10,00", want: "10", ok: true},
		{name: "zero", input: "0,00", want: "0", ok: true},
		{name: "currency marker", input: "R$ 1.234,56", want: "1234.56", ok: true},
		{name: "nbsp after marker", input: "R$ 980,10", want: "980.1", ok: true},
		{name: "plain integer", input: "1234", want: "1234", ok: true},
		{name: "canonical decimal", input: "1234.56", want: "1234.56", ok: true},
		{name: "grouped integer", input: "1.234.567", want: "1234567", ok: true},
		{name: "negative", input: "-10,00", want: "-10", ok: true},
		{name: "percentage", input: "12,5%", want: "12.5", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "letters", input: "abc", ok: false},
		{name: "two commas", input: "1,2,3", ok: false},
		{name: "only marker", input: "R$", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumeral(tt.input)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestScanNumerals(t *testing.T) {
	nums := scanNumerals("total r$ 1.234,56 e 10,00% e 12,5 e 3,14 %")
	require.Len(t, nums, 3)

	assert.Equal(t, NumeralCurrency, nums[0].Kind)
	assert.Equal(t, "1.234,56", nums[0].Raw)
	assert.Equal(t, "1234.56", nums[0].Canonical())

	assert.Equal(t, NumeralPercent, nums[1].Kind)
	assert.True(t, nums[1].Value.Equal(decimal.NewFromInt(10)))

	assert.Equal(t, NumeralPercent, nums[2].Kind)
	assert.Equal(t, "3,14", nums[2].Raw)
}

func TestScanNumeralsOffsets(t *testing.T) {
	text := "irpj 40,00 csll 30,00"
	nums := scanNumerals(text)
	require.Len(t, nums, 2)
	for _, n := range nums {
		assert.Equal(t, n.Raw, text[n.Start:n.End])
	}
}

func TestScanNumeralsIgnoresMalformed(t *testing.T) {
	assert.Empty(t, scanNumerals("12.34,56 e 1.2345,00 e 7,1"))
}
