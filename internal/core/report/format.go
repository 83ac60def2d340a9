package report

import (
	"strings"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatBRL renders an amount the way Brazilian documents print it: "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	return "R$ " + formatTwoDecimalsComma(d)
}

// FormatPercent renders a ratio (0.1234) as "12,34%", or "-" when undefined.
func FormatPercent(r domain.Ratio) string {
	if !r.Defined {
		return "-"
	}
	return formatTwoDecimalsComma(r.Value.Mul(hundred)) + "%"
}

func formatTwoDecimalsComma(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
