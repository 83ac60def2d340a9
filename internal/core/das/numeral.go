package das

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// NumeralKind tells a currency amount from a percentage.
type NumeralKind int

const (
	NumeralCurrency NumeralKind = iota
	NumeralPercent
)

// Numeral is a pt-BR number found inside a line.
type Numeral struct {
	Kind  NumeralKind
	Raw   string
	Value decimal.Decimal
	// Start and End are byte offsets of Raw inside Line.Folded.
	Start int
	End   int
}

// Canonical returns the value with a decimal point and no thousands separator.
func (n Numeral) Canonical() string {
	return n.Value.StringFixed(2)
}

var (
	numeralTokenRe  = regexp.MustCompile(`(\d[\d.]*,\d+)(\s?%)?`)
	brCurrencyRe    = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})*|\d+),\d{2}$`)
	brDecimalRe     = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})*|\d+),\d+$`)
	canonicalRe     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	currencyMarkers = strings.NewReplacer("R$", "", " ", "", " ", "")
)

// scanNumerals finds the currency and percentage tokens of a single line.
// Comma numbers that are neither a valid currency amount nor a percentage are skipped.
func scanNumerals(text string) []Numeral {
	var out []Numeral
	for _, m := range numeralTokenRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[2]:m[3]]
		isPercent := m[4] >= 0
		switch {
		case isPercent && brDecimalRe.MatchString(raw):
			v, ok := parseBR(raw)
			if !ok {
				continue
			}
			out = append(out, Numeral{Kind: NumeralPercent, Raw: raw, Value: v, Start: m[2], End: m[5]})
		case !isPercent && brCurrencyRe.MatchString(raw):
			v, ok := parseBR(raw)
			if !ok {
				continue
			}
			out = append(out, Numeral{Kind: NumeralCurrency, Raw: raw, Value: v, Start: m[2], End: m[3]})
		}
	}
	return out
}

// parseBR converts "1.234,56" into 1234.56.
func parseBR(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// ParseNumeral parses a Brazilian formatted amount ("R$ 1.234,56"), a plain
// integer ("1234") or a canonical decimal ("1234.56"). It reports false when the
// text is not a number in any of those forms.
func ParseNumeral(val string) (decimal.Decimal, bool) {
	s := currencyMarkers.Replace(strings.TrimSpace(val))
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return decimal.Zero, false
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}

	var (
		v  decimal.Decimal
		ok bool
	)
	switch {
	case brDecimalRe.MatchString(s):
		v, ok = parseBR(s)
	case canonicalRe.MatchString(s):
		d, err := decimal.NewFromString(s)
		v, ok = d, err == nil
	case isGroupedInteger(s):
		v, ok = parseBR(s + ",00")
	}
	if !ok {
		return decimal.Zero, false
	}
	if neg {
		v = v.Neg()
	}
	return v, true
}

var groupedIntegerRe = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// isGroupedInteger matches "1.234.567" (thousands separators, no decimals).
// "1.234" is read as canonical 1.234 before this check runs.
func isGroupedInteger(s string) bool {
	return groupedIntegerRe.MatchString(s) && strings.Count(s, ".") > 1
}
