package das

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Labels are matched against Line.Folded (no accents, lowercase).
var (
	cnpjLabelRe      = regexp.MustCompile(`\bcnpj\b`)
	cnpjTokenRe      = regexp.MustCompile(`\d(?:[\d./-]*\d)?`)
	cnpjFormattedRe  = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)
	dateShapeRe      = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	nonDigitRe       = regexp.MustCompile(`\D`)
	companyLabelRe   = regexp.MustCompile(`(?:nome empresarial|razao social)\s*:\s*`)
	regimeLabelRe    = regexp.MustCompile(`regime de apuracao(?: da receita)?\s*:?\s*`)
	simplesRe        = regexp.MustCompile(`\bsimples nacional\b`)
	periodLabelRe    = regexp.MustCompile(`periodo de apuracao|\(pa\)|\bpa\s*:|mes de apuracao|competencia\s*:`)
	dateRangeRe      = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*(?:a|ate|-|–)\s*(\d{2}/\d{2}/\d{4})`)
	monthYearRe      = regexp.MustCompile(`(?:^|[^\d/])(\d{2})/(\d{4})(?:$|[^\d/])`)
	monthNameYearRe  = regexp.MustCompile(`\b(janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s*/\s*(\d{4})\b`)
	receitaPALabelRe = regexp.MustCompile(`receita bruta (?:total )?do pa\b|\(rpa\)|receita bruta do periodo de apuracao`)
	rbt12LabelRe     = regexp.MustCompile(`\brbt12\b|receita bruta acumulada nos (?:doze|12) meses`)
	taxTotalLabelRe  = regexp.MustCompile(`valor total do documento|total do debito exigivel|total a pagar|\btotais\b|\btotal\s*:`)
	activityHeaderRe = regexp.MustCompile(`\batividades?\b`)
	letterRe         = regexp.MustCompile(`\p{L}`)
)

var monthNumbers = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "marco": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

// extractCNPJ finds the digits printed next to the CNPJ label. Only the length
// is validated; check digits are not computed.
func extractCNPJ(lines []Line) Field[domain.CNPJ] {
	for i, l := range lines {
		loc := cnpjLabelRe.FindStringIndex(l.Folded)
		if loc == nil {
			continue
		}
		token := firstCNPJToken(l.Folded[loc[1]:], 1)
		if token == "" && i+1 < len(lines) {
			token = firstCNPJToken(lines[i+1].Folded, 8)
		}
		if token == "" {
			continue
		}
		digits := nonDigitRe.ReplaceAllString(token, "")
		if len(digits) != 14 {
			return found(domain.CNPJ{Digits: digits, Valid: false}, true, domain.Issue{
				Field:  "cnpj",
				Kind:   domain.IssueInvalidCNPJ,
				Detail: fmt.Sprintf("%d dígitos encontrados em %q", len(digits), token),
			})
		}
		return found(domain.CNPJ{Digits: digits, Valid: true}, true)
	}

	for _, l := range lines {
		if token := cnpjFormattedRe.FindString(l.Folded); token != "" {
			return found(domain.CNPJ{Digits: nonDigitRe.ReplaceAllString(token, ""), Valid: true}, false)
		}
	}
	return missing[domain.CNPJ](ReasonNotFound, domain.Issue{Field: "cnpj", Kind: domain.IssueNotFound})
}

// firstCNPJToken returns the first number that is not a date and has at least
// minDigits digits. On the label's own line any length is taken so a short
// CNPJ is reported as invalid; on the following line only numbers as long as
// the eight digit root are trusted.
func firstCNPJToken(s string, minDigits int) string {
	for _, token := range cnpjTokenRe.FindAllString(s, -1) {
		if dateShapeRe.MatchString(token) {
			continue
		}
		if len(nonDigitRe.ReplaceAllString(token, "")) >= minDigits {
			return token
		}
	}
	return ""
}

func extractCompanyName(lines []Line) Field[string] {
	for _, l := range lines {
		loc := companyLabelRe.FindStringIndex(l.Folded)
		if loc == nil {
			continue
		}
		name := strings.TrimSpace(l.textAfter(loc[1]))
		if name == "" {
			return missing[string](ReasonUnparseable, domain.Issue{
				Field: "companyName", Kind: domain.IssueUnparseable, Detail: "rótulo sem valor",
			})
		}
		return found(name, true)
	}
	return missing[string](ReasonNotFound)
}

func extractRegime(lines []Line) Field[string] {
	for _, l := range lines {
		loc := regimeLabelRe.FindStringIndex(l.Folded)
		if loc == nil {
			continue
		}
		rest := strings.TrimSpace(l.Folded[loc[1]:])
		switch {
		case strings.HasPrefix(rest, "competencia"):
			return found("Competência", true)
		case strings.HasPrefix(rest, "caixa"):
			return found("Caixa", true)
		case rest != "":
			return found(strings.TrimSpace(l.textAfter(loc[1])), true)
		}
	}
	for _, l := range lines {
		if simplesRe.MatchString(l.Folded) {
			return found("Simples Nacional", false)
		}
	}
	return missing[string](ReasonNotFound)
}

type periodCandidate struct {
	line   int
	raw    string
	period domain.Period
	err    error
}

// extractPeriod prefers the first period printed at or after the
// identification section; every other distinct candidate is reported.
func extractPeriod(lines []Line) Field[domain.Period] {
	candidates := periodCandidates(lines)
	if len(candidates) == 0 {
		return missing[domain.Period](ReasonNotFound, domain.Issue{Field: "period", Kind: domain.IssueNotFound})
	}

	var (
		issues []domain.Issue
		valid  []periodCandidate
	)
	for _, c := range candidates {
		if c.err != nil {
			issues = append(issues, domain.Issue{Field: "period", Kind: domain.IssueInvalidPeriod, Detail: c.err.Error()})
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return missing[domain.Period](ReasonUnparseable, issues...)
	}

	idEnd := identificationEnd(lines)
	chosen := valid[0]
	for _, c := range valid {
		if c.line >= idEnd {
			chosen = c
			break
		}
	}
	for _, c := range valid {
		if !samePeriod(c.period, chosen.period) {
			issues = append(issues, domain.Issue{
				Field:  "period",
				Kind:   domain.IssueAmbiguousPeriod,
				Detail: fmt.Sprintf("candidato descartado %q (linha %d)", c.raw, c.line+1),
			})
		}
	}
	return found(chosen.period, len(valid) == 1, issues...)
}

func samePeriod(a, b domain.Period) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// identificationEnd is the index of the first line carrying the CNPJ.
func identificationEnd(lines []Line) int {
	for _, l := range lines {
		if cnpjLabelRe.MatchString(l.Folded) || cnpjFormattedRe.MatchString(l.Folded) {
			return l.Index
		}
	}
	return 0
}

func periodCandidates(lines []Line) []periodCandidate {
	var out []periodCandidate
	for i, l := range lines {
		for _, m := range dateRangeRe.FindAllStringSubmatch(l.Folded, -1) {
			out = append(out, rangeCandidate(i, m[0], m[1], m[2]))
		}

		labelled := periodLabelRe.MatchString(l.Folded) || (i > 0 && periodLabelRe.MatchString(lines[i-1].Folded))
		if !labelled {
			continue
		}
		for _, m := range monthYearRe.FindAllStringSubmatch(l.Folded, -1) {
			out = append(out, monthCandidate(i, m[1]+"/"+m[2], m[1], m[2]))
		}
		for _, m := range monthNameYearRe.FindAllStringSubmatch(l.Folded, -1) {
			month := monthNumbers[m[1]]
			out = append(out, monthCandidate(i, m[0], fmt.Sprintf("%02d", int(month)), m[2]))
		}
	}
	return out
}

func rangeCandidate(line int, raw, from, to string) periodCandidate {
	c := periodCandidate{line: line, raw: raw}
	start, err := time.Parse("02/01/2006", from)
	if err != nil {
		c.err = fmt.Errorf("data inicial inválida %q", from)
		return c
	}
	end, err := time.Parse("02/01/2006", to)
	if err != nil {
		c.err = fmt.Errorf("data final inválida %q", to)
		return c
	}
	if end.Before(start) {
		c.err = fmt.Errorf("fim %s anterior ao início %s", to, from)
		return c
	}
	c.period = domain.Period{Start: start, End: end}
	return c
}

func monthCandidate(line int, raw, month, year string) periodCandidate {
	c := periodCandidate{line: line, raw: raw}
	start, err := time.Parse("01/2006", month+"/"+year)
	if err != nil {
		c.err = fmt.Errorf("mês de apuração inválido %q", raw)
		return c
	}
	c.period = domain.Period{Start: start, End: start.AddDate(0, 1, -1)}
	return c
}

// currencyNear returns the first currency value after a label on the same
// line. A plain or canonical number written right after the label ("IRPJ:
// 1234.56") is accepted too. Otherwise the value may sit alone on the next
// line, but never on a line that starts with another label.
func currencyNear(lines []Line, label *regexp.Regexp, skip func(Line) bool) (value decimal.Decimal, labelSeen, ok bool) {
	for i, l := range lines {
		if skip != nil && skip(l) {
			continue
		}
		loc := label.FindStringIndex(l.Folded)
		if loc == nil {
			continue
		}
		labelSeen = true
		for _, n := range l.Currencies() {
			if n.Start >= loc[1] {
				return n.Value, true, true
			}
		}
		if m := plainAmountRe.FindStringSubmatch(l.Folded[loc[1]:]); m != nil && !thousandsOnlyRe.MatchString(m[1]) {
			if v, parsed := ParseNumeral(m[1]); parsed {
				return v, true, true
			}
		}
		if i+1 < len(lines) {
			if v, bare := bareValue(lines[i+1]); bare {
				return v, true, true
			}
		}
	}
	return decimal.Zero, labelSeen, false
}

var (
	plainAmountRe = regexp.MustCompile(`^\s*[:=-]?\s*(?:r\$\s*)?(-?\d[\d.,]*)(?:\s|$)`)
	barePrefixRe  = regexp.MustCompile(`^\s*(?:r\$)?\s*$`)

	// "1.000" reads as one thousand or as one; neither is trusted.
	thousandsOnlyRe = regexp.MustCompile(`^\d{1,3}\.\d{3}$`)
)

// bareValue reads a line whose first currency amount has nothing but an
// optional "R$" in front of it.
func bareValue(l Line) (decimal.Decimal, bool) {
	currencies := l.Currencies()
	if len(currencies) == 0 || !barePrefixRe.MatchString(l.Folded[:currencies[0].Start]) {
		return decimal.Zero, false
	}
	return currencies[0].Value, true
}

func revenueRule(field string, label *regexp.Regexp) func([]Line) Field[decimal.Decimal] {
	return func(lines []Line) Field[decimal.Decimal] {
		v, labelSeen, ok := currencyNear(lines, label, nil)
		switch {
		case ok:
			return found(v, true)
		case labelSeen:
			return missing[decimal.Decimal](ReasonUnparseable, domain.Issue{
				Field: field, Kind: domain.IssueUnparseable, Detail: "rótulo encontrado sem valor monetário",
			})
		default:
			return missing[decimal.Decimal](ReasonNotFound, domain.Issue{Field: field, Kind: domain.IssueNotFound})
		}
	}
}

var (
	extractReceitaPA = revenueRule("receitaPA", receitaPALabelRe)
	extractRBT12     = revenueRule("rbt12", rbt12LabelRe)
)

// extractActivities reads the per-activity table. A single line that does not
// fit the row shape is skipped; two in a row end the section.
func extractActivities(lines []Line) Field[[]domain.Activity] {
	start, minRows := 0, 2
	for i, l := range lines {
		if activityHeaderRe.MatchString(l.Folded) && !isActivityRow(l) {
			start, minRows = i+1, 1
			break
		}
	}

	for i := start; i < len(lines); i++ {
		if !isActivityRow(lines[i]) {
			continue
		}
		rows := readActivityRun(lines[i:])
		if len(rows) >= minRows {
			return found(rows, true)
		}
		if minRows == 1 {
			break
		}
	}
	return missing[[]domain.Activity](ReasonNotFound)
}

func readActivityRun(lines []Line) []domain.Activity {
	var (
		rows   []domain.Activity
		misses int
	)
	for _, l := range lines {
		if !isActivityRow(l) {
			misses++
			if misses == 2 {
				break
			}
			continue
		}
		misses = 0
		rows = append(rows, activityFromLine(l))
	}
	return rows
}

func isActivityRow(l Line) bool {
	if len(l.Numerals) == 0 || len(l.Percents()) == 0 || len(l.Currencies()) == 0 {
		return false
	}
	label := l.Folded[:l.Numerals[0].Start]
	return len(letterRe.FindAllString(label, 4)) >= 3
}

func activityFromLine(l Line) domain.Activity {
	label := strings.TrimSpace(strings.TrimRight(l.textBefore(l.Numerals[0].Start), " :-–"))
	currencies := l.Currencies()
	a := domain.Activity{
		Label:       label,
		Share:       l.Percents()[0].Value,
		TaxSubtotal: currencies[len(currencies)-1].Value,
	}
	if len(currencies) >= 2 {
		revenue := currencies[0].Value
		a.Revenue = &revenue
	}
	return a
}
