package das

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"das-service/internal/domain"

	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"
)

const totalColumn = "total"

// taxAliases maps the words a DAS prints in tax headers to their category.
var taxAliases = map[string]domain.TaxCategory{
	"irpj":      domain.TaxIRPJ,
	"csll":      domain.TaxCSLL,
	"cofins":    domain.TaxCOFINS,
	"pis/pasep": domain.TaxPISPasep,
	"pis":       domain.TaxPISPasep,
	"pasep":     domain.TaxPISPasep,
	"inss/cpp":  domain.TaxINSSCPP,
	"cpp":       domain.TaxINSSCPP,
	"inss":      domain.TaxINSSCPP,
	"icms":      domain.TaxICMS,
	"ipi":       domain.TaxIPI,
	"iss":       domain.TaxISS,
	"issqn":     domain.TaxISS,
}

// taxLabelRes locate a category label inside a line for the proximity strategy.
var taxLabelRes = map[domain.TaxCategory]*regexp.Regexp{
	domain.TaxIRPJ:     regexp.MustCompile(`\birpj\b`),
	domain.TaxCSLL:     regexp.MustCompile(`\bcsll\b`),
	domain.TaxCOFINS:   regexp.MustCompile(`\bcofins\b`),
	domain.TaxPISPasep: regexp.MustCompile(`\bpis\s*/\s*pasep\b|\bpis\b|\bpasep\b`),
	domain.TaxINSSCPP:  regexp.MustCompile(`\binss\s*/\s*cpp\b|\bcpp\b|\binss\b`),
	domain.TaxICMS:     regexp.MustCompile(`\bicms\b`),
	domain.TaxIPI:      regexp.MustCompile(`\bipi\b`),
	domain.TaxISS:      regexp.MustCompile(`\bissqn\b|\biss\b`),
}

var (
	headerSlashRe = regexp.MustCompile(`\s*/\s*`)
	headerTrim    = "():;,.-–"
	upperWordRe   = regexp.MustCompile(`^[A-ZÇ/]{3,9}$`)
)

// taxTable is one header line of tax labels paired with its values line.
type taxTable struct {
	header int
	values map[domain.TaxCategory]decimal.Decimal
	total  *decimal.Decimal
}

// extractTaxes reads the tax breakdown. The column layout (a header of labels
// followed by a line of values) is tried first; categories still missing are
// looked up by label proximity.
func extractTaxes(lines []Line) TaxFields {
	out := TaxFields{Categories: make(map[domain.TaxCategory]Field[decimal.Decimal], len(domain.TaxCategories))}

	tables, headerLines, tableIssues := findTaxTables(lines)
	out.Issues = append(out.Issues, tableIssues...)

	var table *taxTable
	if len(tables) > 0 {
		table = &tables[0]
		for _, other := range tables[1:] {
			if !sameTaxValues(*table, other) {
				out.Issues = append(out.Issues, domain.Issue{
					Field:  "taxes",
					Kind:   domain.IssueAmbiguousMatch,
					Detail: fmt.Sprintf("tabela na linha %d difere da tabela na linha %d", other.header+1, table.header+1),
				})
			}
		}
	}

	skipHeaders := func(l Line) bool { return headerLines[l.Index] }
	for _, cat := range domain.TaxCategories {
		if table != nil {
			if v, ok := table.values[cat]; ok {
				out.Categories[cat] = found(v, true)
				continue
			}
		}
		v, labelSeen, ok := currencyNear(lines, taxLabelRes[cat], skipHeaders)
		switch {
		case ok:
			out.Categories[cat] = found(v, false)
		case labelSeen:
			out.Categories[cat] = missing[decimal.Decimal](ReasonUnparseable, domain.Issue{
				Field: "taxes." + string(cat), Kind: domain.IssueUnparseable, Detail: "rótulo encontrado sem valor monetário",
			})
		default:
			out.Categories[cat] = missing[decimal.Decimal](ReasonNotFound)
		}
	}

	switch {
	case table != nil && table.total != nil:
		out.Total = found(*table.total, true)
	default:
		if v, _, ok := currencyNear(lines, taxTotalLabelRe, skipHeaders); ok {
			out.Total = found(v, false)
		} else {
			out.Total = missing[decimal.Decimal](ReasonNotFound)
		}
	}
	return out
}

// findTaxTables returns every header/values pair, the set of header line
// indexes, and issues for headers whose values do not line up.
func findTaxTables(lines []Line) ([]taxTable, map[int]bool, []domain.Issue) {
	var (
		tables  []taxTable
		issues  []domain.Issue
		headers = make(map[int]bool)
	)
	for i, l := range lines {
		columns, ok := taxHeaderColumns(l)
		if !ok {
			continue
		}
		headers[l.Index] = true

		valuesLine := -1
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			if len(lines[j].Currencies()) >= len(columns)-1 {
				valuesLine = j
				break
			}
		}
		if valuesLine < 0 {
			issues = append(issues, domain.Issue{
				Field: "taxes", Kind: domain.IssueUnparseable,
				Detail: fmt.Sprintf("cabeçalho de tributos na linha %d sem linha de valores", i+1),
			})
			continue
		}
		values := lines[valuesLine].Currencies()
		if len(values) != len(columns) {
			issues = append(issues, domain.Issue{
				Field: "taxes", Kind: domain.IssueAmbiguousMatch,
				Detail: fmt.Sprintf("%d colunas e %d valores na linha %d", len(columns), len(values), valuesLine+1),
			})
			continue
		}

		t := taxTable{header: i, values: make(map[domain.TaxCategory]decimal.Decimal)}
		for k, col := range columns {
			v := values[k].Value
			if col == totalColumn {
				t.total = &v
				continue
			}
			cat := domain.TaxCategory(col)
			if _, dup := t.values[cat]; dup {
				issues = append(issues, domain.Issue{
					Field: "taxes." + col, Kind: domain.IssueAmbiguousMatch,
					Detail: fmt.Sprintf("coluna %s repetida no cabeçalho da linha %d; mantido o primeiro valor", col, i+1),
				})
				continue
			}
			t.values[cat] = v
		}
		tables = append(tables, t)
	}
	return tables, headers, issues
}

// taxHeaderColumns resolves the words of a line into tax columns. A line is a
// header when at least three words are known tax labels; only then are
// garbled upper-case words matched fuzzily.
func taxHeaderColumns(l Line) ([]string, bool) {
	if len(l.Numerals) > 0 {
		return nil, false
	}
	words := strings.Fields(headerSlashRe.ReplaceAllString(l.Text, "/"))

	resolved := make([]string, len(words))
	exact := 0
	for i, w := range words {
		key := foldText(strings.Trim(w, headerTrim))
		if cat, ok := taxAliases[key]; ok {
			resolved[i] = string(cat)
			exact++
		} else if key == totalColumn {
			resolved[i] = totalColumn
		}
	}
	if exact < 3 {
		return nil, false
	}

	var matcher *closestmatch.ClosestMatch
	var columns []string
	for i, w := range words {
		if resolved[i] == "" {
			trimmed := strings.Trim(w, headerTrim)
			if !upperWordRe.MatchString(trimmed) {
				continue
			}
			if matcher == nil {
				matcher = closestmatch.New(sortedAliases, []int{2, 3})
			}
			if cat, ok := fuzzyTaxLabel(matcher, foldText(trimmed)); ok {
				resolved[i] = string(cat)
			}
		}
		if resolved[i] != "" {
			columns = append(columns, resolved[i])
		}
	}
	return columns, true
}

// fuzzyTaxLabel accepts a close match only when it keeps the first letter,
// differs in length by at most one rune and is one edit away. closestmatch
// only proposes candidates; they are ranked here by edit distance, and a word
// whose best candidates point at different categories is rejected.
func fuzzyTaxLabel(matcher *closestmatch.ClosestMatch, word string) (domain.TaxCategory, bool) {
	best, bestDist := domain.TaxCategory(""), maxFuzzyDistance+1
	tied := false
	for _, match := range matcher.ClosestN(word, len(sortedAliases)) {
		if match == "" || match[0] != word[0] {
			continue
		}
		if diff := len(match) - len(word); diff > 1 || diff < -1 {
			continue
		}
		dist := editDistance(match, word)
		cat := taxAliases[match]
		switch {
		case dist < bestDist:
			best, bestDist, tied = cat, dist, false
		case dist == bestDist && cat != best:
			tied = true
		}
	}
	if best == "" || tied {
		return "", false
	}
	return best, true
}

const maxFuzzyDistance = 1

var sortedAliases = aliasKeys()

func aliasKeys() []string {
	keys := make([]string, 0, len(taxAliases))
	for k := range taxAliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// editDistance is the Levenshtein distance between two ASCII labels.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func sameTaxValues(a, b taxTable) bool {
	if len(a.values) != len(b.values) {
		return false
	}
	for cat, v := range a.values {
		if w, ok := b.values[cat]; !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}
