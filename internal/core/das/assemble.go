package das

import (
	"fmt"
	"time"
	"unicode/utf8"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
)

// EPSILON is the tolerance, in reais, between the declared total and the sum
// of the itemized taxes.
const EPSILON = 0.01

const ratioPlaces = 6

var (
	epsilon = decimal.NewFromFloat(EPSILON)
	twelve  = decimal.NewFromInt(12)
)

// AssemblyMeta is the context the assembler records alongside the fields.
type AssemblyMeta struct {
	ExtractedAt      time.Time
	SourceTextLength int
}

// MetaFor builds the assembly metadata for a source text.
func MetaFor(text string, now time.Time) AssemblyMeta {
	return AssemblyMeta{ExtractedAt: now, SourceTextLength: utf8.RuneCountInString(text)}
}

// Assemble builds the FiscalRecord from the extracted fields, reconciles the
// tax total and derives the summary ratios. It never fails.
func Assemble(f Fields, meta AssemblyMeta) *domain.FiscalRecord {
	issues := f.Issues()

	rec := &domain.FiscalRecord{
		Identification: identification(f),
		Revenues: domain.Revenues{
			ReceitaPA:      valueOrZero(f.ReceitaPA),
			ReceitaPAFound: f.ReceitaPA.Present,
			RBT12:          valueOrZero(f.RBT12),
			RBT12Found:     f.RBT12.Present,
		},
	}
	if f.Activities.Present {
		rec.Activities = f.Activities.Value
	}

	var mismatch *domain.Issue
	rec.Taxes, mismatch = reconcile(f.Taxes)
	if mismatch != nil {
		issues = append(issues, *mismatch)
	}

	rec.Summary = summarize(rec, f)
	if issues == nil {
		issues = []domain.Issue{}
	}
	rec.Metadata = domain.Metadata{
		ExtractedAt:      meta.ExtractedAt,
		SourceTextLength: meta.SourceTextLength,
		Issues:           issues,
	}
	return rec
}

func identification(f Fields) domain.Identification {
	var id domain.Identification
	if f.CNPJ.Present {
		cnpj := f.CNPJ.Value
		id.CNPJ = &cnpj
	}
	if f.CompanyName.Present {
		id.CompanyName = f.CompanyName.Value
	}
	if f.Regime.Present {
		id.Regime = f.Regime.Value
	}
	if f.Period.Present {
		p := f.Period.Value
		id.Period = &p
	}
	return id
}

// reconcile sums the itemized taxes and compares them with the declared
// total. A missing total is replaced by the sum without a warning.
func reconcile(tf TaxFields) (domain.Taxes, *domain.Issue) {
	out := domain.Taxes{
		Categories: make(map[domain.TaxCategory]domain.TaxAmount, len(domain.TaxCategories)),
	}
	sum := decimal.Zero
	for _, cat := range domain.TaxCategories {
		field := tf.Categories[cat]
		amount := valueOrZero(field)
		out.Categories[cat] = domain.TaxAmount{Amount: amount, Found: field.Present}
		sum = sum.Add(amount)
	}
	out.ItemizedSum = sum

	if !tf.Total.Present {
		out.Total = sum
		return out, nil
	}

	out.Total = tf.Total.Value
	out.TotalDeclared = true
	delta := tf.Total.Value.Sub(sum).Abs()
	if delta.GreaterThan(epsilon) {
		out.ReconciliationWarning = true
		out.ReconciliationDelta = delta
		return out, &domain.Issue{
			Field:  "taxes.total",
			Kind:   domain.IssueReconciliationMismatch,
			Detail: fmt.Sprintf("total declarado %s, soma dos tributos %s", tf.Total.Value.StringFixed(2), sum.StringFixed(2)),
		}
	}
	return out, nil
}

func summarize(rec *domain.FiscalRecord, f Fields) domain.Summary {
	s := domain.Summary{
		EffectiveRate:       domain.UndefinedRatio,
		RevenueShareOfRBT12: domain.UndefinedRatio,
		AverageMonthlyRBT12: domain.UndefinedRatio,
	}
	if f.ReceitaPA.Present {
		s.EffectiveRate = ratio(rec.Taxes.Total, rec.Revenues.ReceitaPA)
	}
	if f.ReceitaPA.Present && f.RBT12.Present {
		s.RevenueShareOfRBT12 = ratio(rec.Revenues.ReceitaPA, rec.Revenues.RBT12)
	}
	if f.RBT12.Present {
		s.AverageMonthlyRBT12 = ratio(rec.Revenues.RBT12, twelve)
	}
	return s
}

// ratio divides a by b, or returns the undefined ratio when b is zero.
func ratio(a, b decimal.Decimal) domain.Ratio {
	if b.IsZero() {
		return domain.UndefinedRatio
	}
	return domain.Ratio{Value: a.DivRound(b, ratioPlaces), Defined: true}
}

func valueOrZero(f Field[decimal.Decimal]) decimal.Decimal {
	if !f.Present {
		return decimal.Zero
	}
	return f.Value
}
