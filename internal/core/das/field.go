package das

import (
	"fmt"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
)

// AbsenceReason explains why a rule produced no value.
type AbsenceReason string

const (
	ReasonNotFound    AbsenceReason = "not-found"
	ReasonUnparseable AbsenceReason = "unparseable"
	ReasonAmbiguous   AbsenceReason = "ambiguous"
)

// Field is the tagged result of one extraction rule: a value when Present,
// otherwise the Reason it is missing. Issues are reported either way.
type Field[T any] struct {
	Value     T
	Present   bool
	Confident bool
	Reason    AbsenceReason
	Issues    []domain.Issue
}

func found[T any](v T, confident bool, issues ...domain.Issue) Field[T] {
	return Field[T]{Value: v, Present: true, Confident: confident, Issues: issues}
}

func missing[T any](reason AbsenceReason, issues ...domain.Issue) Field[T] {
	return Field[T]{Reason: reason, Issues: issues}
}

// TaxFields is the outcome of the tax rule: one field per category plus the
// total as printed on the document.
type TaxFields struct {
	Categories map[domain.TaxCategory]Field[decimal.Decimal]
	Total      Field[decimal.Decimal]
	Issues     []domain.Issue
}

// Fields collects the partial results of every rule, ready for assembly.
type Fields struct {
	CNPJ        Field[domain.CNPJ]
	CompanyName Field[string]
	Regime      Field[string]
	Period      Field[domain.Period]
	ReceitaPA   Field[decimal.Decimal]
	RBT12       Field[decimal.Decimal]
	Taxes       TaxFields
	Activities  Field[[]domain.Activity]
}

// Issues aggregates the issues of every rule in rule order.
func (f Fields) Issues() []domain.Issue {
	var out []domain.Issue
	out = append(out, f.CNPJ.Issues...)
	out = append(out, f.CompanyName.Issues...)
	out = append(out, f.Regime.Issues...)
	out = append(out, f.Period.Issues...)
	out = append(out, f.ReceitaPA.Issues...)
	out = append(out, f.RBT12.Issues...)
	for _, cat := range domain.TaxCategories {
		out = append(out, f.Taxes.Categories[cat].Issues...)
	}
	out = append(out, f.Taxes.Total.Issues...)
	out = append(out, f.Taxes.Issues...)
	out = append(out, f.Activities.Issues...)
	return out
}

// recognized reports whether at least one rule found something.
func (f Fields) recognized() bool {
	if f.CNPJ.Present || f.Period.Present || f.ReceitaPA.Present || f.RBT12.Present ||
		f.Taxes.Total.Present || f.Activities.Present {
		return true
	}
	for _, tf := range f.Taxes.Categories {
		if tf.Present {
			return true
		}
	}
	return false
}

// guard runs a rule and turns a panic into a rule-failure issue, so a broken
// rule never stops the others.
func guard[T any](name string, rule func([]Line) T, lines []Line, onPanic func(domain.Issue) T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			out = onPanic(domain.Issue{Field: name, Kind: domain.IssueRuleFailure, Detail: fmt.Sprint(r)})
		}
	}()
	return rule(lines)
}

func guardField[T any](name string, rule func([]Line) Field[T], lines []Line) Field[T] {
	return guard(name, rule, lines, func(issue domain.Issue) Field[T] {
		return missing[T](ReasonUnparseable, issue)
	})
}
