package das

import (
	"errors"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrUnrecognizedDocument is returned when the text does not look like a DAS.
var ErrUnrecognizedDocument = errors.New("documento não reconhecido como DAS/PGDAS-D")

// UnrecognizedError tells why a document was rejected as a whole.
type UnrecognizedError struct {
	Reason string
}

func (e *UnrecognizedError) Error() string {
	return ErrUnrecognizedDocument.Error() + ": " + e.Reason
}

// Is lets errors.Is match ErrUnrecognizedDocument.
func (e *UnrecognizedError) Is(target error) bool {
	return target == ErrUnrecognizedDocument
}

const (
	ReasonEmptyText   = "empty-text"
	ReasonNoCurrency  = "no-currency"
	ReasonNoFieldRead = "no-fields"
)

// Extract runs every field rule over the same lines. Rules are independent:
// a failing rule becomes a rule-failure issue and the others still run.
func Extract(lines []Line) (Fields, error) {
	if len(lines) == 0 {
		return Fields{}, &UnrecognizedError{Reason: ReasonEmptyText}
	}
	if !hasCurrency(lines) {
		return Fields{}, &UnrecognizedError{Reason: ReasonNoCurrency}
	}

	f := Fields{
		CNPJ:        guardField("cnpj", extractCNPJ, lines),
		CompanyName: guardField("companyName", extractCompanyName, lines),
		Regime:      guardField("regime", extractRegime, lines),
		Period:      guardField("period", extractPeriod, lines),
		ReceitaPA:   guardField("receitaPA", extractReceitaPA, lines),
		RBT12:       guardField("rbt12", extractRBT12, lines),
		Taxes: guard("taxes", extractTaxes, lines, func(issue domain.Issue) TaxFields {
			return failedTaxes(issue)
		}),
		Activities: guardField("activities", extractActivities, lines),
	}
	if !f.recognized() {
		return f, &UnrecognizedError{Reason: ReasonNoFieldRead}
	}
	return f, nil
}

func hasCurrency(lines []Line) bool {
	for _, l := range lines {
		if len(l.Currencies()) > 0 {
			return true
		}
	}
	return false
}

func failedTaxes(issue domain.Issue) TaxFields {
	out := TaxFields{
		Categories: make(map[domain.TaxCategory]Field[decimal.Decimal], len(domain.TaxCategories)),
		Total:      missing[decimal.Decimal](ReasonUnparseable),
		Issues:     []domain.Issue{issue},
	}
	for _, cat := range domain.TaxCategories {
		out.Categories[cat] = missing[decimal.Decimal](ReasonUnparseable)
	}
	return out
}
