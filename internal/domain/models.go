// package domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxCategory identifies one of the fixed tax lines of a DAS document.
type TaxCategory string

// Constants for the tax categories collected by the Simples Nacional.
const (
	TaxIRPJ     TaxCategory = "IRPJ"
	TaxCSLL     TaxCategory = "CSLL"
	TaxCOFINS   TaxCategory = "COFINS"
	TaxPISPasep TaxCategory = "PIS/Pasep"
	TaxINSSCPP  TaxCategory = "INSS/CPP"
	TaxICMS     TaxCategory = "ICMS"
	TaxIPI      TaxCategory = "IPI"
	TaxISS      TaxCategory = "ISS"
)

// TaxCategories lists every category in document order.
var TaxCategories = []TaxCategory{
	TaxIRPJ, TaxCSLL, TaxCOFINS, TaxPISPasep, TaxINSSCPP, TaxICMS, TaxIPI, TaxISS,
}

// IssueKind classifies a field-level extraction problem.
type IssueKind string

// Constants for the issue kinds reported in FiscalRecord metadata.
const (
	IssueNotFound               IssueKind = "not-found"
	IssueUnparseable            IssueKind = "unparseable"
	IssueAmbiguousPeriod        IssueKind = "ambiguous-period"
	IssueAmbiguousMatch         IssueKind = "ambiguous-match"
	IssueInvalidCNPJ            IssueKind = "invalid-cnpj"
	IssueInvalidPeriod          IssueKind = "invalid-period"
	IssueReconciliationMismatch IssueKind = "reconciliation-mismatch"
	IssueRuleFailure            IssueKind = "rule-failure"
)

// Issue is a non-fatal data-quality problem found while reading one field.
type Issue struct {
	Field  string    `json:"field"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// FiscalRecord is the structured result of reading one DAS/PGDAS-D document.
type FiscalRecord struct {
	Identification Identification `json:"identification"`
	Revenues       Revenues       `json:"revenues"`
	Taxes          Taxes          `json:"taxes"`
	Activities     []Activity     `json:"activities,omitempty"`
	Summary        Summary        `json:"summary"`
	Metadata       Metadata       `json:"metadata"`
}

// Identification holds who the document belongs to and which period it covers.
type Identification struct {
	CNPJ        *CNPJ   `json:"cnpj,omitempty"`
	CompanyName string  `json:"companyName,omitempty"`
	Regime      string  `json:"regime,omitempty"`
	Period      *Period `json:"period,omitempty"`
}

// CNPJ keeps the digits found near the CNPJ label. Valid reports a 14 digit length only.
type CNPJ struct {
	Digits string `json:"digits"`
	Valid  bool   `json:"valid"`
}

// Period is the assessment period (período de apuração), both ends inclusive.
type Period struct {
	Start time.Time `json:"apuracaoStart"`
	End   time.Time `json:"apuracaoEnd"`
}

// Revenues holds the revenue figures of the period.
type Revenues struct {
	ReceitaPA      decimal.Decimal `json:"receitaPA"`
	ReceitaPAFound bool            `json:"receitaPAFound"`
	RBT12          decimal.Decimal `json:"rbt12"`
	RBT12Found     bool            `json:"rbt12Found"`
}

// TaxAmount is the amount owed for one category. Found is false when the label was absent.
type TaxAmount struct {
	Amount decimal.Decimal `json:"amount"`
	Found  bool            `json:"found"`
}

// Taxes is the per-category breakdown plus its reconciled total.
type Taxes struct {
	Categories            map[TaxCategory]TaxAmount `json:"categories"`
	Total                 decimal.Decimal           `json:"total"`
	TotalDeclared         bool                      `json:"totalDeclared"`
	ItemizedSum           decimal.Decimal           `json:"itemizedSum"`
	ReconciliationWarning bool                      `json:"reconciliationWarning"`
	ReconciliationDelta   decimal.Decimal           `json:"reconciliationDelta"`
}

// Activity is one row of the per-activity breakdown section.
type Activity struct {
	Label       string           `json:"label"`
	Share       decimal.Decimal  `json:"share"`
	Revenue     *decimal.Decimal `json:"revenue,omitempty"`
	TaxSubtotal decimal.Decimal  `json:"taxSubtotal"`
}

// Summary carries the derived figures used by the reporting layer.
type Summary struct {
	EffectiveRate       Ratio `json:"effectiveRate"`
	RevenueShareOfRBT12 Ratio `json:"revenueShareOfRbt12"`
	AverageMonthlyRBT12 Ratio `json:"averageMonthlyRbt12"`
}

// Metadata describes how the record was produced.
type Metadata struct {
	ExtractedAt      time.Time `json:"extractedAt"`
	SourceTextLength int       `json:"sourceTextLength"`
	Issues           []Issue   `json:"issues"`
}

// Ratio is a quotient that may be undefined (zero or missing denominator).
// An undefined ratio marshals to JSON null.
type Ratio struct {
	Value   decimal.Decimal
	Defined bool
}

// UndefinedRatio is the sentinel for a division that has no meaningful result.
var UndefinedRatio = Ratio{}

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return r.Value.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = UndefinedRatio
		return nil
	}
	if err := r.Value.UnmarshalJSON(data); err != nil {
		return err
	}
	r.Defined = true
	return nil
}

// StoredRecord is a FiscalRecord as kept by the persistence layer.
type StoredRecord struct {
	ID        string        `json:"id"`
	Record    *FiscalRecord `json:"record"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}
