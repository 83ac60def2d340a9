// internal/core/report/service.go
package report

import (
	"fmt"
	"time"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetSummary    = "Resumo"
	SheetTaxes      = "Tributos"
	SheetActivities = "Atividades"
	SheetIssues     = "Pendências"
)

const brlFormat = `"R$" #,##0.00`

// Service builds downloadable reports of stored records.
type Service interface {
	Workbook(rec *domain.StoredRecord) ([]byte, error)
}

type service struct{}

// NewService creates a new report service.
func NewService() Service {
	return &service{}
}

type styles struct {
	header  int
	money   int
	percent int
}

// Workbook renders a record as an XLSX file with one sheet per section.
func (s *service) Workbook(stored *domain.StoredRecord) ([]byte, error) {
	if stored == nil || stored.Record == nil {
		return nil, fmt.Errorf("registro vazio")
	}
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetTaxes, SheetActivities, SheetIssues} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("erro ao criar planilha %s: %w", name, err)
		}
	}

	steps := []func(*excelize.File, *domain.StoredRecord, styles) error{
		writeSummary, writeTaxes, writeActivities, writeIssues,
	}
	for _, step := range steps {
		if err := step(f, stored, st); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar planilha: %w", err)
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	format := brlFormat
	if st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	}); err != nil {
		return st, err
	}
	if st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &format}); err != nil {
		return st, err
	}
	if st.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10}); err != nil {
		return st, err
	}
	return st, nil
}

func writeHeader(f *excelize.File, sheet string, st styles, titles ...interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &titles); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, st.header)
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleCell(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func ratioValue(r domain.Ratio) interface{} {
	if !r.Defined {
		return "-"
	}
	return r.Value.InexactFloat64()
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

func writeSummary(f *excelize.File, stored *domain.StoredRecord, st styles) error {
	rec := stored.Record
	id := rec.Identification

	cnpj, period := "-", "-"
	if id.CNPJ != nil {
		cnpj = formatCNPJ(id.CNPJ.Digits)
	}
	if id.Period != nil {
		period = id.Period.Start.Format("02/01/2006") + " a " + id.Period.End.Format("02/01/2006")
	}

	type row struct {
		label string
		value interface{}
		style int
		text  string
	}
	avg := "-"
	if rec.Summary.AverageMonthlyRBT12.Defined {
		avg = FormatBRL(rec.Summary.AverageMonthlyRBT12.Value)
	}
	rows := []row{
		{"CNPJ", cnpj, 0, ""},
		{"Empresa", id.CompanyName, 0, ""},
		{"Regime", id.Regime, 0, ""},
		{"Período de apuração", period, 0, ""},
		{"Receita bruta do PA", money(rec.Revenues.ReceitaPA), st.money, FormatBRL(rec.Revenues.ReceitaPA)},
		{"RBT12", money(rec.Revenues.RBT12), st.money, FormatBRL(rec.Revenues.RBT12)},
		{"Total de tributos", money(rec.Taxes.Total), st.money, FormatBRL(rec.Taxes.Total)},
		{"Total declarado no documento", yesNo(rec.Taxes.TotalDeclared), 0, ""},
		{"Soma dos tributos", money(rec.Taxes.ItemizedSum), st.money, FormatBRL(rec.Taxes.ItemizedSum)},
		{"Divergência na conciliação", yesNo(rec.Taxes.ReconciliationWarning), 0, ""},
		{"Diferença", money(rec.Taxes.ReconciliationDelta), st.money, FormatBRL(rec.Taxes.ReconciliationDelta)},
		{"Alíquota efetiva", ratioValue(rec.Summary.EffectiveRate), st.percent, FormatPercent(rec.Summary.EffectiveRate)},
		{"Participação no RBT12", ratioValue(rec.Summary.RevenueShareOfRBT12), st.percent, FormatPercent(rec.Summary.RevenueShareOfRBT12)},
		{"Média mensal do RBT12", ratioValue(rec.Summary.AverageMonthlyRBT12), st.money, avg},
		{"Extraído em", rec.Metadata.ExtractedAt.Format(time.RFC3339), 0, ""},
		{"Disponível até", stored.ExpiresAt.Format(time.RFC3339), 0, ""},
	}

	if err := writeHeader(f, SheetSummary, st, "Campo", "Valor", "Formatado"); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, SheetSummary, i+2, r.label, r.value, r.text); err != nil {
			return err
		}
		if r.style != 0 {
			if err := styleCell(f, SheetSummary, 2, i+2, r.style); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(SheetSummary, "A", "C", 32)
}

func writeTaxes(f *excelize.File, stored *domain.StoredRecord, st styles) error {
	taxes := stored.Record.Taxes
	if err := writeHeader(f, SheetTaxes, st, "Tributo", "Valor", "Encontrado", "Participação"); err != nil {
		return err
	}
	row := 2
	for _, cat := range domain.TaxCategories {
		amount := taxes.Categories[cat]
		share := domain.UndefinedRatio
		if !taxes.Total.IsZero() {
			share = domain.Ratio{Value: amount.Amount.DivRound(taxes.Total, 6), Defined: true}
		}
		if err := setRow(f, SheetTaxes, row, string(cat), money(amount.Amount), yesNo(amount.Found), ratioValue(share)); err != nil {
			return err
		}
		if err := styleCell(f, SheetTaxes, 2, row, st.money); err != nil {
			return err
		}
		if err := styleCell(f, SheetTaxes, 4, row, st.percent); err != nil {
			return err
		}
		row++
	}
	if err := setRow(f, SheetTaxes, row, "Total", money(taxes.Total)); err != nil {
		return err
	}
	if err := styleCell(f, SheetTaxes, 2, row, st.money); err != nil {
		return err
	}
	return f.SetColWidth(SheetTaxes, "A", "D", 18)
}

func writeActivities(f *excelize.File, stored *domain.StoredRecord, st styles) error {
	if err := writeHeader(f, SheetActivities, st, "Atividade", "Participação", "Receita", "Tributos"); err != nil {
		return err
	}
	for i, a := range stored.Record.Activities {
		var revenue interface{} = "-"
		if a.Revenue != nil {
			revenue = money(*a.Revenue)
		}
		row := i + 2
		// Share is printed on the document as a percentage, not a ratio.
		if err := setRow(f, SheetActivities, row, a.Label, a.Share.Div(hundred).InexactFloat64(), revenue, money(a.TaxSubtotal)); err != nil {
			return err
		}
		for col, style := range map[int]int{2: st.percent, 3: st.money, 4: st.money} {
			if err := styleCell(f, SheetActivities, col, row, style); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(SheetActivities, "A", "A", 48)
}

func writeIssues(f *excelize.File, stored *domain.StoredRecord, st styles) error {
	if err := writeHeader(f, SheetIssues, st, "Campo", "Tipo", "Detalhe"); err != nil {
		return err
	}
	for i, issue := range stored.Record.Metadata.Issues {
		if err := setRow(f, SheetIssues, i+2, issue.Field, string(issue.Kind), issue.Detail); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetIssues, "C", "C", 60)
}

// formatCNPJ prints 14 digits as NN.NNN.NNN/NNNN-NN and anything else as is.
func formatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}
