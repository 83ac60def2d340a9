package das

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestNormalizeWhitespace(t *testing.T) {
	lines := Normalize("a  \t b\r\nc  d\r\n\r\n   \n e ")
	assert.Equal(t, []string{"a b", "c d", "e"}, texts(lines))
	for i, l := range lines {
		assert.Equal(t, i, l.Index)
		assert.Equal(t, 1, l.Page)
	}
}

func TestNormalizeJoinsHyphenatedLines(t *testing.T) {
	lines := Normalize("Período de Apura-\nção: 01/2024\nValor 10-\n20")
	assert.Equal(t, []string{"Período de Apuração: 01/2024", "Valor 10-", "20"}, texts(lines))
}

func TestNormalizeFoldsLabels(t *testing.T) {
	lines := Normalize("PERÍODO DE APURAÇÃO (PA)")
	require.Len(t, lines, 1)
	assert.Equal(t, "periodo de apuracao (pa)", lines[0].Folded)
	assert.Equal(t, len([]rune(lines[0].Text)), len([]rune(lines[0].Folded)))
}

func TestNormalizeFormFeedPages(t *testing.T) {
	raw := "Documento de Arrecadação\nCNPJ: 12.345.678/0001-99\fDocumento de Arrecadação\nIRPJ 10,00"
	lines := Normalize(raw)

	assert.Equal(t, []string{"Documento de Arrecadação", "CNPJ: 12.345.678/0001-99", "IRPJ 10,00"}, texts(lines))
	assert.Equal(t, 1, lines[1].Page)
	assert.Equal(t, 2, lines[2].Page)
}

func TestNormalizePageMarkers(t *testing.T) {
	raw := "Texto A\nPágina 1 de 2\nTexto B\nPágina 2 de 2"
	lines := Normalize(raw)

	assert.Equal(t, []string{"Texto A", "Página 1 de 2", "Texto B"}, texts(lines))
	assert.Equal(t, 2, lines[2].Page)
}

func TestNormalizeKeepsRepeatedAmounts(t *testing.T) {
	// Same label on two pages with different amounts is not boilerplate.
	raw := "IRPJ 10,00\fIRPJ 20,00"
	lines := Normalize(raw)
	assert.Equal(t, []string{"IRPJ 10,00", "IRPJ 20,00"}, texts(lines))
}

func TestNormalizeNumerals(t *testing.T) {
	lines := Normalize("Revenda de mercadorias 60,00% R$ 6.000,00 x,yz 12,3")
	require.Len(t, lines, 1)

	l := lines[0]
	require.Len(t, l.Percents(), 1)
	require.Len(t, l.Currencies(), 1)
	assert.Equal(t, "6000.00", l.Currencies()[0].Canonical())
	assert.Equal(t, "Revenda de mercadorias ", l.textBefore(l.Numerals[0].Start))
}

func TestNormalizeNeverFails(t *testing.T) {
	inputs := []string{"", "\f\f\f", "-\n-", "%%% ,,, 1.,2", "\x00\xff\xfe"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Normalize(in) })
	}
	assert.Empty(t, Normalize("   \n\t\r\n"))
}

func TestNormalizeKeepsLinesThatDifferOnlyInDigits(t *testing.T) {
	raw := "Período de Apuração: 01/2024\nCSLL: 5,00\fPeríodo de Apuração: 02/2024\nCSLL: 5,00"
	lines := Normalize(raw)
	assert.Equal(t, []string{"Período de Apuração: 01/2024", "CSLL: 5,00", "Período de Apuração: 02/2024"}, texts(lines))
}
