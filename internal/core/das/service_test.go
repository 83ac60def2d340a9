package das

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	processed int
	rejected  []string
}

func (o *recordingObserver) DocumentProcessed(*domain.FiscalRecord, time.Duration) { o.processed++ }
func (o *recordingObserver) DocumentRejected(reason string)                       { o.rejected = append(o.rejected, reason) }

func TestProcessIsIdempotent(t *testing.T) {
	svc := NewService(zap.NewNop(), WithClock(func() time.Time { return fixedNow }))

	first, err := svc.Process(context.Background(), sampleDAS)
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), sampleDAS)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestProcessFuzzyHeaderIsIdempotent(t *testing.T) {
	text := "CNPJ: 12.345.678/0001-99\nIRPJ CSLL COFINS ICMP IPIS\n1,00 2,00 3,00 4,00 5,00"
	svc := NewService(zap.NewNop(), WithClock(func() time.Time { return fixedNow }))

	first, err := svc.Process(context.Background(), text)
	require.NoError(t, err)
	want, err := json.Marshal(first)
	require.NoError(t, err)
	assert.True(t, first.Taxes.Categories[domain.TaxICMS].Amount.Equal(decimal.NewFromInt(4)))

	for range 100 {
		rec, err := svc.Process(context.Background(), text)
		require.NoError(t, err)
		got, err := json.Marshal(rec)
		require.NoError(t, err)
		require.Equal(t, string(want), string(got))
	}
}

func TestProcessOnlyExtractedAtDiffers(t *testing.T) {
	calls := 0
	clock := func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	}
	svc := NewService(nil, WithClock(clock))

	first, err := svc.Process(context.Background(), sampleDAS)
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), sampleDAS)
	require.NoError(t, err)
	require.NotEqual(t, first.Metadata.ExtractedAt, second.Metadata.ExtractedAt)

	first.Metadata.ExtractedAt = time.Time{}
	second.Metadata.ExtractedAt = time.Time{}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestProcessRejectsUnrecognizedDocuments(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{name: "empty", text: "", reason: ReasonEmptyText},
		{name: "blank", text: " \n\f\n ", reason: ReasonEmptyText},
		{name: "no currency", text: "CNPJ: 12.345.678/0001-99\nPeríodo de Apuração: 01/2024", reason: ReasonNoCurrency},
		{name: "nothing recognized", text: "Lista de compras\nPão 10,00", reason: ReasonNoFieldRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			svc := NewService(zap.NewNop(), WithObserver(obs))

			rec, err := svc.Process(context.Background(), tt.text)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, ErrUnrecognizedDocument))

			var unrecognized *UnrecognizedError
			require.ErrorAs(t, err, &unrecognized)
			assert.Equal(t, tt.reason, unrecognized.Reason)
			assert.Equal(t, []string{tt.reason}, obs.rejected)
			assert.Zero(t, obs.processed)
		})
	}
}

func TestProcessNotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	svc := NewService(zap.NewNop(), WithObserver(obs))

	_, err := svc.Process(context.Background(), sampleDAS)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.processed)
	assert.Empty(t, obs.rejected)
}

func TestProcessHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(zap.NewNop()).Process(ctx, sampleDAS)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessPartialDocument(t *testing.T) {
	text := "Receita Bruta do PA (RPA): R$ 5.000,00\nIRPJ: 12,00"
	rec, err := NewService(zap.NewNop()).Process(context.Background(), text)
	require.NoError(t, err)

	assert.Nil(t, rec.Identification.CNPJ)
	assert.Nil(t, rec.Identification.Period)
	assert.True(t, rec.Revenues.ReceitaPAFound)
	assert.False(t, rec.Revenues.RBT12Found)
	assert.Contains(t, issueKinds(rec.Metadata.Issues), domain.IssueNotFound)
}

func TestProcessLabelWithoutValue(t *testing.T) {
	rec, err := NewService(zap.NewNop()).Process(context.Background(), "ICMS: isento\nISS: 120,00\nTotal: 120,00")
	require.NoError(t, err)

	assert.False(t, rec.Taxes.Categories[domain.TaxICMS].Found)
	assert.True(t, rec.Taxes.Categories[domain.TaxISS].Amount.Equal(decimal.NewFromInt(120)))
	assert.True(t, rec.Taxes.ItemizedSum.Equal(decimal.NewFromInt(120)))
	assert.False(t, rec.Taxes.ReconciliationWarning)
	assert.True(t, rec.Taxes.ReconciliationDelta.IsZero())
	assert.Contains(t, issueKinds(rec.Metadata.Issues), domain.IssueUnparseable)
}
