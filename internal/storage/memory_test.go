package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"das-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleRecord(receita string) *domain.FiscalRecord {
	return &domain.FiscalRecord{
		Revenues: domain.Revenues{ReceitaPA: decimal.RequireFromString(receita), ReceitaPAFound: true},
		Taxes: domain.Taxes{
			Categories: map[domain.TaxCategory]domain.TaxAmount{
				domain.TaxIRPJ: {Amount: decimal.RequireFromString("10.50"), Found: true},
			},
		},
		Summary:  domain.Summary{EffectiveRate: domain.UndefinedRatio},
		Metadata: domain.Metadata{Issues: []domain.Issue{}},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	rec := NewRecord("abc", sampleRecord("1000.00"), clock.Now(), 24*time.Hour)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.True(t, got.Record.Revenues.ReceitaPA.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.Record.Taxes.Categories[domain.TaxIRPJ].Amount.Equal(decimal.RequireFromString("10.5")))
	assert.False(t, got.Record.Summary.EffectiveRate.Defined)

	// The caller's copy is not shared with the store.
	got.Record.Revenues.ReceitaPA = decimal.Zero
	again, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, again.Record.Revenues.ReceitaPA.IsZero())
}

func TestMemoryStoreExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewRecord("abc", sampleRecord("1"), clock.Now(), time.Hour)))

	clock.Advance(59 * time.Minute)
	_, err := store.Get(ctx, "abc")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Replace(ctx, "abc", sampleRecord("2"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Purge())
	assert.Zero(t, store.Purge())
}

func TestMemoryStoreReplaceKeepsExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	original := NewRecord("abc", sampleRecord("1"), clock.Now(), time.Hour)
	require.NoError(t, store.Save(ctx, original))

	clock.Advance(10 * time.Minute)
	updated, err := store.Replace(ctx, "abc", sampleRecord("2"))
	require.NoError(t, err)
	assert.Equal(t, original.ExpiresAt, updated.ExpiresAt)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.Record.Revenues.ReceitaPA.Equal(decimal.NewFromInt(2)))

	_, err = store.Replace(ctx, "missing", sampleRecord("2"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreList(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ttl := time.Hour
		if i == 0 {
			ttl = time.Minute
		}
		require.NoError(t, store.Save(ctx, NewRecord(fmt.Sprintf("r%d", i), sampleRecord("1"), clock.Now(), ttl)))
		clock.Advance(time.Minute)
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID)
	assert.Equal(t, "r1", all[1].ID)

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStoreConcurrentUse(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			_ = store.Save(ctx, NewRecord(id, sampleRecord("1"), time.Now(), time.Hour))
			_, _ = store.Get(ctx, id)
			_, _ = store.List(ctx, 5)
		}(i)
	}
	wg.Wait()

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
