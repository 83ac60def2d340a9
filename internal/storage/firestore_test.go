package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmulatorStore runs against the Firestore emulator only
// (gcloud emulators firestore start, then export FIRESTORE_EMULATOR_HOST).
func newEmulatorStore(t *testing.T) (*FirestoreStore, *fakeClock) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST não definido")
	}
	client, err := NewFirestoreClient(context.Background(), "das-test", "(default)")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Millisecond)}
	store := NewFirestoreStore(client, "das-records-"+uuid.NewString(), nil)
	store.now = clock.Now
	return store, clock
}

func TestFirestoreStoreRoundTrip(t *testing.T) {
	store, clock := newEmulatorStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewRecord("abc", sampleRecord("1234.56"), clock.Now(), time.Hour)))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.Record.Revenues.ReceitaPA.Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, got.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	clock.Advance(2 * time.Hour)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirestoreStoreReplaceAndList(t *testing.T) {
	store, clock := newEmulatorStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewRecord("old", sampleRecord("1"), clock.Now(), time.Hour)))
	require.NoError(t, store.Save(ctx, NewRecord("new", sampleRecord("2"), clock.Now(), 2*time.Hour)))

	updated, err := store.Replace(ctx, "old", sampleRecord("99"))
	require.NoError(t, err)
	assert.True(t, updated.Record.Revenues.ReceitaPA.Equal(decimal.NewFromInt(99)))
	assert.True(t, updated.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	_, err = store.Replace(ctx, "missing", sampleRecord("1"))
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
}
