// internal/storage/store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"das-service/internal/domain"
)

// ErrNotFound is returned for unknown or expired record ids.
var ErrNotFound = errors.New("registro não encontrado ou expirado")

//go:generate mockgen -destination=../mocks/mock_store.go -package=mocks das-service/internal/storage Store

// Store keeps fiscal records by id until they expire.
type Store interface {
	Save(ctx context.Context, rec domain.StoredRecord) error
	Get(ctx context.Context, id string) (*domain.StoredRecord, error)
	// Replace swaps the stored record wholesale, keeping id and expiry.
	Replace(ctx context.Context, id string, rec *domain.FiscalRecord) (*domain.StoredRecord, error)
	// List returns live records, most recent first.
	List(ctx context.Context, limit int) ([]domain.StoredRecord, error)
}

// NewRecord wraps a record for storage with an expiry counted from now.
func NewRecord(id string, rec *domain.FiscalRecord, now time.Time, ttl time.Duration) domain.StoredRecord {
	return domain.StoredRecord{ID: id, Record: rec, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func expired(rec domain.StoredRecord, now time.Time) bool {
	return !now.Before(rec.ExpiresAt)
}

// encodeRecord and decodeRecord keep the record as JSON so decimals survive
// backends that only know float numbers.
func encodeRecord(rec *domain.FiscalRecord) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("falha ao serializar registro: %w", err)
	}
	return string(raw), nil
}

func decodeRecord(raw string) (*domain.FiscalRecord, error) {
	var rec domain.FiscalRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("falha ao ler registro armazenado: %w", err)
	}
	return &rec, nil
}
