package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"das-service/internal/domain"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordDoc is the Firestore shape of a stored record. expireAt is the field
// the collection's TTL policy deletes on; reads filter on it as well because
// TTL deletion runs with a delay.
type recordDoc struct {
	Record    string    `firestore:"record"`
	CreatedAt time.Time `firestore:"createdAt"`
	ExpireAt  time.Time `firestore:"expireAt"`
}

var _ Store = (*FirestoreStore)(nil)

// FirestoreStore keeps records in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
	now        func() time.Time
}

// NewFirestoreClient connects to the given project and database.
func NewFirestoreClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("erro ao inicializar cliente Firestore: %w", err)
	}
	return client, nil
}

// NewFirestoreStore wraps an open client.
func NewFirestoreStore(client *firestore.Client, collection string, logger *zap.Logger) *FirestoreStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, collection: collection, logger: logger, now: time.Now}
}

func (s *FirestoreStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) Save(ctx context.Context, rec domain.StoredRecord) error {
	raw, err := encodeRecord(rec.Record)
	if err != nil {
		return err
	}
	data := recordDoc{Record: raw, CreatedAt: rec.CreatedAt, ExpireAt: rec.ExpiresAt}
	if _, err := s.doc(rec.ID).Set(ctx, data); err != nil {
		s.logger.Error("falha ao gravar registro", zap.String("id", rec.ID), zap.Error(err))
		return fmt.Errorf("erro ao gravar registro: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*domain.StoredRecord, error) {
	snap, err := s.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("erro ao consultar registro", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("erro ao consultar o banco de dados: %w", err)
	}
	return s.fromSnapshot(snap)
}

func (s *FirestoreStore) Replace(ctx context.Context, id string, rec *domain.FiscalRecord) (*domain.StoredRecord, error) {
	raw, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	var updated *domain.StoredRecord
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.doc(id)
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := s.fromSnapshot(snap)
		if err != nil {
			return err
		}
		current.Record = rec
		updated = current
		return tx.Update(ref, []firestore.Update{{Path: "record", Value: raw}})
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("falha ao substituir registro", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("erro ao substituir registro: %w", err)
	}
	return updated, nil
}

func (s *FirestoreStore) List(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	query := s.client.Collection(s.collection).
		Where("expireAt", ">", s.now()).
		OrderBy("expireAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []domain.StoredRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("erro ao listar registros: %w", err)
		}
		rec, err := s.fromSnapshot(snap)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("registro ilegível ignorado", zap.String("id", snap.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *FirestoreStore) fromSnapshot(snap *firestore.DocumentSnapshot) (*domain.StoredRecord, error) {
	var data recordDoc
	if err := snap.DataTo(&data); err != nil {
		return nil, fmt.Errorf("erro ao ler dados do registro: %w", err)
	}
	stored := domain.StoredRecord{ID: snap.Ref.ID, CreatedAt: data.CreatedAt, ExpiresAt: data.ExpireAt}
	if expired(stored, s.now()) {
		return nil, ErrNotFound
	}
	rec, err := decodeRecord(data.Record)
	if err != nil {
		return nil, err
	}
	stored.Record = rec
	return &stored, nil
}
