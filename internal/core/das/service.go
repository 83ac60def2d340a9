// package das/service.go
package das

import (
	"context"
	"errors"
	"time"

	"das-service/internal/domain"

	"go.uber.org/zap"
)

// Service defines the interface for reading DAS/PGDAS-D documents.
type Service interface {
	Process(ctx context.Context, text string) (*domain.FiscalRecord, error)
}

// Observer receives the outcome of every processed document.
type Observer interface {
	DocumentProcessed(rec *domain.FiscalRecord, elapsed time.Duration)
	DocumentRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) DocumentProcessed(*domain.FiscalRecord, time.Duration) {}
func (nopObserver) DocumentRejected(string)                              {}

// Option configures the service.
type Option func(*service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *service) {
		if o != nil {
			s.observer = o
		}
	}
}

type service struct {
	logger   *zap.Logger
	now      func() time.Time
	observer Observer
}

// NewService creates a new DAS service.
func NewService(logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{logger: logger, now: time.Now, observer: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs normalization, extraction and assembly over the extracted
// text of one document.
func (s *service) Process(ctx context.Context, text string) (*domain.FiscalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := s.now()

	lines := Normalize(text)
	fields, err := Extract(lines)
	if err != nil {
		var unrecognized *UnrecognizedError
		if errors.As(err, &unrecognized) {
			s.observer.DocumentRejected(unrecognized.Reason)
		}
		s.logger.Info("documento rejeitado", zap.Error(err), zap.Int("lines", len(lines)))
		return nil, err
	}

	rec := Assemble(fields, MetaFor(text, started))
	s.observer.DocumentProcessed(rec, s.now().Sub(started))
	s.logger.Debug("documento processado",
		zap.Int("lines", len(lines)),
		zap.Int("issues", len(rec.Metadata.Issues)),
		zap.Bool("reconciliationWarning", rec.Taxes.ReconciliationWarning),
	)
	return rec, nil
}
