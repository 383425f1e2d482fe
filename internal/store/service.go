package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ricesearch/kgeval/internal/compat"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// Service loads and saves compatibility tables on top of a Storage.
type Service struct {
	storage Storage
	log     *logger.Logger
}

// NewService creates a new table service.
func NewService(storage Storage, log *logger.Logger) *Service {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{storage: storage, log: log}
}

// Storage returns the underlying backend.
func (s *Service) Storage() Storage {
	return s.storage
}

// Load returns the table stored under key.
func (s *Service) Load(ctx context.Context, key string) (*compat.Table, error) {
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	t, err := compat.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.StoreError("decoding table "+key, err)
	}
	return t, nil
}

// Save stores t under key.
func (s *Service) Save(ctx context.Context, key string, t *compat.Table) error {
	var buf bytes.Buffer
	if err := compat.Encode(&buf, t); err != nil {
		return errors.StoreError("encoding table "+key, err)
	}
	return s.storage.Put(ctx, key, buf.Bytes())
}

// GetOrCompute returns the table stored under key, or computes and saves it.
// cached reports whether the table came from storage. A corrupt entry is
// logged and recomputed; a failed save is logged but does not fail the call.
func (s *Service) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*compat.Table, error)) (t *compat.Table, cached bool, err error) {
	t, err = s.Load(ctx, key)
	switch {
	case err == nil:
		s.log.Info("Loaded compatibility table", "key", key)
		return t, true, nil
	case errors.IsNotFound(err):
		s.log.Debug("Compatibility table not stored", "key", key)
	default:
		s.log.WithError(err).Warn("Ignoring stored compatibility table", "key", key)
	}

	start := time.Now()
	t, err = compute(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("computing table %s: %w", key, err)
	}
	s.log.Info("Computed compatibility table", "key", key, "links", t.Links(), "duration", time.Since(start))

	if err := s.Save(ctx, key, t); err != nil {
		s.log.WithError(err).Warn("Failed to save compatibility table", "key", key)
	}
	return t, false, nil
}

// Close closes the underlying storage.
func (s *Service) Close() error {
	return s.storage.Close()
}
