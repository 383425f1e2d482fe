package store

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/config"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// Store types.
const (
	TypeNone   = "none"
	TypeFile   = "file"
	TypeBadger = "badger"
	TypeRedis  = "redis"
)

// NewStorage creates the backend selected by cfg.Type. The "none" type
// yields an in-memory storage that lives only for the current process.
func NewStorage(cfg config.StoreConfig, fs afero.Fs) (Storage, error) {
	switch cfg.Type {
	case TypeNone, "":
		return NewMemoryStorage(), nil
	case TypeFile:
		return NewFileStorage(fs, filepath.Join(cfg.Path, "compat")), nil
	case TypeBadger:
		return NewBadgerStorage(BadgerOptions{DataDir: filepath.Join(cfg.Path, "badger")})
	case TypeRedis:
		return NewRedisStorage(cfg.RedisURL, time.Duration(cfg.TTL)*time.Second)
	default:
		return nil, errors.ConfigError("store type", cfg.Type)
	}
}
