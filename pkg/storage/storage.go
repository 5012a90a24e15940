package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/i5heu/linkchain/internal/config"
	"github.com/i5heu/linkchain/internal/keyValStore"
	"github.com/i5heu/linkchain/internal/sqlStore"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Backend       string // config.BackendFile, config.BackendBadger or config.BackendSQLite
	Path          string
	MinimumFreeMB uint64
	Logger        *logrus.Logger
}

// Open returns the backend selected by conf. Every error it or the returned
// service produces wraps ErrStorage.
func Open(conf Config) (StorageService, error) {
	if conf.Logger == nil {
		conf.Logger = logrus.New()
	}

	var backend StorageService
	switch conf.Backend {
	case config.BackendFile, "":
		backend = NewFileStore(conf.Path, conf.Logger)
	case config.BackendBadger:
		kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
			Path:          conf.Path,
			MinimumFreeMB: conf.MinimumFreeMB,
			Logger:        conf.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		backend = kv
	case config.BackendSQLite:
		db, err := sqlStore.Open(conf.Path, conf.Logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		backend = db
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrStorage, conf.Backend)
	}

	conf.Logger.WithFields(logrus.Fields{
		"backend": conf.Backend,
		"path":    conf.Path,
	}).Debug("Storage opened")

	return &Storage{backend: backend, log: conf.Logger}, nil
}

// Storage wraps a backend and tags its errors with ErrStorage.
type Storage struct {
	backend StorageService
	log     *logrus.Logger
}

func wrap(op string, err error) error {
	if errors.Is(err, keyValStore.ErrNoChain) {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func (s *Storage) Exists(ctx context.Context) (bool, error) {
	exists, err := s.backend.Exists(ctx)
	if err != nil {
		return false, wrap("exists", err)
	}
	return exists, nil
}

func (s *Storage) Load(ctx context.Context) ([]types.Record, error) {
	records, err := s.backend.Load(ctx)
	if err != nil {
		return nil, wrap("load", err)
	}
	return records, nil
}

func (s *Storage) Persist(ctx context.Context, entries []types.Entry) error {
	if err := s.backend.Persist(ctx, entries); err != nil {
		return wrap("persist", err)
	}
	return nil
}

func (s *Storage) Close() error {
	if err := s.backend.Close(); err != nil {
		return wrap("close", err)
	}
	return nil
}
