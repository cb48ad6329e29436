package persistence

import (
	"fmt"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

// Store hands out named collections sharing one storage backend
type Store interface {
	Collection(name string) (interfaces.Collection, error)
	Close() error
}

// NewStore creates a store for the configured backend
func NewStore(cfg *config.StorageConfig, logger interfaces.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("storage config cannot be nil")
	}

	switch cfg.Backend {
	case types.StorageBackendMemory:
		return &memoryStore{}, nil
	case types.StorageBackendFile:
		return &fileStore{dir: cfg.Dir, watch: cfg.WatchChanges, logger: logger}, nil
	case types.StorageBackendSQLite:
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &sqliteStoreAdapter{store: s}, nil
	default:
		return nil, errors.NewConfigInvalidError(
			fmt.Sprintf("unsupported storage backend: %s", cfg.Backend))
	}
}

type memoryStore struct{}

func (s *memoryStore) Collection(name string) (interfaces.Collection, error) {
	return NewMemoryCollection(), nil
}

func (s *memoryStore) Close() error { return nil }

type fileStore struct {
	dir    string
	watch  bool
	logger interfaces.Logger
	opened []*FileCollection
}

func (s *fileStore) Collection(name string) (interfaces.Collection, error) {
	fc, err := NewFileCollection(s.dir, name, s.logger)
	if err != nil {
		return nil, err
	}
	if s.watch {
		if err := fc.Watch(func() {
			s.logger.Debug("Collection refreshed from disk", map[string]interface{}{
				"collection": name,
			})
		}); err != nil {
			fc.Close()
			return nil, err
		}
	}
	s.opened = append(s.opened, fc)
	return fc, nil
}

func (s *fileStore) Close() error {
	var firstErr error
	for _, fc := range s.opened {
		if err := fc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type sqliteStoreAdapter struct {
	store *SQLiteStore
}

func (s *sqliteStoreAdapter) Collection(name string) (interfaces.Collection, error) {
	return s.store.Collection(name), nil
}

func (s *sqliteStoreAdapter) Close() error {
	return s.store.Close()
}
