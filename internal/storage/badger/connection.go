package badger

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// CacheDB is the badgerhold store backing the holdings cache.
type CacheDB struct {
	store *badgerhold.Store
}

// OpenCacheDB opens (creating if needed) the cache directory from config.
// With ResetOnStartup the directory is wiped first.
func OpenCacheDB(logger arbor.ILogger, config *common.CacheConfig) (*CacheDB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	if config.ResetOnStartup {
		logger.Debug().Str("path", config.Path).Msg("Resetting holdings cache")
		if err := os.RemoveAll(config.Path); err != nil {
			logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to reset holdings cache")
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings cache at %s: %w", config.Path, err)
	}

	return &CacheDB{store: store}, nil
}

// Store returns the underlying badgerhold store
func (db *CacheDB) Store() *badgerhold.Store {
	return db.store
}

// Close closes the store. It is safe to call more than once.
func (db *CacheDB) Close() error {
	if db.store == nil {
		return nil
	}
	err := db.store.Close()
	db.store = nil
	return err
}
