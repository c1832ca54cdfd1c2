package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/storage/badger"
)

// NewHoldingsCache opens the holdings cache described by config. It returns
// a nil cache and a no-op close when caching is disabled.
func NewHoldingsCache(logger arbor.ILogger, config *common.CacheConfig) (interfaces.HoldingsCache, func() error, error) {
	if !config.Enabled {
		return nil, func() error { return nil }, nil
	}

	db, err := badger.OpenCacheDB(logger, config)
	if err != nil {
		return nil, nil, err
	}

	logger.Info().Str("path", config.Path).Msg("Holdings cache opened")
	return badger.NewHoldingsStorage(db, logger), db.Close, nil
}
