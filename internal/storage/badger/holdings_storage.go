package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HoldingsStorage implements interfaces.HoldingsCache for Badger
type HoldingsStorage struct {
	db     *CacheDB
	logger arbor.ILogger
}

// NewHoldingsStorage creates a new HoldingsStorage instance
func NewHoldingsStorage(db *CacheDB, logger arbor.ILogger) interfaces.HoldingsCache {
	return &HoldingsStorage{
		db:     db,
		logger: logger,
	}
}

// GetHoldings returns the cached disclosure for (fundCode, period), or nil.
func (s *HoldingsStorage) GetHoldings(ctx context.Context, fundCode string, period models.Period) (*models.HoldingsCacheEntry, error) {
	var entry models.HoldingsCacheEntry
	err := s.db.Store().Get(models.HoldingsCacheKey(fundCode, period), &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached holdings: %w", err)
	}
	return &entry, nil
}

// SaveHoldings upserts a disclosure. The key is derived from FundCode and Period.
func (s *HoldingsStorage) SaveHoldings(ctx context.Context, entry *models.HoldingsCacheEntry) error {
	if entry == nil || entry.FundCode == "" || entry.Period.IsZero() {
		return fmt.Errorf("holdings cache entry requires fund code and period")
	}
	entry.Key = models.HoldingsCacheKey(entry.FundCode, entry.Period)

	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to save cached holdings: %w", err)
	}

	s.logger.Debug().
		Str("fund", entry.FundCode).
		Str("period", entry.Period.String()).
		Int("holdings", len(entry.Holdings)).
		Msg("Cached holdings")
	return nil
}
