package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// pageSize is how many entries the Kraken history endpoints return per page.
const pageSize = 50

// LedgerSync incrementally downloads Kraken history pages into an injected
// cache: only entries newer than the newest cached one are requested, and the
// merged set is saved back.
type LedgerSync struct {
	api      ports.LedgerAPI
	cache    ports.LedgerCache
	logger   ports.Logger
	throttle time.Duration
}

// LedgerSyncConfig holds configuration for LedgerSync.
type LedgerSyncConfig struct {
	API    ports.LedgerAPI
	Cache  ports.LedgerCache
	Logger ports.Logger
	// Throttle is the pause between page requests, default 1s. Kraken's
	// private endpoints are rate limited per account.
	Throttle time.Duration
}

// NewLedgerSync creates a LedgerSync.
func NewLedgerSync(cfg LedgerSyncConfig) (*LedgerSync, error) {
	if cfg.API == nil || cfg.Cache == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for LedgerSync")
	}
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = time.Second
	}
	return &LedgerSync{api: cfg.API, cache: cfg.Cache, logger: cfg.Logger, throttle: throttle}, nil
}

// Sync fetches the ledger pages not yet cached, merges them into the cache and
// returns all entries sorted by time ascending, with each entry's RefID set to
// its cache key. With reset, the cache is ignored and rebuilt from scratch.
func (s *LedgerSync) Sync(ctx context.Context, ledgerType domain.LedgerType, reset bool) ([]domain.LedgerEntry, error) {
	cached := map[string]domain.LedgerEntry{}
	if reset {
		s.logger.Info(ctx, "Resetting ledger cache", map[string]interface{}{"ledgerType": ledgerType})
	} else {
		var err error
		cached, err = s.cache.Load(ledgerType)
		if err != nil {
			return nil, err
		}
	}

	var latest float64
	for _, entry := range cached {
		if entry.Time > latest {
			latest = entry.Time
		}
	}
	s.logger.Info(ctx, "Loaded cached ledger entries", map[string]interface{}{
		"ledgerType": ledgerType,
		"count":      len(cached),
	})

	fresh := map[string]domain.LedgerEntry{}
	offset := 0
	for {
		page, err := s.api.FetchHistory(ctx, ledgerType, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		overlap := false
		for id, entry := range page {
			if _, ok := cached[id]; ok || entry.Time <= latest {
				overlap = true
				continue
			}
			fresh[id] = entry
		}
		if overlap || len(page) < pageSize {
			break
		}

		offset += pageSize
		select {
		case <-time.After(s.throttle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	merged := make(map[string]domain.LedgerEntry, len(cached)+len(fresh))
	for id, entry := range cached {
		merged[id] = entry
	}
	for id, entry := range fresh {
		merged[id] = entry
	}
	s.logger.Info(ctx, "Ledger sync finished", map[string]interface{}{
		"ledgerType": ledgerType,
		"fetched":    len(fresh),
		"total":      len(merged),
	})
	if err := s.cache.Save(ledgerType, merged); err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(merged))
	for id, entry := range merged {
		if entry.RefID == "" {
			entry.RefID = id
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Time == entries[j].Time {
			return entries[i].RefID < entries[j].RefID
		}
		return entries[i].Time < entries[j].Time
	})
	return entries, nil
}
