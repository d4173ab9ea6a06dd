// Command fetch_ledger syncs the Kraken history cache without running a
// reconciliation, optionally persisting the normalized trades to the database.
package main

import (
	"context"
	"flag"
	"log"

	"cryptoPnlCalc/config"
	"cryptoPnlCalc/internal/adapters/jsoncache"
	"cryptoPnlCalc/internal/adapters/krakenapi"
	"cryptoPnlCalc/internal/adapters/logger"
	"cryptoPnlCalc/internal/adapters/sqlite"
	"cryptoPnlCalc/internal/app"
	"cryptoPnlCalc/internal/currency"
	"cryptoPnlCalc/internal/domain"
)

func main() {
	reset := flag.Bool("reset", false, "ignore the cache and refetch everything")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Kraken Client and Ledger Sync
	client, err := krakenapi.New(krakenapi.Config{
		APIKey:    cfg.KrakenAPIKey,
		APISecret: cfg.KrakenAPISecret,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Kraken client")
		log.Fatalf("FATAL: Failed to initialize Kraken client: %v", err)
	}
	sync, err := app.NewLedgerSync(app.LedgerSyncConfig{
		API:      client,
		Cache:    jsoncache.NewLedgerCache(cfg.CacheDir),
		Logger:   appLogger,
		Throttle: cfg.SyncThrottle,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ledger sync")
		log.Fatalf("FATAL: Failed to initialize ledger sync: %v", err)
	}

	// 4. Sync
	entries, err := sync.Sync(ctx, domain.LedgerType(cfg.LedgerType), *reset)
	if err != nil {
		appLogger.Error(ctx, err, "Ledger sync failed")
		log.Fatalf("FATAL: Ledger sync failed: %v", err)
	}
	appLogger.Info(ctx, "Ledger cache up to date", map[string]interface{}{
		"ledgerType": cfg.LedgerType,
		"entries":    len(entries),
	})

	// 5. Optionally normalize and persist the trades
	if !cfg.Persist {
		return
	}
	currencies, err := currency.LoadPairs(cfg.RatesPath)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load currency rates")
		log.Fatalf("FATAL: Failed to load currency rates: %v", err)
	}
	norm, err := app.NewNormalizer(app.NormalizerConfig{
		MainCurrency: cfg.MainCurrency,
		Currencies:   currencies,
		Logger:       appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize the normalizer")
		log.Fatalf("FATAL: Failed to initialize the normalizer: %v", err)
	}
	txs, err := norm.Normalize(ctx, entries)
	if err != nil {
		appLogger.Error(ctx, err, "Normalization failed")
		log.Fatalf("FATAL: Normalization failed: %v", err)
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	inserted, err := repo.Save(ctx, txs)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to persist transactions")
		log.Fatalf("FATAL: Failed to persist transactions: %v", err)
	}
	appLogger.Info(ctx, "Transactions persisted", map[string]interface{}{
		"normalized": len(txs),
		"inserted":   inserted,
	})
}
