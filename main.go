package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"path/filepath"

	"cryptoPnlCalc/config"
	"cryptoPnlCalc/internal/adapters/binancesource"
	"cryptoPnlCalc/internal/adapters/jsoncache"
	"cryptoPnlCalc/internal/adapters/krakenapi"
	"cryptoPnlCalc/internal/adapters/krakencsv"
	"cryptoPnlCalc/internal/adapters/logger"
	"cryptoPnlCalc/internal/adapters/sqlite"
	"cryptoPnlCalc/internal/app"
	"cryptoPnlCalc/internal/currency"
	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/engine"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Load Currency Rates
	currencies, err := currency.LoadPairs(cfg.RatesPath)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load currency rates")
		log.Fatalf("FATAL: Failed to load currency rates: %v", err)
	}

	// 4. Load Transactions from the configured source
	txs, err := loadTransactions(ctx, cfg, currencies, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load transactions", map[string]interface{}{"source": cfg.Source})
		log.Fatalf("FATAL: Failed to load transactions: %v", err)
	}
	appLogger.Info(ctx, "Transactions loaded", map[string]interface{}{
		"source": cfg.Source,
		"count":  len(txs),
	})

	// 5. Optionally persist the loaded transactions
	if cfg.Persist && cfg.Source != config.SourceDB {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		inserted, err := repo.Save(ctx, txs)
		if closeErr := repo.Close(); closeErr != nil {
			appLogger.Error(ctx, closeErr, "Error closing database repository")
		}
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to persist transactions")
			log.Fatalf("FATAL: Failed to persist transactions: %v", err)
		}
		appLogger.Info(ctx, "Transactions persisted", map[string]interface{}{"inserted": inserted})
	}

	// 6. Initialize the Engine and the Reconcile Service
	calc, err := engine.New(engine.Config{
		Logger:                appLogger,
		IgnoreNegativeBalance: cfg.IgnoreNegativeBalance,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize the calculator")
		log.Fatalf("FATAL: Failed to initialize the calculator: %v", err)
	}
	svc, err := app.NewReconcileService(app.ReconcileConfig{
		Logger:     appLogger,
		Calculator: calc,
		Results:    jsoncache.NewResultsCache(cfg.CacheDir),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize the reconcile service")
		log.Fatalf("FATAL: Failed to initialize the reconcile service: %v", err)
	}

	// 7. Run and print the totals
	result, err := svc.Run(ctx, txs, app.RunOptions{
		AnnotatedPath: filepath.Join(cfg.OutputDir, "annotated.csv"),
		SummaryPath:   filepath.Join(cfg.OutputDir, "summary.csv"),
		RenderPDF:     cfg.RenderPDF,
		PDFTitle:      fmt.Sprintf("Profit and loss in %s", cfg.MainCurrency),
		PDFNotes:      "FIFO cost basis, fees included in cost",
	})
	if err != nil {
		appLogger.Error(ctx, err, "Reconciliation failed")
		log.Fatalf("FATAL: Reconciliation failed: %v", err)
	}

	fmt.Printf("Profit: %.2f %s\n", result.TotalProfit, cfg.MainCurrency)
	fmt.Printf("Loss: %.2f %s\n", result.TotalLoss, cfg.MainCurrency)
	fmt.Printf("Profit and loss: %.2f %s\n", result.TotalProfitAndLoss, cfg.MainCurrency)
}

// loadTransactions builds the configured source and returns its normalized
// transaction stream.
func loadTransactions(ctx context.Context, cfg *config.Config, currencies *currency.Pairs, appLogger *logger.StdLogger) ([]domain.Transaction, error) {
	switch cfg.Source {
	case config.SourceCSV:
		parser, err := krakencsv.New(krakencsv.Config{
			MainCurrency: cfg.MainCurrency,
			Currencies:   currencies,
			Logger:       appLogger,
		})
		if err != nil {
			return nil, err
		}
		return parser.ParseFile(ctx, cfg.ImportPath)

	case config.SourceDB:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := repo.Close(); err != nil {
				appLogger.Error(ctx, err, "Error closing database repository")
			}
		}()
		return repo.FindAll(ctx)

	case config.SourceAPI:
		client, err := krakenapi.New(krakenapi.Config{
			APIKey:    cfg.KrakenAPIKey,
			APISecret: cfg.KrakenAPISecret,
			Logger:    appLogger,
		})
		if err != nil {
			return nil, err
		}
		sync, err := app.NewLedgerSync(app.LedgerSyncConfig{
			API:      client,
			Cache:    jsoncache.NewLedgerCache(cfg.CacheDir),
			Logger:   appLogger,
			Throttle: cfg.SyncThrottle,
		})
		if err != nil {
			return nil, err
		}
		entries, err := sync.Sync(ctx, domain.LedgerType(cfg.LedgerType), false)
		if err != nil {
			return nil, err
		}
		norm, err := app.NewNormalizer(app.NormalizerConfig{
			MainCurrency: cfg.MainCurrency,
			Currencies:   currencies,
			Logger:       appLogger,
		})
		if err != nil {
			return nil, err
		}
		return norm.Normalize(ctx, entries)

	case config.SourceBinance:
		source, err := binancesource.New(binancesource.Config{
			APIKey:       cfg.BinanceAPIKey,
			SecretKey:    cfg.BinanceAPISecret,
			MainCurrency: cfg.MainCurrency,
			Currencies:   currencies,
			Logger:       appLogger,
		})
		if err != nil {
			return nil, err
		}
		return source.FetchTrades(ctx, cfg.BinancePairs)

	default:
		return nil, fmt.Errorf("unsupported source %q", cfg.Source)
	}
}
