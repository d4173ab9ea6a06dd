package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoPnlCalc/internal/adapters/logger"
)

// Source selects where transactions are loaded from.
type Source string

const (
	SourceCSV     Source = "csv"     // Kraken trade export file
	SourceAPI     Source = "api"     // Kraken private API with the page cache
	SourceDB      Source = "db"      // previously persisted transactions
	SourceBinance Source = "binance" // Binance account trade history
)

// Config holds all application configuration.
type Config struct {
	// Kraken API
	KrakenAPIKey    string
	KrakenAPISecret string

	// Binance API
	BinanceAPIKey    string
	BinanceAPISecret string
	BinancePairs     []string // symbols to fetch when SOURCE=binance

	// Input selection
	Source     Source
	ImportPath string // CSV export path when SOURCE=csv
	LedgerType string // trading or staking when SOURCE=api

	// Reconciliation
	MainCurrency          string
	RatesPath             string // YAML file of fiat conversion rates
	IgnoreNegativeBalance bool

	// Output
	OutputDir string
	RenderPDF bool

	// Storage
	DBPath   string
	CacheDir string
	Persist  bool // also save loaded transactions to the database

	// Connection Settings
	RequestTimeout time.Duration
	SyncThrottle   time.Duration

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Input selection
	cfg.Source = Source(strings.ToLower(getEnv("SOURCE", string(SourceCSV))))
	switch cfg.Source {
	case SourceCSV, SourceAPI, SourceDB, SourceBinance:
	default:
		errs = append(errs, fmt.Sprintf("SOURCE must be one of csv, api, db, binance (got %q)", cfg.Source))
	}

	cfg.ImportPath = getEnv("IMPORT_PATH", "./data/trades.csv")
	if cfg.Source == SourceCSV && cfg.ImportPath == "" {
		errs = append(errs, "IMPORT_PATH must be set when SOURCE=csv")
	}

	cfg.LedgerType = strings.ToLower(getEnv("LEDGER_TYPE", "trading"))
	if cfg.LedgerType != "trading" && cfg.LedgerType != "staking" {
		errs = append(errs, fmt.Sprintf("LEDGER_TYPE must be trading or staking (got %q)", cfg.LedgerType))
	}

	// Kraken API, required only when fetching from it
	cfg.KrakenAPIKey = getEnv("KRAKEN_API_KEY", "")
	cfg.KrakenAPISecret = getEnv("KRAKEN_API_SECRET", "")
	if cfg.Source == SourceAPI {
		if cfg.KrakenAPIKey == "" {
			errs = append(errs, "KRAKEN_API_KEY must be set when SOURCE=api")
		}
		if cfg.KrakenAPISecret == "" {
			errs = append(errs, "KRAKEN_API_SECRET must be set when SOURCE=api")
		}
	}

	// Binance API, same rule
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceAPISecret = getEnv("BINANCE_API_SECRET", "")
	cfg.BinancePairs = splitList(getEnv("BINANCE_PAIRS", ""))
	if cfg.Source == SourceBinance {
		if cfg.BinanceAPIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when SOURCE=binance")
		}
		if cfg.BinanceAPISecret == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when SOURCE=binance")
		}
		if len(cfg.BinancePairs) == 0 {
			errs = append(errs, "BINANCE_PAIRS must list at least one symbol when SOURCE=binance")
		}
	}

	// Reconciliation
	cfg.MainCurrency = strings.ToUpper(getEnv("MAIN_CURRENCY", "EUR"))
	if cfg.MainCurrency == "" {
		errs = append(errs, "MAIN_CURRENCY must be set")
	}
	cfg.RatesPath = getEnv("RATES_PATH", "./data/rates.yml")
	cfg.IgnoreNegativeBalance = getEnvAsBool("IGNORE_NEGATIVE_BALANCE", false)

	// Output
	cfg.OutputDir = getEnv("OUTPUT_DIR", "./reports")
	if cfg.OutputDir == "" {
		errs = append(errs, "OUTPUT_DIR must be set")
	}
	cfg.RenderPDF = getEnvAsBool("RENDER_PDF", false)

	// Storage
	cfg.DBPath = getEnv("DB_PATH", "./data/pnl.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.CacheDir = getEnv("CACHE_DIR", "./data")
	if cfg.CacheDir == "" {
		errs = append(errs, "CACHE_DIR must be set")
	}
	cfg.Persist = getEnvAsBool("PERSIST", false)

	// Connection Settings
	requestTimeoutSeconds := getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)
	if requestTimeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(requestTimeoutSeconds) * time.Second

	syncThrottleMillis := getEnvAsInt("SYNC_THROTTLE_MS", 1000)
	if syncThrottleMillis <= 0 {
		errs = append(errs, "SYNC_THROTTLE_MS must be positive")
	}
	cfg.SyncThrottle = time.Duration(syncThrottleMillis) * time.Millisecond

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, strings.ToUpper(item))
		}
	}
	return items
}
