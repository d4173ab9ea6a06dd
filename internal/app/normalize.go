package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"cryptoPnlCalc/internal/currency"
	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// Normalizer converts raw Kraken trade-history entries into normalized
// transactions, applying the same fiat-leg conversion as the CSV import path.
type Normalizer struct {
	mainCurrency string
	currencies   *currency.Pairs
	logger       ports.Logger
}

// NormalizerConfig holds configuration for the Normalizer.
type NormalizerConfig struct {
	MainCurrency string
	Currencies   *currency.Pairs
	Logger       ports.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the normalizer")
	}
	if cfg.Currencies == nil || cfg.MainCurrency == "" {
		return nil, fmt.Errorf("%w: currency configuration is required", ports.ErrConfigurationError)
	}
	return &Normalizer{
		mainCurrency: strings.ToUpper(cfg.MainCurrency),
		currencies:   cfg.Currencies,
		logger:       cfg.Logger,
	}, nil
}

// Normalize converts trade-history entries into transactions. Entries that
// are not buys or sells (deposits, staking rewards) and zero-volume entries
// are skipped with a warning, never handed to the engine.
func (n *Normalizer) Normalize(ctx context.Context, entries []domain.LedgerEntry) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, entry := range entries {
		side, err := domain.ParseSide(entry.Type)
		if err != nil {
			n.logger.Warn(ctx, "Skipping non-trade ledger entry", map[string]interface{}{
				"refID": entry.RefID,
				"type":  entry.Type,
			})
			continue
		}

		volume := entry.Volume
		if volume == 0 && entry.Price != 0 {
			volume = entry.Cost / entry.Price
		}
		if volume == 0 {
			n.logger.Warn(ctx, "Skipping zero-volume ledger entry", map[string]interface{}{"refID": entry.RefID})
			continue
		}

		price, fee := entry.Price, entry.Fee
		if fiat := n.findFiatName(entry.Pair); fiat != "" {
			price, err = n.currencies.Convert(fiat, n.mainCurrency, price)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", entry.RefID, err)
			}
			fee, err = n.currencies.Convert(fiat, n.mainCurrency, fee)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", entry.RefID, err)
			}
		}

		txs = append(txs, domain.Transaction{
			Position:   entry.Pair,
			Side:       side,
			Volume:     volume,
			Price:      price,
			PriceWoFee: round2(math.Abs(price - fee)),
			Cost:       entry.Cost,
			Fee:        fee,
			Time:       entry.ExecutedAt(),
			RefID:      entry.RefID,
		})
	}
	return txs, nil
}

// findFiatName returns the known fiat currency the pair id ends with, or "".
func (n *Normalizer) findFiatName(pair string) string {
	for _, name := range n.currencies.FiatNames() {
		if strings.HasSuffix(pair, name) {
			return name
		}
	}
	return ""
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
