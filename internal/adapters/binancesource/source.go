// Package binancesource imports trade history from Binance via the official
// SDK and normalizes it into the settlement currency, implementing
// ports.TradeSource. Binance, unlike the Kraken export, requires one request
// per symbol, so callers pass the pair list explicitly.
package binancesource

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"cryptoPnlCalc/internal/currency"
	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// Source implements ports.TradeSource against the Binance spot API.
type Source struct {
	client       *binance.Client
	currencies   *currency.Pairs
	mainCurrency string
	logger       ports.Logger
}

// Config holds configuration for the Binance trade source.
type Config struct {
	APIKey       string
	SecretKey    string
	MainCurrency string
	Currencies   *currency.Pairs
	Logger       ports.Logger
}

// New creates a Binance trade source.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the Binance source")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Binance API key and secret are required", ports.ErrAuthenticationFailed)
	}
	if cfg.Currencies == nil || cfg.MainCurrency == "" {
		return nil, fmt.Errorf("%w: currency configuration is required", ports.ErrConfigurationError)
	}
	return &Source{
		client:       binance.NewClient(cfg.APIKey, cfg.SecretKey),
		currencies:   cfg.Currencies,
		mainCurrency: strings.ToUpper(cfg.MainCurrency),
		logger:       cfg.Logger,
	}, nil
}

// FetchTrades lists the account's trades for each pair and returns them
// normalized, in the order Binance reports them.
func (s *Source) FetchTrades(ctx context.Context, pairs []string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, pair := range pairs {
		trades, err := s.client.NewListTradesService().Symbol(pair).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing trades for %s: %v", ports.ErrExchangeUnavailable, pair, err)
		}
		s.logger.Info(ctx, "Fetched Binance trades", map[string]interface{}{"pair": pair, "count": len(trades)})

		for _, trade := range trades {
			tx, err := s.normalize(ctx, trade)
			if err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// normalize maps one Binance trade onto the normalized transaction record,
// converting the quote leg into the main currency.
func (s *Source) normalize(ctx context.Context, trade *binance.TradeV3) (domain.Transaction, error) {
	price, err := parseFloat("price", trade.Price)
	if err != nil {
		return domain.Transaction{}, err
	}
	volume, err := parseFloat("qty", trade.Quantity)
	if err != nil {
		return domain.Transaction{}, err
	}
	cost, err := parseFloat("quoteQty", trade.QuoteQuantity)
	if err != nil {
		return domain.Transaction{}, err
	}
	fee, err := parseFloat("commission", trade.Commission)
	if err != nil {
		return domain.Transaction{}, err
	}

	if quote := s.findFiatName(trade.Symbol); quote != "" {
		price, err = s.currencies.Convert(quote, s.mainCurrency, price)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("trade %d: %w", trade.ID, err)
		}
	}

	// The commission is only usable as a settlement-currency fee when
	// Binance charged it in a convertible quote currency.
	feeAsset := strings.ToUpper(trade.CommissionAsset)
	if feeAsset == s.mainCurrency {
		// Already in the settlement currency.
	} else if converted, err := s.currencies.Convert(feeAsset, s.mainCurrency, fee); err == nil {
		fee = converted
	} else {
		s.logger.Warn(ctx, "Commission charged in a non-convertible asset, recording zero fee", map[string]interface{}{
			"trade": trade.ID,
			"asset": trade.CommissionAsset,
		})
		fee = 0
	}

	side := domain.Sell
	if trade.IsBuyer {
		side = domain.Buy
	}

	return domain.Transaction{
		Position:   trade.Symbol,
		Side:       side,
		Volume:     volume,
		Price:      price,
		PriceWoFee: round2(math.Abs(price - fee)),
		Cost:       cost,
		Fee:        fee,
		Time:       time.UnixMilli(trade.Time).UTC(),
		RefID:      fmt.Sprintf("%s-%d", trade.Symbol, trade.ID),
	}, nil
}

// findFiatName returns the known fiat currency the symbol ends with, or "".
func (s *Source) findFiatName(symbol string) string {
	for _, name := range s.currencies.FiatNames() {
		if strings.HasSuffix(symbol, name) {
			return name
		}
	}
	return ""
}

func parseFloat(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ports.ErrMalformedRecord, field, value)
	}
	return f, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
