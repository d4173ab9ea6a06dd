package ports

import (
	"context"

	"cryptoPnlCalc/internal/domain"
)

// TradeSource fetches trade history from an exchange and returns it already
// normalized to the settlement currency.
type TradeSource interface {
	FetchTrades(ctx context.Context, pairs []string) ([]domain.Transaction, error)
}

// LedgerAPI is one page-oriented history endpoint of the Kraken private API.
// Implementations return at most one page (50 entries) per call, keyed by the
// exchange ref id.
type LedgerAPI interface {
	FetchHistory(ctx context.Context, ledgerType domain.LedgerType, offset int) (map[string]domain.LedgerEntry, error)
}
