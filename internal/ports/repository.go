package ports

import (
	"context"

	"cryptoPnlCalc/internal/domain"
)

// TransactionRepository stores normalized transactions between runs so that
// importing and reporting can happen in separate invocations.
type TransactionRepository interface {
	// Save persists transactions and returns how many were actually inserted.
	// Records whose exchange ref id is already stored are skipped.
	Save(ctx context.Context, txs []domain.Transaction) (int, error)
	// FindAll retrieves every stored transaction, ordered by time ascending.
	FindAll(ctx context.Context) ([]domain.Transaction, error)
	// FindByPosition retrieves one position's transactions, ordered by time ascending.
	FindByPosition(ctx context.Context, position string) ([]domain.Transaction, error)
	// Positions returns the distinct stored position ids, sorted ascending.
	Positions(ctx context.Context) ([]string, error)
}
