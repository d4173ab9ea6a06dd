package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TransactionRepository using SQLite. It persists
// normalized transactions between runs so that importing (CSV or API) and
// reporting can happen in separate invocations.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trades.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_id TEXT UNIQUE,
		position TEXT NOT NULL,
		side TEXT NOT NULL,
		volume REAL NOT NULL,
		price REAL NOT NULL,
		price_wo_fee REAL NOT NULL,
		cost REAL NOT NULL,
		fee REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_position_time ON transactions (position, executed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Save persists transactions and returns how many were actually inserted.
// Records carrying a ref id already present in the store are skipped, which
// makes re-importing the same export or API page idempotent.
func (r *Repository) Save(ctx context.Context, txs []domain.Transaction) (int, error) {
	const query = `
	INSERT OR IGNORE INTO transactions (ref_id, position, side, volume, price, price_wo_fee, cost, fee, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", ports.ErrQueryFailed, err)
	}
	defer dbTx.Rollback()

	inserted := 0
	for _, tx := range txs {
		// CSV imports have no exchange ref id; NULL keeps them out of the
		// unique constraint.
		var refID sql.NullString
		if tx.RefID != "" {
			refID = sql.NullString{String: tx.RefID, Valid: true}
		}
		result, err := dbTx.ExecContext(ctx, query,
			refID, tx.Position, string(tx.Side), tx.Volume, tx.Price, tx.PriceWoFee, tx.Cost, tx.Fee, tx.Time)
		if err != nil {
			return 0, fmt.Errorf("%w: insert transaction for %s: %v", ports.ErrQueryFailed, tx.Position, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: rows affected: %v", ports.ErrQueryFailed, err)
		}
		inserted += int(affected)
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ports.ErrQueryFailed, err)
	}

	r.logger.Debug(ctx, "Transactions saved", map[string]interface{}{"given": len(txs), "inserted": inserted})
	return inserted, nil
}

// FindAll retrieves every stored transaction, ordered by time ascending.
func (r *Repository) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	const query = `
	SELECT COALESCE(ref_id, ''), position, side, volume, price, price_wo_fee, cost, fee, executed_at
	FROM transactions
	ORDER BY executed_at ASC, id ASC`
	return r.queryTransactions(ctx, query)
}

// FindByPosition retrieves one position's transactions, ordered by time ascending.
func (r *Repository) FindByPosition(ctx context.Context, position string) ([]domain.Transaction, error) {
	const query = `
	SELECT COALESCE(ref_id, ''), position, side, volume, price, price_wo_fee, cost, fee, executed_at
	FROM transactions
	WHERE position = ?
	ORDER BY executed_at ASC, id ASC`
	return r.queryTransactions(ctx, query, position)
}

// Positions returns the distinct stored position ids, sorted ascending.
func (r *Repository) Positions(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT position FROM transactions ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query positions: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var positions []string
	for rows.Next() {
		var position string
		if err := rows.Scan(&position); err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", ports.ErrQueryFailed, err)
		}
		positions = append(positions, position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating positions: %v", ports.ErrQueryFailed, err)
	}
	return positions, nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		var side string
		if err := rows.Scan(&tx.RefID, &tx.Position, &side, &tx.Volume, &tx.Price,
			&tx.PriceWoFee, &tx.Cost, &tx.Fee, &tx.Time); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", ports.ErrQueryFailed, err)
		}
		tx.Side = domain.Side(side)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating transactions: %v", ports.ErrQueryFailed, err)
	}
	return txs, nil
}
