package ports

import "cryptoPnlCalc/internal/domain"

// LedgerCache persists raw ledger pages between runs so that incremental
// syncs only request entries the cache has not seen yet. A missing cache is
// reported as an empty map, not as an error.
type LedgerCache interface {
	Load(ledgerType domain.LedgerType) (map[string]domain.LedgerEntry, error)
	Save(ledgerType domain.LedgerType, entries map[string]domain.LedgerEntry) error
}

// ResultsCache persists partial computation results between runs. Load leaves
// v untouched when no cached result exists.
type ResultsCache interface {
	Load(name string, v interface{}) error
	Save(name string, v interface{}) error
}
