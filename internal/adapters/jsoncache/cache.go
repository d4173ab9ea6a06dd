// Package jsoncache persists ledger pages and partial results as indented
// JSON files. Both caches are explicit, injected objects with a load/save
// lifecycle; a missing file reads back as empty, never as an error.
package jsoncache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

const ledgerCacheDir = "kraken_ledger_cache"

// LedgerCache stores raw ledger pages as one JSON file per ledger type.
type LedgerCache struct {
	dir string
}

// NewLedgerCache creates a ledger cache rooted at dir.
func NewLedgerCache(dir string) *LedgerCache {
	return &LedgerCache{dir: dir}
}

func (c *LedgerCache) filePath(ledgerType domain.LedgerType) (string, error) {
	path := filepath.Join(c.dir, ledgerCacheDir)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("%w: creating cache dir %q: %v", ports.ErrCacheIO, path, err)
	}
	return filepath.Join(path, fmt.Sprintf("ledgers_%s.json", ledgerType)), nil
}

// Load reads the cached entries for a ledger type, keyed by ref id.
func (c *LedgerCache) Load(ledgerType domain.LedgerType) (map[string]domain.LedgerEntry, error) {
	path, err := c.filePath(ledgerType)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]domain.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", ports.ErrCacheIO, path, err)
	}
	var entries map[string]domain.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding %q: %v", ports.ErrCacheIO, path, err)
	}
	return entries, nil
}

// Save overwrites the cached entries for a ledger type.
func (c *LedgerCache) Save(ledgerType domain.LedgerType, entries map[string]domain.LedgerEntry) error {
	path, err := c.filePath(ledgerType)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding ledger cache: %v", ports.ErrCacheIO, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %q: %v", ports.ErrCacheIO, path, err)
	}
	return nil
}

// ResultsCache stores arbitrary partial results as one JSON file per name.
type ResultsCache struct {
	dir string
}

// NewResultsCache creates a results cache rooted at dir.
func NewResultsCache(dir string) *ResultsCache {
	return &ResultsCache{dir: dir}
}

func (c *ResultsCache) filePath(name string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_partial_results.json", name))
}

// Load decodes the cached result into v. When no cached result exists, v is
// left untouched and no error is returned.
func (c *ResultsCache) Load(name string, v interface{}) error {
	data, err := os.ReadFile(c.filePath(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading results %q: %v", ports.ErrCacheIO, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decoding results %q: %v", ports.ErrCacheIO, name, err)
	}
	return nil
}

// Save overwrites the cached result for name.
func (c *ResultsCache) Save(name string, v interface{}) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("%w: creating results dir %q: %v", ports.ErrCacheIO, c.dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding results %q: %v", ports.ErrCacheIO, name, err)
	}
	if err := os.WriteFile(c.filePath(name), data, 0644); err != nil {
		return fmt.Errorf("%w: writing results %q: %v", ports.ErrCacheIO, name, err)
	}
	return nil
}
