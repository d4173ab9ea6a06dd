// Package currency converts fiat amounts between currencies using an explicit
// table of conversion pairs. Rates are static per run and are loaded from a
// YAML file next to the rest of the configuration.
package currency

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cryptoPnlCalc/internal/ports"
)

type pair struct {
	currency1 string
	currency2 string
	rate      float64
}

// Pairs is a table of currency conversion pairs.
type Pairs struct {
	pairs []pair
}

// NewPairs creates an empty conversion table.
func NewPairs() *Pairs {
	return &Pairs{}
}

// AddPair registers a conversion rate between two currencies. The reverse
// direction is derived by division, so one entry covers both ways.
func (p *Pairs) AddPair(currency1, currency2 string, rate float64) {
	p.pairs = append(p.pairs, pair{
		currency1: strings.ToUpper(currency1),
		currency2: strings.ToUpper(currency2),
		rate:      rate,
	})
}

// FiatNames returns every currency name appearing in the table, sorted
// ascending. The import layer uses these to detect the fiat leg of a pair id.
func (p *Pairs) FiatNames() []string {
	seen := make(map[string]struct{}, 2*len(p.pairs))
	var names []string
	for _, pr := range p.pairs {
		for _, name := range []string{pr.currency1, pr.currency2} {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Convert converts amount from one currency to another, rounded to 2 decimal
// places. Zero amounts and same-currency conversions short-circuit; a missing
// pair is an error.
func (p *Pairs) Convert(from, to string, amount float64) (float64, error) {
	if amount == 0 || from == to {
		return round2(amount), nil
	}
	for _, pr := range p.pairs {
		if pr.currency1 == from && pr.currency2 == to {
			return round2(amount * pr.rate), nil
		}
		if pr.currency2 == from && pr.currency1 == to {
			return round2(amount / pr.rate), nil
		}
	}
	return 0, fmt.Errorf("%w: from %s to %s", ports.ErrUnknownCurrency, from, to)
}

type ratesFile struct {
	Pairs []struct {
		From string  `yaml:"from"`
		To   string  `yaml:"to"`
		Rate float64 `yaml:"rate"`
	} `yaml:"pairs"`
}

// LoadPairs reads a conversion table from a YAML file of the form:
//
//	pairs:
//	  - {from: EUR, to: USD, rate: 1.1326}
//	  - {from: EUR, to: USDT, rate: 1.1326}
func LoadPairs(path string) (*Pairs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rates file %q: %w", path, err)
	}
	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rates file %q: %w", path, err)
	}
	pairs := NewPairs()
	for _, entry := range file.Pairs {
		if entry.From == "" || entry.To == "" || entry.Rate <= 0 {
			return nil, fmt.Errorf("%w: rates file entry %+v", ports.ErrConfigurationError, entry)
		}
		pairs.AddPair(entry.From, entry.To, entry.Rate)
	}
	return pairs, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
