// Package krakencsv parses the Kraken "trades" CSV export into normalized
// transactions. Malformed numeric fields and zero-volume rows are rejected or
// filtered here so the engine only ever sees valid, positive quantities.
package krakencsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptoPnlCalc/internal/currency"
	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// Column names of the Kraken trades export.
const (
	fieldPair   = "pair"
	fieldCost   = "cost"
	fieldFee    = "fee"
	fieldPrice  = "price"
	fieldVolume = "vol"
	fieldTime   = "time"
	fieldType   = "type"
)

var requiredFields = []string{
	fieldPair, fieldCost, fieldFee, fieldPrice, fieldVolume, fieldTime, fieldType,
}

// Kraken writes times as "2021-01-05 12:23:45.6789"; older exports omit the
// fractional part.
var timeLayouts = []string{
	"2006-01-02 15:04:05.0000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Parser turns a Kraken trades CSV into normalized transactions, converting
// the fiat leg of each pair into the configured main currency.
type Parser struct {
	mainCurrency string
	currencies   *currency.Pairs
	logger       ports.Logger
}

// Config holds configuration for the Parser.
type Config struct {
	MainCurrency string
	Currencies   *currency.Pairs
	Logger       ports.Logger
}

// New creates a Parser.
func New(cfg Config) (*Parser, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the Kraken CSV parser")
	}
	if cfg.Currencies == nil {
		return nil, fmt.Errorf("%w: currency pairs are required", ports.ErrConfigurationError)
	}
	if cfg.MainCurrency == "" {
		return nil, fmt.Errorf("%w: main currency is required", ports.ErrConfigurationError)
	}
	return &Parser{
		mainCurrency: strings.ToUpper(cfg.MainCurrency),
		currencies:   cfg.Currencies,
		logger:       cfg.Logger,
	}, nil
}

// ParseFile parses the export at path.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]domain.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trades export %q: %w", path, err)
	}
	defer file.Close()
	return p.Parse(ctx, file)
}

// Parse parses a Kraken trades export. The header is validated against the
// required column set; extra columns are ignored.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading export header: %w", err)
	}
	index, err := p.validateHeader(header)
	if err != nil {
		return nil, err
	}

	var txs []domain.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading export line %d: %w", line+1, err)
		}
		line++

		tx, ok, err := p.parseRecord(ctx, record, index, line)
		if err != nil {
			return nil, err
		}
		if ok {
			txs = append(txs, tx)
		}
	}
	p.logger.Info(ctx, "Parsed Kraken trades export", map[string]interface{}{"transactions": len(txs)})
	return txs, nil
}

func (p *Parser) validateHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredFields {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrMissingFields, strings.Join(missing, ", "))
	}
	return index, nil
}

func (p *Parser) parseRecord(ctx context.Context, record []string, index map[string]int, line int) (domain.Transaction, bool, error) {
	get := func(field string) string {
		i := index[field]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	side, err := domain.ParseSide(get(fieldType))
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("%w: line %d: %v", ports.ErrMalformedRecord, line, err)
	}

	price, err := parseFloat(fieldPrice, get(fieldPrice), line)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	fee, err := parseFloat(fieldFee, get(fieldFee), line)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	volume, err := parseFloat(fieldVolume, get(fieldVolume), line)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	cost, err := parseFloat(fieldCost, get(fieldCost), line)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	at, err := parseTime(get(fieldTime))
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("%w: line %d: %v", ports.ErrMalformedRecord, line, err)
	}

	// Some export rows carry the volume only implicitly via the total cost.
	if volume == 0 && price != 0 {
		volume = cost / price
	}
	if volume == 0 {
		p.logger.Warn(ctx, "Skipping zero-volume row", map[string]interface{}{"line": line, "pair": get(fieldPair)})
		return domain.Transaction{}, false, nil
	}

	position := get(fieldPair)
	if fiat := p.findFiatName(position); fiat != "" {
		price, err = p.currencies.Convert(fiat, p.mainCurrency, price)
		if err != nil {
			return domain.Transaction{}, false, fmt.Errorf("line %d: %w", line, err)
		}
		fee, err = p.currencies.Convert(fiat, p.mainCurrency, fee)
		if err != nil {
			return domain.Transaction{}, false, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return domain.Transaction{
		Position:   position,
		Side:       side,
		Volume:     volume,
		Price:      price,
		PriceWoFee: round2(math.Abs(price - fee)),
		Cost:       cost,
		Fee:        fee,
		Time:       at,
	}, true, nil
}

// findFiatName returns the known fiat currency the pair id ends with, or "".
func (p *Parser) findFiatName(position string) string {
	for _, name := range p.currencies.FiatNames() {
		if strings.HasSuffix(position, name) {
			return name
		}
	}
	return ""
}

func parseFloat(field, value string, line int) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: invalid %s %q", ports.ErrMalformedRecord, line, field, value)
	}
	return f, nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if at, err := time.Parse(layout, value); err == nil {
			return at.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", value)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
