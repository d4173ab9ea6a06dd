// Package report renders the engine's outputs: CSV files for the annotated
// transaction stream and the per-position summary, and an optional PDF
// rendering of a CSV report.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptoPnlCalc/internal/domain"
)

// annotatedHeader mirrors the column layout of the original trades report.
var annotatedHeader = []string{
	"position", "type", "volume", "price wo fee", "price", "cost", "fee", "date",
	"profit", "cumulative profit", "remaining volume",
}

var summaryHeader = []string{"position", "transactions", "profit", "loss", "profit n loss"}

// WriteAnnotatedCSV writes the annotated transaction stream to path, creating
// parent directories as needed. An empty stream writes nothing.
func WriteAnnotatedCSV(rows []*domain.AnnotatedTransaction, path string) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Position,
			string(row.Side),
			formatFloat(row.Volume),
			formatFloat(row.PriceWoFee),
			formatFloat(row.Price),
			formatFloat(row.Cost),
			formatFloat(row.Fee),
			row.Time.UTC().Format(time.RFC3339),
			formatNullable(row.Profit),
			formatNullable(row.CumulativeProfit),
			formatFloat(row.RemainingVolume),
		})
	}
	return writeCSV(path, annotatedHeader, records)
}

// WriteSummaryCSV writes the per-position summary to path, creating parent
// directories as needed. An empty summary writes nothing.
func WriteSummaryCSV(rows []domain.PositionSummary, path string) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Position,
			strconv.Itoa(row.Transactions),
			formatFloat(row.Profit),
			formatFloat(row.Loss),
			formatFloat(row.ProfitAndLoss),
		})
	}
	return writeCSV(path, summaryHeader, records)
}

func writeCSV(path string, header []string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory %q: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %q: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(header)
	for _, record := range records {
		writer.Write(record)
	}
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
