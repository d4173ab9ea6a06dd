package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPnlCalc/internal/domain"
)

func TestWriteAnnotatedCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "trades.pnl.csv")

	profit := 56.0
	cumulative := 56.0
	rows := []*domain.AnnotatedTransaction{
		{
			Transaction: domain.Transaction{
				Position: "XXBTZEUR", Side: domain.Buy, Volume: 10, Price: 10,
				PriceWoFee: 9.9, Cost: 100, Fee: 0.1,
				Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			RemainingVolume: 0,
		},
		{
			Transaction: domain.Transaction{
				Position: "XXBTZEUR", Side: domain.Sell, Volume: 10, Price: 15.6,
				PriceWoFee: 15.5, Cost: 156, Fee: 0.1,
				Time: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			},
			Profit:           &profit,
			CumulativeProfit: &cumulative,
			RemainingVolume:  10,
		},
	}

	require.NoError(t, WriteAnnotatedCSV(rows, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, annotatedHeader, records[0])
	// Buy rows leave the profit columns empty.
	assert.Equal(t, "buy", records[1][1])
	assert.Equal(t, "", records[1][8])
	assert.Equal(t, "", records[1][9])
	assert.Equal(t, "0", records[1][10])
	// Sell rows carry the realized numbers.
	assert.Equal(t, "56", records[2][8])
	assert.Equal(t, "56", records[2][9])
	assert.Equal(t, "2024-03-02T10:00:00Z", records[2][7])
}

func TestWriteSummaryCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.summary.csv")

	rows := []domain.PositionSummary{
		{Position: "XXBTZEUR", Transactions: 3, Profit: 56, Loss: -4.5, ProfitAndLoss: 51.5},
	}
	require.NoError(t, WriteSummaryCSV(rows, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, summaryHeader, records[0])
	assert.Equal(t, []string{"XXBTZEUR", "3", "56", "-4.5", "51.5"}, records[1])
}

func TestWriteCSV_EmptyInputWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")

	require.NoError(t, WriteAnnotatedCSV(nil, path))
	require.NoError(t, WriteSummaryCSV(nil, path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRenderPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.summary.csv")
	rows := []domain.PositionSummary{
		{Position: "XXBTZEUR", Transactions: 3, Profit: 56, Loss: -4.5, ProfitAndLoss: 51.5},
	}
	require.NoError(t, WriteSummaryCSV(rows, path))

	require.NoError(t, RenderPDF(path, "Trades in Kraken.com", "Prices are in Euros."))

	info, err := os.Stat(filepath.Join(dir, "trades.summary.pdf"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
