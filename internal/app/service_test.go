package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPnlCalc/internal/adapters/jsoncache"
	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/engine"
)

func newTestService(t *testing.T) *ReconcileService {
	t.Helper()
	calc, err := engine.New(engine.Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	svc, err := NewReconcileService(ReconcileConfig{Logger: &mockLogger{}, Calculator: calc})
	require.NoError(t, err)
	return svc
}

func serviceTx(position string, side domain.Side, volume, price float64, at time.Time) domain.Transaction {
	return domain.Transaction{
		Position: position,
		Side:     side,
		Volume:   volume,
		Price:    price,
		Cost:     volume * price,
		Time:     at,
	}
}

func TestNewReconcileService_RequiresDependencies(t *testing.T) {
	_, err := NewReconcileService(ReconcileConfig{Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestReconcileService_Run(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		serviceTx("XETHZEUR", domain.Buy, 2, 100, now),
		serviceTx("XETHZEUR", domain.Sell, 2, 150, now.Add(time.Hour)),
		serviceTx("XXBTZEUR", domain.Buy, 1, 200, now),
	}
	opts := RunOptions{
		AnnotatedPath: filepath.Join(dir, "annotated.csv"),
		SummaryPath:   filepath.Join(dir, "summary.csv"),
	}

	result, err := svc.Run(context.Background(), txs, opts)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.TotalProfit)
	assert.Equal(t, 0.0, result.TotalLoss)
	assert.Equal(t, 100.0, result.TotalProfitAndLoss)
	assert.Len(t, result.Annotated, 3)

	// The still open XXBTZEUR position realized nothing and is dropped
	// from the summary.
	require.Len(t, result.Summary, 1)
	assert.Equal(t, "XETHZEUR", result.Summary[0].Position)

	annotated, err := os.ReadFile(opts.AnnotatedPath)
	require.NoError(t, err)
	assert.Contains(t, string(annotated), "XETHZEUR")
	assert.Contains(t, string(annotated), "XXBTZEUR")

	summary, err := os.ReadFile(opts.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "XETHZEUR")
	assert.NotContains(t, string(summary), "XXBTZEUR")
}

func TestReconcileService_Run_IncludeFlat(t *testing.T) {
	svc := newTestService(t)
	now := time.Now()
	txs := []domain.Transaction{
		serviceTx("XXBTZEUR", domain.Buy, 1, 200, now),
	}

	result, err := svc.Run(context.Background(), txs, RunOptions{IncludeFlat: true})
	require.NoError(t, err)
	require.Len(t, result.Summary, 1)
	assert.Equal(t, 0.0, result.Summary[0].ProfitAndLoss)
}

func TestReconcileService_Run_RendersPDF(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	now := time.Now()
	txs := []domain.Transaction{
		serviceTx("XETHZEUR", domain.Buy, 1, 100, now),
		serviceTx("XETHZEUR", domain.Sell, 1, 90, now.Add(time.Hour)),
	}
	summaryPath := filepath.Join(dir, "summary.csv")

	_, err := svc.Run(context.Background(), txs, RunOptions{
		SummaryPath: summaryPath,
		RenderPDF:   true,
		PDFTitle:    "Summary",
	})
	require.NoError(t, err)

	pdfPath := strings.TrimSuffix(summaryPath, ".csv") + ".pdf"
	info, err := os.Stat(pdfPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestReconcileService_Run_SnapshotsResults(t *testing.T) {
	calc, err := engine.New(engine.Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	dir := t.TempDir()
	svc, err := NewReconcileService(ReconcileConfig{
		Logger:     &mockLogger{},
		Calculator: calc,
		Results:    jsoncache.NewResultsCache(dir),
	})
	require.NoError(t, err)

	now := time.Now()
	txs := []domain.Transaction{
		serviceTx("XETHZEUR", domain.Buy, 1, 100, now),
		serviceTx("XETHZEUR", domain.Sell, 1, 150, now.Add(time.Hour)),
	}
	_, err = svc.Run(context.Background(), txs, RunOptions{})
	require.NoError(t, err)

	var snapshot RunReport
	require.NoError(t, jsoncache.NewResultsCache(dir).Load("reconciliation", &snapshot))
	assert.Equal(t, 50.0, snapshot.TotalProfit)
	assert.Len(t, snapshot.Annotated, 2)
}

func TestReconcileService_Run_PropagatesEngineErrors(t *testing.T) {
	calc, err := engine.New(engine.Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	svc, err := NewReconcileService(ReconcileConfig{Logger: &mockLogger{}, Calculator: calc})
	require.NoError(t, err)

	txs := []domain.Transaction{
		serviceTx("XETHZEUR", domain.Sell, 1, 100, time.Now()),
	}
	_, err = svc.Run(context.Background(), txs, RunOptions{})
	assert.Error(t, err)
}
