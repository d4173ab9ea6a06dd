package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestCalculator(t *testing.T, lenient bool) *Calculator {
	t.Helper()
	calc, err := New(Config{Logger: &mockLogger{}, IgnoreNegativeBalance: lenient})
	require.NoError(t, err)
	return calc
}

func tx(position string, side domain.Side, volume, price float64, at time.Time) domain.Transaction {
	return domain.Transaction{
		Position: position,
		Side:     side,
		Volume:   volume,
		Price:    price,
		Cost:     volume * price,
		Time:     at,
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestCalculator_Positions(t *testing.T) {
	calc := newTestCalculator(t, false)
	now := time.Now()
	txs := []domain.Transaction{
		tx("XETHZEUR", domain.Buy, 1, 100, now),
		tx("XXBTZEUR", domain.Buy, 1, 100, now),
		tx("XETHZEUR", domain.Sell, 1, 120, now.Add(time.Hour)),
	}
	assert.Equal(t, []string{"XETHZEUR", "XXBTZEUR"}, calc.Positions(txs))
	assert.Empty(t, calc.Positions(nil))
}

func TestCalculate_EmptyInput(t *testing.T) {
	calc := newTestCalculator(t, false)
	annotated, err := calc.Calculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, annotated)

	report, err := calc.Summary(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, report)
}

// BUY 10@10, BUY 5@12, SELL 12@15: the sale consumes the whole first lot and
// 2 units of the second, so profit = 12*15 - (10*10 + 2*12) = 56 and the
// surviving lot holds 3 units.
func TestCalculate_PartialLotConsumption(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 10, 10, base),
		tx("XXBTZEUR", domain.Buy, 5, 12, base.Add(time.Hour)),
		tx("XXBTZEUR", domain.Sell, 12, 15, base.Add(2*time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, annotated, 3)

	first, second, sale := annotated[0], annotated[1], annotated[2]
	assert.Nil(t, first.Profit)
	assert.Nil(t, first.CumulativeProfit)
	assert.Equal(t, 0.0, first.RemainingVolume, "first lot fully consumed")
	assert.Equal(t, 3.0, second.RemainingVolume, "3 units @12 survive")

	require.NotNil(t, sale.Profit)
	assert.Equal(t, 56.0, *sale.Profit)
	require.NotNil(t, sale.CumulativeProfit)
	assert.Equal(t, 56.0, *sale.CumulativeProfit)
}

// A sale smaller than the oldest lot must take its cost basis from that lot
// only, regardless of later, differently priced lots.
func TestCalculate_FIFOOrdering(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XETHZEUR", domain.Buy, 4, 50, base),
		tx("XETHZEUR", domain.Buy, 4, 90, base.Add(time.Hour)),
		tx("XETHZEUR", domain.Sell, 2, 100, base.Add(2*time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.NotNil(t, annotated[2].Profit)
	// 2*100 - 2*50, never touching the 90-priced lot.
	assert.Equal(t, 100.0, *annotated[2].Profit)
	assert.Equal(t, 2.0, annotated[0].RemainingVolume)
	assert.Equal(t, 4.0, annotated[1].RemainingVolume)
}

func TestCalculate_InsufficientInventoryStrict(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 5, 10, base),
		tx("XXBTZEUR", domain.Sell, 8, 20, base.Add(time.Hour)),
	}

	_, err := calc.Calculate(context.Background(), txs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInsufficientInventory)
	assert.Contains(t, err.Error(), "XXBTZEUR")
}

// In lenient mode the sale is matched against the 5 available units only:
// profit = 5*20 - 5*10 = 50, and the run continues.
func TestCalculate_InsufficientInventoryLenient(t *testing.T) {
	calc := newTestCalculator(t, true)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 5, 10, base),
		tx("XXBTZEUR", domain.Sell, 8, 20, base.Add(time.Hour)),
		tx("XXBTZEUR", domain.Buy, 1, 30, base.Add(2*time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, annotated, 3)
	require.NotNil(t, annotated[1].Profit)
	assert.Equal(t, 50.0, *annotated[1].Profit)
}

// Equal timestamps keep their input order, so cost basis is deterministic for
// exports listing several fills at the same instant.
func TestCalculate_StableTieOrdering(t *testing.T) {
	calc := newTestCalculator(t, false)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 1, 10, at),
		tx("XXBTZEUR", domain.Buy, 1, 20, at),
		tx("XXBTZEUR", domain.Sell, 1, 30, at.Add(time.Minute)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.NotNil(t, annotated[2].Profit)
	assert.Equal(t, 20.0, *annotated[2].Profit, "first listed fill is consumed first")
}

// Cumulative profit runs per position; the combined stream concatenates the
// positions in ascending id order without resetting or sharing totals.
func TestCalculate_PerPositionCumulative(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("B-PAIR", domain.Buy, 1, 10, base),
		tx("A-PAIR", domain.Buy, 1, 100, base.Add(time.Minute)),
		tx("B-PAIR", domain.Sell, 1, 15, base.Add(2*time.Minute)),
		tx("A-PAIR", domain.Sell, 1, 90, base.Add(3*time.Minute)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, annotated, 4)

	// A-PAIR first (ascending), then B-PAIR.
	assert.Equal(t, "A-PAIR", annotated[0].Position)
	assert.Equal(t, "A-PAIR", annotated[1].Position)
	assert.Equal(t, "B-PAIR", annotated[2].Position)

	require.NotNil(t, annotated[1].CumulativeProfit)
	assert.Equal(t, -10.0, *annotated[1].CumulativeProfit)
	require.NotNil(t, annotated[3].CumulativeProfit)
	assert.Equal(t, 5.0, *annotated[3].CumulativeProfit)
}

func TestCalculate_Idempotent(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 10, 10, base),
		tx("XXBTZEUR", domain.Sell, 4, 12, base.Add(time.Hour)),
		tx("XXBTZEUR", domain.Sell, 3, 8, base.Add(2*time.Hour)),
	}

	first, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	second, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Transaction, second[i].Transaction)
		assert.Equal(t, first[i].RemainingVolume, second[i].RemainingVolume)
		if first[i].Profit != nil {
			require.NotNil(t, second[i].Profit)
			assert.Equal(t, *first[i].Profit, *second[i].Profit)
		}
	}

	reportA, err := calc.Summary(context.Background(), txs, nil)
	require.NoError(t, err)
	reportB, err := calc.Summary(context.Background(), txs, nil)
	require.NoError(t, err)
	assert.Equal(t, reportA, reportB)
}

func TestSummary_OnlyBuys(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 1, 10, base),
		tx("XXBTZEUR", domain.Buy, 2, 11, base.Add(time.Hour)),
	}

	report, err := calc.Summary(context.Background(), txs, nil)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, domain.PositionSummary{
		Position:     "XXBTZEUR",
		Transactions: 2,
	}, report[0])
}

// For a position that starts from an empty inventory, the sum of profits and
// losses equals the final cumulative profit.
func TestSummary_RoundTrip(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XETHZEUR", domain.Buy, 10, 100, base),
		tx("XETHZEUR", domain.Sell, 5, 120, base.Add(time.Hour)),
		tx("XETHZEUR", domain.Sell, 5, 80, base.Add(2*time.Hour)),
		tx("XETHZEUR", domain.Buy, 2, 90, base.Add(3*time.Hour)),
		tx("XETHZEUR", domain.Sell, 2, 95, base.Add(4*time.Hour)),
	}

	report, err := calc.Summary(context.Background(), txs, nil)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.InDelta(t, report[0].ProfitAndLoss, report[0].Profit+report[0].Loss, 0.005)
	assert.Equal(t, 5, report[0].Transactions)
}

func TestSummary_UsesSuppliedStream(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 10, 10, base),
		tx("XXBTZEUR", domain.Sell, 10, 11, base.Add(time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	report, err := calc.Summary(context.Background(), txs, annotated)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 10.0, report[0].Profit)
	assert.Equal(t, 0.0, report[0].Loss)
	assert.Equal(t, 10.0, report[0].ProfitAndLoss)
}

// Inventory must never go negative and every sufficient sale must match its
// full volume, whatever the interleaving of buys and sells.
func TestCalculate_InventoryInvariant(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 3, 10, base),
		tx("XXBTZEUR", domain.Sell, 1, 12, base.Add(1*time.Hour)),
		tx("XXBTZEUR", domain.Buy, 2, 9, base.Add(2*time.Hour)),
		tx("XXBTZEUR", domain.Sell, 4, 11, base.Add(3*time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	var open float64
	for _, row := range annotated {
		if row.Side == domain.Buy {
			assert.GreaterOrEqual(t, row.RemainingVolume, 0.0)
			open += row.RemainingVolume
		}
	}
	assert.Equal(t, 0.0, open, "both sales drained the inventory completely")
}

func TestCalculate_RoundsAtEmission(t *testing.T) {
	calc := newTestCalculator(t, false)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// 0.3*1.115 - 0.3*1.001 = 0.0342, rounds to 0.03.
	txs := []domain.Transaction{
		tx("XXBTZEUR", domain.Buy, 0.3, 1.001, base),
		tx("XXBTZEUR", domain.Sell, 0.3, 1.115, base.Add(time.Hour)),
	}

	annotated, err := calc.Calculate(context.Background(), txs)
	require.NoError(t, err)
	require.NotNil(t, annotated[1].Profit)
	assert.Equal(t, 0.03, *annotated[1].Profit)
	assert.Equal(t, 0.03, *annotated[1].CumulativeProfit)
}
