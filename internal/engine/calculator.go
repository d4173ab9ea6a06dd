// Package engine implements the FIFO cost-basis matching engine. It replays a
// normalized transaction history against per-position inventory queues and
// produces the annotated transaction stream plus per-position summaries.
//
// The engine is a pure, single-threaded batch computation: it performs no I/O
// beyond the injected logger, holds no state across calls, and constructs
// fresh inventory queues on every run.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

// Calculator matches sells against buy lots on a first-in-first-out basis.
type Calculator struct {
	logger                ports.Logger
	ignoreNegativeBalance bool
}

// Config holds configuration for the Calculator.
type Config struct {
	Logger ports.Logger
	// IgnoreNegativeBalance tolerates sells that exceed recorded inventory:
	// the sale is matched against whatever lots remain, the condition is
	// reported through the logger and the run continues. When false such a
	// sell aborts the run with ports.ErrInsufficientInventory.
	IgnoreNegativeBalance bool
}

// New creates a Calculator.
func New(cfg Config) (*Calculator, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the calculator")
	}
	return &Calculator{
		logger:                cfg.Logger,
		ignoreNegativeBalance: cfg.IgnoreNegativeBalance,
	}, nil
}

// Positions returns the distinct position ids of txs, sorted ascending.
func (c *Calculator) Positions(txs []domain.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var positions []string
	for _, tx := range txs {
		if _, ok := seen[tx.Position]; !ok {
			seen[tx.Position] = struct{}{}
			positions = append(positions, tx.Position)
		}
	}
	sort.Strings(positions)
	return positions
}

// Calculate sorts txs chronologically (stable, so equal timestamps keep their
// input order), partitions them by position and replays each position against
// a fresh FIFO inventory queue. The returned stream concatenates each
// position's annotated sequence in ascending position order; cumulative profit
// runs per position and is never carried across positions.
//
// An empty input yields an empty result. A sell exceeding available inventory
// is fatal unless IgnoreNegativeBalance is set.
func (c *Calculator) Calculate(ctx context.Context, txs []domain.Transaction) ([]*domain.AnnotatedTransaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	ordered := make([]domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})

	var result []*domain.AnnotatedTransaction
	var grandTotal float64
	for _, position := range c.Positions(ordered) {
		var orders []domain.Transaction
		for _, tx := range ordered {
			if tx.Position == position {
				orders = append(orders, tx)
			}
		}
		if len(orders) == 0 {
			// Cannot happen for a position reported by Positions; if it does,
			// the partitioning itself is broken.
			return nil, fmt.Errorf("%w: %s", ports.ErrNoData, position)
		}

		annotated, pnl, err := c.process(ctx, orders)
		if err != nil {
			return nil, err
		}
		grandTotal += pnl
		result = append(result, annotated...)
		c.logger.Debug(ctx, "Position replayed", map[string]interface{}{
			"position":     position,
			"transactions": len(orders),
			"pnl":          round2(pnl),
		})
	}
	c.logger.Debug(ctx, "All positions replayed", map[string]interface{}{"pnl": round2(grandTotal)})
	return result, nil
}

// process replays one position's chronologically ordered transactions.
// The inventory queue holds pointers into the emitted stream, so consuming a
// lot decrements RemainingVolume on the already-emitted buy record.
func (c *Calculator) process(ctx context.Context, orders []domain.Transaction) ([]*domain.AnnotatedTransaction, float64, error) {
	annotated := make([]*domain.AnnotatedTransaction, 0, len(orders))
	var inventory []*domain.AnnotatedTransaction
	var pnl float64

	for _, order := range orders {
		row := &domain.AnnotatedTransaction{
			Transaction:     order,
			RemainingVolume: order.Volume,
		}
		if order.Side == domain.Buy {
			inventory = append(inventory, row)
			annotated = append(annotated, row)
			continue
		}

		realized, err := c.processSale(ctx, &inventory, row)
		if err != nil {
			return nil, 0, err
		}
		pnl += realized
		profit := round2(realized)
		cumulative := round2(pnl)
		row.Profit = &profit
		row.CumulativeProfit = &cumulative
		annotated = append(annotated, row)
	}
	return annotated, pnl, nil
}

// processSale consumes inventory lots front-first until the sale is filled and
// returns the unrounded realized profit. Cost basis accumulates unrounded so
// partial-lot matches do not compound rounding error.
func (c *Calculator) processSale(ctx context.Context, inventory *[]*domain.AnnotatedTransaction, sell *domain.AnnotatedTransaction) (float64, error) {
	toFill := sell.Volume
	var costBasis, matchedTotal float64

	for toFill > 0 {
		if len(*inventory) == 0 {
			if !c.ignoreNegativeBalance {
				return 0, fmt.Errorf("%w: %s @ %s",
					ports.ErrInsufficientInventory, sell.Position, sell.Time.Format(time.RFC3339))
			}
			c.logger.Warn(ctx, "Trying to sell more units than there are bought ones", map[string]interface{}{
				"position":  sell.Position,
				"time":      sell.Time,
				"unmatched": toFill,
			})
			break
		}

		lot := (*inventory)[0]
		matched := math.Min(toFill, lot.RemainingVolume)
		costBasis += matched * lot.Price
		matchedTotal += matched
		toFill -= matched

		if lot.RemainingVolume > matched {
			lot.RemainingVolume -= matched
		} else {
			lot.RemainingVolume = 0
			*inventory = (*inventory)[1:]
		}
	}
	return matchedTotal*sell.Price - costBasis, nil
}

// Summary aggregates the annotated stream into one row per position, in
// ascending position order. When annotated is nil it is recomputed from txs.
// Positions whose annotated group is empty are skipped, not an error.
func (c *Calculator) Summary(ctx context.Context, txs []domain.Transaction, annotated []*domain.AnnotatedTransaction) ([]domain.PositionSummary, error) {
	if annotated == nil {
		var err error
		annotated, err = c.Calculate(ctx, txs)
		if err != nil {
			return nil, err
		}
	}

	plain := make([]domain.Transaction, len(annotated))
	for i, row := range annotated {
		plain[i] = row.Transaction
	}

	var report []domain.PositionSummary
	for _, position := range c.Positions(plain) {
		var orders []*domain.AnnotatedTransaction
		for _, row := range annotated {
			if row.Position == position {
				orders = append(orders, row)
			}
		}
		if len(orders) == 0 {
			continue
		}

		var profit, loss float64
		var lastCumulative *float64
		for _, order := range orders {
			if order.Profit != nil {
				if *order.Profit > 0 {
					profit += *order.Profit
				} else if *order.Profit < 0 {
					loss += *order.Profit
				}
			}
			if order.CumulativeProfit != nil {
				lastCumulative = order.CumulativeProfit
			}
		}
		pnl := 0.0
		if lastCumulative != nil {
			pnl = *lastCumulative
		}
		report = append(report, domain.PositionSummary{
			Position:      position,
			Transactions:  len(orders),
			Profit:        round2(profit),
			Loss:          round2(loss),
			ProfitAndLoss: pnl,
		})
	}
	return report, nil
}

// round2 rounds a currency-facing value to 2 decimal places at emission.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
