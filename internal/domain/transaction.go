package domain

import "time"

// Transaction is one normalized buy or sell event. Prices, costs and fees are
// already converted to the settlement currency by the import layer; the
// cost-basis engine never performs currency conversion itself.
type Transaction struct {
	Position   string    // Instrument / pair identifier (e.g. "XXBTZEUR")
	Side       Side      // Buy or Sell
	Volume     float64   // Units of the instrument, strictly positive
	Price      float64   // Settlement-currency price per unit
	PriceWoFee float64   // Price net of the fee, rounded to 2 decimals
	Cost       float64   // Total settlement-currency cost as reported by the exchange
	Fee        float64   // Settlement-currency fee
	Time       time.Time // Execution time; ties are broken by input order
	RefID      string    // Exchange-assigned id (empty for CSV imports)
}

// AnnotatedTransaction is a Transaction after it has been replayed through the
// cost-basis engine. Profit and CumulativeProfit are nil on buys. On a buy,
// RemainingVolume is the still-unconsumed part of the lot it opened; later
// sells of the same position decrement it in place.
type AnnotatedTransaction struct {
	Transaction
	Profit           *float64
	CumulativeProfit *float64
	RemainingVolume  float64
}

// PositionSummary aggregates one position's realized results.
type PositionSummary struct {
	Position      string
	Transactions  int     // Number of transactions replayed for the position
	Profit        float64 // Sum of strictly positive realized profits
	Loss          float64 // Sum of strictly negative realized profits
	ProfitAndLoss float64 // Last cumulative profit, 0 when nothing was realized
}
