package domain

import "fmt"

// Side represents the side of a normalized trade (buy or sell).
// The values match the "type" column of the Kraken trades export.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide converts a raw exchange record type into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown trade side: %q", s)
	}
}

// LedgerType selects which Kraken ledger a sync operates on.
type LedgerType string

const (
	LedgerTrading LedgerType = "trading"
	LedgerStaking LedgerType = "staking"
)
