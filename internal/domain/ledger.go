package domain

import "time"

// LedgerEntry is a raw Kraken history record as returned by the private API
// and stored in the page cache, prior to normalization. Trade-history entries
// fill Pair/Type/Price/Cost/Fee/Volume; ledger entries (e.g. staking) fill
// Asset/Amount/Fee. Kraken encodes the numeric fields as JSON strings.
type LedgerEntry struct {
	RefID  string  `json:"refid,omitempty"`
	Pair   string  `json:"pair,omitempty"`
	Type   string  `json:"type"`
	Price  float64 `json:"price,string,omitempty"`
	Cost   float64 `json:"cost,string,omitempty"`
	Fee    float64 `json:"fee,string"`
	Volume float64 `json:"vol,string,omitempty"`
	Asset  string  `json:"asset,omitempty"`
	Amount float64 `json:"amount,string,omitempty"`
	Time   float64 `json:"time"` // Unix seconds with a fractional part
}

// ExecutedAt converts the entry's unix timestamp into a time.Time.
func (e LedgerEntry) ExecutedAt() time.Time {
	sec := int64(e.Time)
	nsec := int64((e.Time - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
