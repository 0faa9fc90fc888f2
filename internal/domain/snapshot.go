package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotLevel is a single price+size entry in a book snapshot.
type SnapshotLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookSnapshot is a read-only projection of the top of the book. It is a copy:
// holding one never aliases live engine state, so sinks may retain it across
// goroutines.
type BookSnapshot struct {
	Symbol    string
	SessionID string
	Bids      []SnapshotLevel // descending by price
	Asks      []SnapshotLevel // ascending by price
	Timestamp time.Time
}

// BestBid returns the highest bid, or false when the bid side is empty.
func (s BookSnapshot) BestBid() (SnapshotLevel, bool) {
	if len(s.Bids) == 0 {
		return SnapshotLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, or false when the ask side is empty.
func (s BookSnapshot) BestAsk() (SnapshotLevel, bool) {
	if len(s.Asks) == 0 {
		return SnapshotLevel{}, false
	}
	return s.Asks[0], true
}

// MidPrice returns the midpoint of the best bid and ask, or false when either
// side is empty.
func (s BookSnapshot) MidPrice() (decimal.Decimal, bool) {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}
