// Package domain defines the core types shared across bookwatch: the decoded
// feed events the engine consumes, the snapshot views the sinks publish, and
// the store/cache interfaces implemented by the infrastructure packages.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a resting order.
type Side int

const (
	Buy Side = iota
	Sell
)

// String returns "buy" or "sell".
func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Order is a single resting order as reported by the feed. Price and Size are
// exact decimals decoded from the feed's string fields; the remaining fields
// are opaque metadata carried along for recording and never used for
// comparison.
type Order struct {
	ID    uint64
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal

	// Feed-provided metadata.
	Datetime       string
	Microtimestamp string
	PriceRaw       string
	SizeRaw        string
}

// Trade is a trade print from the feed. Trades never mutate the book; they
// are recorded and surfaced to observers only.
type Trade struct {
	ID          uint64
	Price       decimal.Decimal
	Size        decimal.Decimal
	BuyOrderID  uint64
	SellOrderID uint64
	Timestamp   time.Time
}

// EventKind discriminates the decoded event variants.
type EventKind int

const (
	// EventOther covers subscription acks and any frame the decoder does not
	// recognize. The engine ignores these without mutating state.
	EventOther EventKind = iota
	EventOrderCreated
	EventOrderChanged
	EventOrderDeleted
	EventTrade
)

// String returns the feed-facing name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOrderCreated:
		return "order_created"
	case EventOrderChanged:
		return "order_changed"
	case EventOrderDeleted:
		return "order_deleted"
	case EventTrade:
		return "trade"
	default:
		return "other"
	}
}

// Event is one decoded feed message. Order is populated for the three
// order-lifecycle kinds, Trade for EventTrade; both are zero for EventOther.
type Event struct {
	Kind  EventKind
	Order Order
	Trade Trade
}
