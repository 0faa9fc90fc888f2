package book

import (
	"github.com/shopspring/decimal"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// Stats counts event-level anomalies and reconciliation activity. Stale
// deletes and swept levels are expected feed conditions, not errors; they are
// surfaced here so callers can observe them.
type Stats struct {
	EventsApplied uint64
	StaleDeletes  uint64
	SweptLevels   uint64
}

// Book maintains the two sorted ladders of price levels for one instrument.
// Events must be applied one at a time, in feed order, by a single goroutine;
// every Apply* call runs to completion before the book can be observed again,
// so snapshots are consistent by construction.
type Book struct {
	bids  *ladder
	asks  *ladder
	stats Stats
}

// New returns an empty book.
func New() *Book {
	return &Book{
		bids: newLadder(bidCmp),
		asks: newLadder(askCmp),
	}
}

// Apply dispatches one decoded feed event. Trade and other events never
// mutate the book. Every entry point counts toward Stats.EventsApplied,
// whether called through Apply or directly.
func (b *Book) Apply(ev domain.Event) {
	switch ev.Kind {
	case domain.EventOrderCreated:
		b.ApplyOrderCreated(ev.Order)
	case domain.EventOrderChanged:
		b.ApplyOrderChanged(ev.Order)
	case domain.EventOrderDeleted:
		b.ApplyOrderDeleted(ev.Order)
	default:
		// trades, subscription acks, unknown frames
		b.stats.EventsApplied++
	}
}

// ApplyOrderCreated adds the order to its side, creating the price level if it
// does not exist yet, then reconciles any crossing this insertion caused.
func (b *Book) ApplyOrderCreated(o domain.Order) {
	b.insert(o)
	b.stats.EventsApplied++
}

// ApplyOrderDeleted removes the order from the level at its price. A missing
// level or order id is a stale delete: the event is discarded and counted.
// Removing liquidity cannot newly cross the book, so no sweep runs here.
func (b *Book) ApplyOrderDeleted(o domain.Order) {
	b.stats.EventsApplied++
	own, _ := b.side(o.Side)
	i, found := own.search(o.Price)
	if !found {
		b.stats.StaleDeletes++
		return
	}
	lv := own.levels[i]
	if _, ok := lv.removeOrder(o.ID); !ok {
		b.stats.StaleDeletes++
		return
	}
	if lv.isEmpty() {
		own.removeAt(i)
	}
}

// ApplyOrderChanged relocates an order: it is removed from wherever it
// currently rests on its side, then re-inserted at the event's new price and
// size as if created. The removal completes before the insert so the order
// never exists at two prices or double-counts into an aggregate size. An
// order id with no prior resting position is tolerated and handled as a
// plain create.
func (b *Book) ApplyOrderChanged(o domain.Order) {
	own, _ := b.side(o.Side)
	if i, ok := own.findOrder(o.ID); ok {
		lv := own.levels[i]
		lv.removeOrder(o.ID)
		if lv.isEmpty() {
			own.removeAt(i)
		}
	}
	b.insert(o)
	b.stats.EventsApplied++
}

// Snapshot returns up to depth levels per side as (price, size) pairs, bids
// descending and asks ascending. The result is a copy with no references into
// engine state. depth <= 0 returns all levels.
func (b *Book) Snapshot(depth int) (bids, asks []domain.SnapshotLevel) {
	return project(b.bids, depth), project(b.asks, depth)
}

// Stats returns the current counters.
func (b *Book) Stats() Stats {
	return b.stats
}

// Depth returns the number of price levels per side.
func (b *Book) Depth() (bids, asks int) {
	return b.bids.len(), b.asks.len()
}

func (b *Book) side(s domain.Side) (own, opp *ladder) {
	if s == domain.Buy {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// insert is the shared insert phase of the created and changed paths: place
// the order at its price level, then sweep the opposite side.
func (b *Book) insert(o domain.Order) {
	own, opp := b.side(o.Side)
	i, found := own.search(o.Price)
	if found {
		own.levels[i].insertOrder(o)
	} else {
		own.insertAt(i, newLevel(o))
	}
	b.sweep(opp, o.Price)
}

// sweep implements crossing reconciliation: after an insertion at price on
// one side, remove opposite-side levels whose price crosses it (inclusive),
// best first, until the first non-crossing level. The crossed liquidity is
// assumed consumed by the match that produced the crossing order; the feed's
// own delete events for it are either late or lost. Entire levels are removed
// rather than reduced because the engine does not know fill quantities; the
// feed's deletes remain authoritative.
func (b *Book) sweep(opp *ladder, price decimal.Decimal) {
	for {
		best := opp.best()
		if best == nil || opp.cmp(best.price, price) > 0 {
			return
		}
		opp.removeAt(0)
		b.stats.SweptLevels++
	}
}

func project(ld *ladder, depth int) []domain.SnapshotLevel {
	n := ld.len()
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]domain.SnapshotLevel, n)
	for i := 0; i < n; i++ {
		out[i] = domain.SnapshotLevel{
			Price: ld.levels[i].price,
			Size:  ld.levels[i].size,
		}
	}
	return out
}
