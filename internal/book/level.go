// Package book implements the order-book maintenance engine: price levels
// aggregated per side, event application, crossing reconciliation, and the
// snapshot projection. The engine is not safe for concurrent use; it is owned
// by a single goroutine (see internal/tracker).
package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// level aggregates all resting orders at one price on one side. Constituent
// orders are kept sorted by id so lookup and removal are O(log n). The size
// field always equals the sum of the constituent orders' sizes.
type level struct {
	price  decimal.Decimal
	size   decimal.Decimal
	orders []domain.Order
}

func newLevel(o domain.Order) *level {
	return &level{
		price:  o.Price,
		size:   o.Size,
		orders: []domain.Order{o},
	}
}

// insertOrder adds o to the level. The caller guarantees o.Price equals the
// level's price. If an order with the same id is already present it is
// replaced wholesale, keeping the aggregate size consistent with the feed's
// latest view of that order.
func (l *level) insertOrder(o domain.Order) {
	i := sort.Search(len(l.orders), func(i int) bool {
		return l.orders[i].ID >= o.ID
	})
	if i < len(l.orders) && l.orders[i].ID == o.ID {
		l.size = l.size.Sub(l.orders[i].Size).Add(o.Size)
		l.orders[i] = o
		return
	}
	l.orders = append(l.orders, domain.Order{})
	copy(l.orders[i+1:], l.orders[i:])
	l.orders[i] = o
	l.size = l.size.Add(o.Size)
}

// removeOrder removes the order with the given id and returns its size. The
// second return is false when no such order rests at this level.
func (l *level) removeOrder(id uint64) (decimal.Decimal, bool) {
	i := sort.Search(len(l.orders), func(i int) bool {
		return l.orders[i].ID >= id
	})
	if i >= len(l.orders) || l.orders[i].ID != id {
		return decimal.Decimal{}, false
	}
	removed := l.orders[i].Size
	l.orders = append(l.orders[:i], l.orders[i+1:]...)
	l.size = l.size.Sub(removed)
	return removed, true
}

// hasOrder reports whether an order with the given id rests at this level.
func (l *level) hasOrder(id uint64) bool {
	i := sort.Search(len(l.orders), func(i int) bool {
		return l.orders[i].ID >= id
	})
	return i < len(l.orders) && l.orders[i].ID == id
}

// isEmpty reports whether the level holds no orders. An empty level must be
// evicted from its ladder immediately.
func (l *level) isEmpty() bool {
	return len(l.orders) == 0
}
