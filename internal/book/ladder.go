package book

import (
	"sort"

	"github.com/shopspring/decimal"
)

// priceCmp orders two prices within one side of the book. It returns a
// negative value when a sorts strictly before b, zero when equal.
type priceCmp func(a, b decimal.Decimal) int

// bidCmp sorts descending: the highest bid is the best and comes first.
func bidCmp(a, b decimal.Decimal) int { return b.Cmp(a) }

// askCmp sorts ascending: the lowest ask is the best and comes first.
func askCmp(a, b decimal.Decimal) int { return a.Cmp(b) }

// ladder is one side of the book: price levels kept strictly monotonic under
// the side's comparator. The same implementation serves both sides; only the
// comparator differs.
type ladder struct {
	cmp    priceCmp
	levels []*level
}

func newLadder(cmp priceCmp) *ladder {
	return &ladder{cmp: cmp}
}

// search locates price in the ladder. It returns the index of the matching
// level and true, or the insertion position that keeps the ladder sorted and
// false.
func (ld *ladder) search(price decimal.Decimal) (int, bool) {
	i := sort.Search(len(ld.levels), func(i int) bool {
		return ld.cmp(ld.levels[i].price, price) >= 0
	})
	if i < len(ld.levels) && ld.levels[i].price.Equal(price) {
		return i, true
	}
	return i, false
}

// insertAt places lv at position i, as previously determined by search.
func (ld *ladder) insertAt(i int, lv *level) {
	ld.levels = append(ld.levels, nil)
	copy(ld.levels[i+1:], ld.levels[i:])
	ld.levels[i] = lv
}

// removeAt evicts the level at position i.
func (ld *ladder) removeAt(i int) {
	copy(ld.levels[i:], ld.levels[i+1:])
	ld.levels[len(ld.levels)-1] = nil
	ld.levels = ld.levels[:len(ld.levels)-1]
}

// best returns the first level of the ladder, or nil when empty.
func (ld *ladder) best() *level {
	if len(ld.levels) == 0 {
		return nil
	}
	return ld.levels[0]
}

func (ld *ladder) len() int { return len(ld.levels) }

// findOrder scans the ladder for the level holding the order with the given
// id. The changed path needs this because the event carries the order's new
// price, not the price it currently rests at.
func (ld *ladder) findOrder(id uint64) (int, bool) {
	for i, lv := range ld.levels {
		if lv.hasOrder(id) {
			return i, true
		}
	}
	return 0, false
}
