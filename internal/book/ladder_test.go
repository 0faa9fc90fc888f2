package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfaulds/bookwatch/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLadderSearchAndInsert(t *testing.T) {
	ld := newLadder(askCmp)

	for _, p := range []string{"101", "99", "100"} {
		i, found := ld.search(d(p))
		require.False(t, found)
		ld.insertAt(i, newLevel(domain.Order{ID: 1, Price: d(p), Size: d("1")}))
	}

	require.Equal(t, 3, ld.len())
	assert.True(t, ld.levels[0].price.Equal(d("99")))
	assert.True(t, ld.levels[1].price.Equal(d("100")))
	assert.True(t, ld.levels[2].price.Equal(d("101")))

	i, found := ld.search(d("100"))
	assert.True(t, found)
	assert.Equal(t, 1, i)

	_, found = ld.search(d("100.5"))
	assert.False(t, found)
}

func TestLadderBidOrdering(t *testing.T) {
	ld := newLadder(bidCmp)

	for id, p := range []string{"99", "101", "100"} {
		i, found := ld.search(d(p))
		require.False(t, found)
		ld.insertAt(i, newLevel(domain.Order{ID: uint64(id), Price: d(p), Size: d("1")}))
	}

	assert.True(t, ld.best().price.Equal(d("101")), "best bid is the highest price")
	assert.True(t, ld.levels[2].price.Equal(d("99")))
}

func TestLadderRemoveAt(t *testing.T) {
	ld := newLadder(askCmp)
	for id, p := range []string{"99", "100", "101"} {
		i, _ := ld.search(d(p))
		ld.insertAt(i, newLevel(domain.Order{ID: uint64(id), Price: d(p), Size: d("1")}))
	}

	ld.removeAt(0)
	require.Equal(t, 2, ld.len())
	assert.True(t, ld.best().price.Equal(d("100")))

	ld.removeAt(1)
	require.Equal(t, 1, ld.len())
	assert.True(t, ld.best().price.Equal(d("100")))
}

func TestLadderFindOrder(t *testing.T) {
	ld := newLadder(bidCmp)
	i, _ := ld.search(d("100"))
	ld.insertAt(i, newLevel(domain.Order{ID: 7, Price: d("100"), Size: d("1")}))
	i, _ = ld.search(d("99"))
	ld.insertAt(i, newLevel(domain.Order{ID: 8, Price: d("99"), Size: d("1")}))

	idx, ok := ld.findOrder(8)
	require.True(t, ok)
	assert.True(t, ld.levels[idx].price.Equal(d("99")))

	_, ok = ld.findOrder(9)
	assert.False(t, ok)
}

func TestLevelInsertRemove(t *testing.T) {
	lv := newLevel(domain.Order{ID: 5, Price: d("100"), Size: d("0.5")})
	lv.insertOrder(domain.Order{ID: 3, Price: d("100"), Size: d("0.25")})
	lv.insertOrder(domain.Order{ID: 9, Price: d("100"), Size: d("1")})

	assert.True(t, lv.size.Equal(d("1.75")))
	assert.Equal(t, uint64(3), lv.orders[0].ID, "orders kept sorted by id")

	removed, ok := lv.removeOrder(5)
	require.True(t, ok)
	assert.True(t, removed.Equal(d("0.5")))
	assert.True(t, lv.size.Equal(d("1.25")))

	_, ok = lv.removeOrder(5)
	assert.False(t, ok)
	assert.False(t, lv.isEmpty())

	lv.removeOrder(3)
	lv.removeOrder(9)
	assert.True(t, lv.isEmpty())
	assert.True(t, lv.size.IsZero())
}

func TestLevelReplacesDuplicateID(t *testing.T) {
	lv := newLevel(domain.Order{ID: 5, Price: d("100"), Size: d("0.5")})
	lv.insertOrder(domain.Order{ID: 5, Price: d("100"), Size: d("0.8")})

	assert.Len(t, lv.orders, 1)
	assert.True(t, lv.size.Equal(d("0.8")))
}
