package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfaulds/bookwatch/internal/domain"
)

func level(price, size string) domain.SnapshotLevel {
	return domain.SnapshotLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestConsolePublish(t *testing.T) {
	var out strings.Builder
	c := NewConsole(&out, "Bitstamp")

	err := c.Publish(context.Background(), domain.BookSnapshot{
		Symbol: "btcusd",
		Bids: []domain.SnapshotLevel{
			level("43120.70", "0.5"),
			level("43120.00", "1.25"),
		},
		Asks: []domain.SnapshotLevel{
			level("43121.50", "0.75"),
		},
		Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	frame := out.String()
	assert.Contains(t, frame, "Bitstamp")
	assert.Contains(t, frame, "BTCUSD")
	assert.Contains(t, frame, "43120.7")
	assert.Contains(t, frame, "43121.5")
	assert.Contains(t, frame, "0.50000000")
	assert.Contains(t, frame, "mid 43121.10")

	// Best bid appears above the second bid.
	assert.Less(t, strings.Index(frame, "43120.7"), strings.Index(frame, "43120 "),
		"bids rendered best first")
}

func TestConsolePublishEmptyBook(t *testing.T) {
	var out strings.Builder
	c := NewConsole(&out, "Bitstamp")

	err := c.Publish(context.Background(), domain.BookSnapshot{
		Symbol:    "btcusd",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "mid")
}
