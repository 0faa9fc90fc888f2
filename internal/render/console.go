// Package render draws book snapshots as a two-column terminal view.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// clearScreen moves the cursor home and clears below it, so successive frames
// overwrite each other instead of scrolling.
const clearScreen = "\x1b[H\x1b[2J"

// Console renders snapshots to a terminal. It implements domain.SnapshotSink.
type Console struct {
	out      io.Writer
	exchange string
}

// NewConsole creates a renderer writing to out, typically os.Stdout.
func NewConsole(out io.Writer, exchange string) *Console {
	return &Console{out: out, exchange: exchange}
}

var _ domain.SnapshotSink = (*Console)(nil)

// Publish draws one frame: a header line, then bids and asks side by side,
// best levels first.
func (c *Console) Publish(_ context.Context, snap domain.BookSnapshot) error {
	var b strings.Builder
	b.WriteString(clearScreen)

	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		c.exchange,
		strings.ToUpper(snap.Symbol),
		snap.Timestamp.Format("15:04:05.000"),
	)
	fmt.Fprintf(&b, "%-14s %-14s | %-14s %-14s\n", "BID SIZE", "BID", "ASK", "ASK SIZE")
	b.WriteString(strings.Repeat("-", 61))
	b.WriteByte('\n')

	rows := len(snap.Bids)
	if len(snap.Asks) > rows {
		rows = len(snap.Asks)
	}
	for i := 0; i < rows; i++ {
		bidSize, bidPrice := "", ""
		if i < len(snap.Bids) {
			bidSize = snap.Bids[i].Size.StringFixed(8)
			bidPrice = snap.Bids[i].Price.String()
		}
		askSize, askPrice := "", ""
		if i < len(snap.Asks) {
			askSize = snap.Asks[i].Size.StringFixed(8)
			askPrice = snap.Asks[i].Price.String()
		}
		fmt.Fprintf(&b, "%-14s %-14s | %-14s %-14s\n", bidSize, bidPrice, askPrice, askSize)
	}

	if mid, ok := snap.MidPrice(); ok {
		fmt.Fprintf(&b, "\nmid %s\n", mid.StringFixed(2))
	}

	_, err := io.WriteString(c.out, b.String())
	if err != nil {
		return fmt.Errorf("render: write frame: %w", err)
	}
	return nil
}
