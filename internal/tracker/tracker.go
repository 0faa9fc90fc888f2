// Package tracker runs the single-writer loop that owns the order book. All
// engine mutation happens on one goroutine: feed events are queued onto a
// channel and applied in order, and periodic snapshots are copied out to the
// configured sinks. Trade prints are batched and flushed to the trade store.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mfaulds/bookwatch/internal/book"
	"github.com/mfaulds/bookwatch/internal/domain"
)

const (
	// eventBufferSize is the depth of the inbound event queue. The feed
	// blocks when it fills, which applies backpressure instead of dropping.
	eventBufferSize = 4096

	// tradeBatchSize flushes the pending trade batch when it grows this big,
	// independent of the flush interval.
	tradeBatchSize = 100

	// maxPendingTrades bounds the batch kept across failed flushes. Beyond
	// this the oldest trades are dropped.
	maxPendingTrades = 10000

	tradeFlushInterval = 5 * time.Second
	statsLogInterval   = 60 * time.Second
)

// inbound is one queue entry: either a feed event or a session reset. Both
// travel on the same channel so a reset can never be consumed after events
// the feed delivered behind it.
type inbound struct {
	ev      domain.Event
	session string
	reset   bool
}

// Config holds the tracker's tunables.
type Config struct {
	Symbol         string
	Depth          int
	RenderInterval time.Duration
}

// Tracker consumes decoded feed events, maintains the book, and fans out
// periodic snapshots. The book and the pending trade batch are only touched
// from Run's goroutine.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	book      *book.Book
	sessionID string

	queue chan inbound

	sinks  []domain.SnapshotSink
	trades domain.TradeStore // nil in watch mode

	pending []domain.Trade
}

// New creates a tracker. sinks receive snapshots every RenderInterval; trades
// may be nil when trade recording is disabled.
func New(cfg Config, sinks []domain.SnapshotSink, trades domain.TradeStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "tracker")),
		book:   book.New(),
		queue:  make(chan inbound, eventBufferSize),
		sinks:  sinks,
		trades: trades,
	}
}

// HandleEvent queues a feed event for the run loop. It blocks when the queue
// is full so feed order is never reordered or dropped.
func (t *Tracker) HandleEvent(ctx context.Context, ev domain.Event) {
	select {
	case t.queue <- inbound{ev: ev}:
	case <-ctx.Done():
	}
}

// HandleSession signals that a new feed session has started. The reset rides
// the same queue as the events, so the run loop discards the current book
// before applying anything the new session delivers after it.
func (t *Tracker) HandleSession(ctx context.Context, sessionID string) {
	select {
	case t.queue <- inbound{session: sessionID, reset: true}:
	case <-ctx.Done():
	}
}

// Run applies events and publishes snapshots until ctx is cancelled. It is
// the only goroutine that touches the book.
func (t *Tracker) Run(ctx context.Context) error {
	render := time.NewTicker(t.renderInterval())
	defer render.Stop()
	flush := time.NewTicker(tradeFlushInterval)
	defer flush.Stop()
	statsLog := time.NewTicker(statsLogInterval)
	defer statsLog.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flushTrades(context.WithoutCancel(ctx))
			t.logStats()
			return ctx.Err()

		case in := <-t.queue:
			if in.reset {
				t.resetSession(ctx, in.session)
			} else {
				t.apply(in.ev)
			}

		case <-render.C:
			t.publish(ctx)

		case <-flush.C:
			t.flushTrades(ctx)

		case <-statsLog.C:
			t.logStats()
		}
	}
}

func (t *Tracker) renderInterval() time.Duration {
	if t.cfg.RenderInterval <= 0 {
		return 500 * time.Millisecond
	}
	return t.cfg.RenderInterval
}

// apply routes one event into the engine, collecting trade prints for the
// store along the way.
func (t *Tracker) apply(ev domain.Event) {
	t.book.Apply(ev)
	if ev.Kind == domain.EventTrade && t.trades != nil {
		t.pending = append(t.pending, ev.Trade)
		if len(t.pending) >= tradeBatchSize {
			t.flushTrades(context.Background())
		}
	}
}

// resetSession flushes what the old session still holds, then replaces the
// book. Queue order guarantees everything ahead of the reset belonged to the
// old connection.
func (t *Tracker) resetSession(ctx context.Context, sessionID string) {
	t.flushTrades(ctx)
	if t.sessionID != "" {
		t.logStats()
		t.logger.Info("starting new book session",
			slog.String("previous_session_id", t.sessionID),
			slog.String("session_id", sessionID),
		)
	}
	t.book = book.New()
	t.sessionID = sessionID
}

// publish snapshots the book and hands the copy to every sink. A failing sink
// is logged and skipped; one slow or broken sink must not stall the loop's
// view of the market.
func (t *Tracker) publish(ctx context.Context) {
	bids, asks := t.book.Snapshot(t.cfg.Depth)
	snap := domain.BookSnapshot{
		Symbol:    t.cfg.Symbol,
		SessionID: t.sessionID,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
	for _, sink := range t.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			t.logger.Error("snapshot sink failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// flushTrades inserts the pending batch. On failure the batch is kept for
// the next tick; the store's insert is idempotent, so resending it cannot
// create duplicates. The retained batch is capped, dropping oldest first.
func (t *Tracker) flushTrades(ctx context.Context) {
	if t.trades == nil || len(t.pending) == 0 {
		return
	}
	if err := t.trades.InsertBatch(ctx, t.cfg.Symbol, t.pending); err != nil {
		t.logger.Error("trade batch insert failed, batch retained",
			slog.Int("count", len(t.pending)),
			slog.String("error", err.Error()),
		)
		if excess := len(t.pending) - maxPendingTrades; excess > 0 {
			t.pending = t.pending[excess:]
			t.logger.Warn("pending trade batch over cap, dropped oldest",
				slog.Int("dropped", excess),
			)
		}
		return
	}
	t.logger.Debug("flushed trade batch", slog.Int("count", len(t.pending)))
	t.pending = nil
}

func (t *Tracker) logStats() {
	stats := t.book.Stats()
	bidLevels, askLevels := t.book.Depth()
	t.logger.Info("book stats",
		slog.String("session_id", t.sessionID),
		slog.Uint64("events_applied", stats.EventsApplied),
		slog.Uint64("stale_deletes", stats.StaleDeletes),
		slog.Uint64("swept_levels", stats.SweptLevels),
		slog.Int("bid_levels", bidLevels),
		slog.Int("ask_levels", askLevels),
	)
}

// Snapshot returns a point-in-time copy of the book outside the render tick.
// It must only be called from the run loop's goroutine, so it is exposed for
// tests rather than for concurrent readers.
func (t *Tracker) Snapshot() domain.BookSnapshot {
	bids, asks := t.book.Snapshot(t.cfg.Depth)
	return domain.BookSnapshot{
		Symbol:    t.cfg.Symbol,
		SessionID: t.sessionID,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
}
