package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfaulds/bookwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createEvent(id uint64, side domain.Side, price, size string) domain.Event {
	return domain.Event{
		Kind: domain.EventOrderCreated,
		Order: domain.Order{
			ID: id, Side: side,
			Price: d(price), Size: d(size),
		},
	}
}

func tradeEvent(id uint64, price, size string) domain.Event {
	return domain.Event{
		Kind: domain.EventTrade,
		Trade: domain.Trade{
			ID: id, Price: d(price), Size: d(size),
			Timestamp: time.Now().UTC(),
		},
	}
}

type fakeSink struct {
	mu    sync.Mutex
	snaps []domain.BookSnapshot
	err   error
}

func (f *fakeSink) Publish(_ context.Context, snap domain.BookSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

type fakeTradeStore struct {
	mu        sync.Mutex
	batches   [][]domain.Trade
	symbol    string
	insertErr error
}

func (f *fakeTradeStore) InsertBatch(_ context.Context, symbol string, trades []domain.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.symbol = symbol
	f.batches = append(f.batches, trades)
	return nil
}

func (f *fakeTradeStore) setInsertErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertErr = err
}

func (f *fakeTradeStore) GetLastTimestamp(context.Context, string) (time.Time, error) {
	return time.Time{}, domain.ErrNotFound
}

func (f *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeTradeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func newTestTracker(sinks []domain.SnapshotSink, trades domain.TradeStore) *Tracker {
	return New(Config{Symbol: "btcusd", Depth: 10, RenderInterval: 500 * time.Millisecond},
		sinks, trades, testLogger())
}

func TestApplyBuildsBook(t *testing.T) {
	tr := newTestTracker(nil, nil)
	tr.resetSession(context.Background(), "s1")

	tr.apply(createEvent(1, domain.Buy, "100", "0.5"))
	tr.apply(createEvent(2, domain.Sell, "101", "1"))

	snap := tr.Snapshot()
	assert.Equal(t, "btcusd", snap.Symbol)
	assert.Equal(t, "s1", snap.SessionID)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Bids[0].Price.Equal(d("100")))
	assert.True(t, snap.Asks[0].Price.Equal(d("101")))
}

func TestSessionResetDiscardsBook(t *testing.T) {
	tr := newTestTracker(nil, nil)
	tr.resetSession(context.Background(), "s1")
	tr.apply(createEvent(1, domain.Buy, "100", "0.5"))
	require.Len(t, tr.Snapshot().Bids, 1)

	tr.resetSession(context.Background(), "s2")

	snap := tr.Snapshot()
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
	assert.Equal(t, "s2", snap.SessionID)
}

func TestTradesBatchedUntilFlush(t *testing.T) {
	store := &fakeTradeStore{}
	tr := newTestTracker(nil, store)
	tr.resetSession(context.Background(), "s1")

	tr.apply(tradeEvent(1, "100", "0.1"))
	tr.apply(tradeEvent(2, "100.5", "0.2"))
	assert.Equal(t, 0, store.total(), "trades held until flush")

	tr.flushTrades(context.Background())
	assert.Equal(t, 2, store.total())
	assert.Equal(t, "btcusd", store.symbol)

	tr.flushTrades(context.Background())
	assert.Len(t, store.batches, 1, "empty flush is a no-op")
}

func TestTradeBatchSizeTriggersFlush(t *testing.T) {
	store := &fakeTradeStore{}
	tr := newTestTracker(nil, store)
	tr.resetSession(context.Background(), "s1")

	for i := 0; i < tradeBatchSize; i++ {
		tr.apply(tradeEvent(uint64(i+1), "100", "0.1"))
	}
	assert.Equal(t, tradeBatchSize, store.total())
	assert.Empty(t, tr.pending)
}

func TestFailedFlushRetainsBatchForResend(t *testing.T) {
	store := &fakeTradeStore{}
	store.setInsertErr(errors.New("connection refused"))
	tr := newTestTracker(nil, store)
	tr.resetSession(context.Background(), "s1")

	tr.apply(tradeEvent(1, "100", "0.1"))
	tr.flushTrades(context.Background())
	assert.Equal(t, 0, store.total())
	require.Len(t, tr.pending, 1, "failed batch stays pending")

	// Trades arriving between flushes join the retained batch.
	tr.apply(tradeEvent(2, "100.5", "0.2"))

	store.setInsertErr(nil)
	tr.flushTrades(context.Background())
	assert.Equal(t, 2, store.total())
	assert.Empty(t, tr.pending)
}

func TestFailedFlushDropsOldestBeyondCap(t *testing.T) {
	store := &fakeTradeStore{}
	store.setInsertErr(errors.New("connection refused"))
	tr := newTestTracker(nil, store)
	tr.resetSession(context.Background(), "s1")

	tr.pending = make([]domain.Trade, maxPendingTrades+5)
	for i := range tr.pending {
		tr.pending[i] = domain.Trade{ID: uint64(i + 1)}
	}

	tr.flushTrades(context.Background())
	require.Len(t, tr.pending, maxPendingTrades)
	assert.Equal(t, uint64(6), tr.pending[0].ID, "oldest trades dropped first")
}

func TestSessionResetFlushesPendingTrades(t *testing.T) {
	store := &fakeTradeStore{}
	tr := newTestTracker(nil, store)
	tr.resetSession(context.Background(), "s1")
	tr.apply(tradeEvent(1, "100", "0.1"))

	tr.resetSession(context.Background(), "s2")
	assert.Equal(t, 1, store.total())
}

func TestPublishFansOutAndSkipsFailingSink(t *testing.T) {
	good := &fakeSink{}
	bad := &fakeSink{err: errors.New("sink down")}
	tr := newTestTracker([]domain.SnapshotSink{bad, good}, nil)
	tr.resetSession(context.Background(), "s1")
	tr.apply(createEvent(1, domain.Buy, "100", "0.5"))

	tr.publish(context.Background())

	require.Equal(t, 1, good.count())
	assert.Len(t, good.snaps[0].Bids, 1)
}

func TestRunAppliesQueuedEventsInOrder(t *testing.T) {
	sink := &fakeSink{}
	tr := New(Config{Symbol: "btcusd", Depth: 10, RenderInterval: 20 * time.Millisecond},
		[]domain.SnapshotSink{sink}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()

	tr.HandleSession(ctx, "s1")
	tr.HandleEvent(ctx, createEvent(1, domain.Buy, "100", "0.5"))
	tr.HandleEvent(ctx, createEvent(2, domain.Buy, "100", "0.3"))
	tr.HandleEvent(ctx, domain.Event{
		Kind:  domain.EventOrderDeleted,
		Order: domain.Order{ID: 1, Side: domain.Buy, Price: d("100"), Size: d("0.5")},
	})

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		if len(sink.snaps) == 0 {
			return false
		}
		last := sink.snaps[len(sink.snaps)-1]
		return len(last.Bids) == 1 && last.Bids[0].Size.Equal(d("0.3"))
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

// A reset queued ahead of a session's events must be consumed ahead of them;
// otherwise the new session's first orders land on the stale book and are
// wiped by the reset.
func TestRunConsumesResetBeforeFollowingEvents(t *testing.T) {
	sink := &fakeSink{}
	tr := New(Config{Symbol: "btcusd", Depth: 10, RenderInterval: 20 * time.Millisecond},
		[]domain.SnapshotSink{sink}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()

	tr.HandleSession(ctx, "s1")
	tr.HandleEvent(ctx, createEvent(1, domain.Buy, "100", "0.5"))
	tr.HandleSession(ctx, "s2")
	tr.HandleEvent(ctx, createEvent(2, domain.Buy, "101", "0.7"))

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		if len(sink.snaps) == 0 {
			return false
		}
		last := sink.snaps[len(sink.snaps)-1]
		return last.SessionID == "s2" &&
			len(last.Bids) == 1 &&
			last.Bids[0].Price.Equal(d("101")) &&
			last.Bids[0].Size.Equal(d("0.7"))
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
