package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// BookCache implements domain.BookCache using Redis sorted sets and hashes.
// Prices are stored twice: as sorted-set members scored by their float value
// for range queries, and as exact decimal strings in the size hashes.
//
// Key schema:
//
//	book:{symbol}:bids     - sorted set of bid prices (score = price)
//	book:{symbol}:asks     - sorted set of ask prices (score = price)
//	book:{symbol}:bid:size - hash mapping price -> size for bids
//	book:{symbol}:ask:size - hash mapping price -> size for asks
//	book:{symbol}:bbo      - hash with fields "bid" and "ask"
//	book:{symbol}:meta     - hash with "ts" and "session" fields
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given client.
func NewBookCache(rdb *redis.Client) *BookCache {
	return &BookCache{rdb: rdb}
}

var (
	_ domain.BookCache    = (*BookCache)(nil)
	_ domain.SnapshotSink = (*BookCache)(nil)
)

func bookBidsKey(symbol string) string    { return "book:" + symbol + ":bids" }
func bookAsksKey(symbol string) string    { return "book:" + symbol + ":asks" }
func bookBidSizeKey(symbol string) string { return "book:" + symbol + ":bid:size" }
func bookAskSizeKey(symbol string) string { return "book:" + symbol + ":ask:size" }
func bookBBOKey(symbol string) string     { return "book:" + symbol + ":bbo" }
func bookMetaKey(symbol string) string    { return "book:" + symbol + ":meta" }

// SetSnapshot atomically replaces the cached book for a symbol. Existing keys
// are cleared and repopulated in a single transaction so readers never see a
// half-written book.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.BookSnapshot) error {
	symbol := snap.Symbol
	bidsKey := bookBidsKey(symbol)
	asksKey := bookAsksKey(symbol)
	bidSizeKey := bookBidSizeKey(symbol)
	askSizeKey := bookAskSizeKey(symbol)
	bboKey := bookBBOKey(symbol)
	metaKey := bookMetaKey(symbol)

	pipe := bc.rdb.TxPipeline()

	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey)

	for _, lvl := range snap.Bids {
		priceStr := lvl.Price.String()
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: priceStr})
		pipe.HSet(ctx, bidSizeKey, priceStr, lvl.Size.String())
	}
	for _, lvl := range snap.Asks {
		priceStr := lvl.Price.String()
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: priceStr})
		pipe.HSet(ctx, askSizeKey, priceStr, lvl.Size.String())
	}

	if bid, ok := snap.BestBid(); ok {
		pipe.HSet(ctx, bboKey, "bid", bid.Price.String())
	}
	if ask, ok := snap.BestAsk(); ok {
		pipe.HSet(ctx, bboKey, "ask", ask.Price.String())
	}

	pipe.HSet(ctx, metaKey,
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
		"session", snap.SessionID,
	)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", symbol, err)
	}
	return nil
}

// GetSnapshot reconstructs a BookSnapshot from the cache. It returns
// domain.ErrNotFound when no snapshot exists for the symbol.
func (bc *BookCache) GetSnapshot(ctx context.Context, symbol string) (domain.BookSnapshot, error) {
	pipe := bc.rdb.Pipeline()

	bidsCmd := pipe.ZRevRange(ctx, bookBidsKey(symbol), 0, -1)
	asksCmd := pipe.ZRange(ctx, bookAsksKey(symbol), 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, bookBidSizeKey(symbol))
	askSizeCmd := pipe.HGetAll(ctx, bookAskSizeKey(symbol))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", symbol, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.BookSnapshot{
		Symbol:    symbol,
		SessionID: metaVals["session"],
	}
	if tsStr, ok := metaVals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			snap.Timestamp = time.Unix(0, tsNano).UTC()
		}
	}

	bidPrices, _ := bidsCmd.Result()
	bidSizes, _ := bidSizeCmd.Result()
	snap.Bids = buildLevels(bidPrices, bidSizes)

	askPrices, _ := asksCmd.Result()
	askSizes, _ := askSizeCmd.Result()
	snap.Asks = buildLevels(askPrices, askSizes)

	return snap, nil
}

// Publish lets the cache act as a snapshot sink.
func (bc *BookCache) Publish(ctx context.Context, snap domain.BookSnapshot) error {
	return bc.SetSnapshot(ctx, snap)
}

// buildLevels joins the ordered price list with the size hash, skipping
// entries whose stored strings no longer parse.
func buildLevels(prices []string, sizes map[string]string) []domain.SnapshotLevel {
	levels := make([]domain.SnapshotLevel, 0, len(prices))
	for _, priceStr := range prices {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(sizes[priceStr])
		if err != nil {
			continue
		}
		levels = append(levels, domain.SnapshotLevel{Price: price, Size: size})
	}
	return levels
}
