package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// objectWriter is the slice of Writer the archiver needs.
type objectWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// TradeArchiver implements domain.Archiver: aged trades are exported from the
// trade store to JSONL objects in blob storage, then deleted from the store.
type TradeArchiver struct {
	symbol string
	store  domain.TradeStore
	writer objectWriter
	logger *slog.Logger
}

// NewTradeArchiver creates an archiver for one symbol's trades.
func NewTradeArchiver(symbol string, store domain.TradeStore, writer *Writer, logger *slog.Logger) *TradeArchiver {
	return &TradeArchiver{
		symbol: symbol,
		store:  store,
		writer: writer,
		logger: logger.With(slog.String("component", "trade_archiver")),
	}
}

var _ domain.Archiver = (*TradeArchiver)(nil)

// archivedTrade is the JSONL record format written to blob storage.
type archivedTrade struct {
	Symbol      string    `json:"symbol"`
	TradeID     uint64    `json:"trade_id"`
	Price       string    `json:"price"`
	Size        string    `json:"size"`
	BuyOrderID  uint64    `json:"buy_order_id"`
	SellOrderID uint64    `json:"sell_order_id"`
	TradedAt    time.Time `json:"traded_at"`
}

// archivePath returns the object key for one month's archive, e.g.
// "archive/trades/btcusd/2024-01.jsonl".
func (a *TradeArchiver) archivePath(month time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s.jsonl", a.symbol, month.Format("2006-01"))
}

// ArchiveTrades exports trades older than the cutoff, grouped into one JSONL
// object per calendar month, and deletes them from the store once every
// object has been written. The upload happens before the delete so a failed
// run loses nothing; rerunning overwrites the same objects.
func (a *TradeArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	byMonth := make(map[time.Time][]domain.Trade)
	for _, t := range trades {
		ts := t.Timestamp.UTC()
		month := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		byMonth[month] = append(byMonth[month], t)
	}

	for month, batch := range byMonth {
		buf, err := a.encodeJSONL(batch)
		if err != nil {
			return 0, err
		}

		path := a.archivePath(month)
		if int64(buf.Len()) > minPartSize {
			err = a.writer.PutMultipart(ctx, path, buf, minPartSize)
		} else {
			err = a.writer.Put(ctx, path, buf, "application/x-ndjson")
		}
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades: %w", err)
		}
		a.logger.Info("archived trade batch",
			slog.String("path", path),
			slog.Int("count", len(batch)),
		)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: delete after upload: %w", err)
	}
	return deleted, nil
}

func (a *TradeArchiver) encodeJSONL(trades []domain.Trade) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trades {
		rec := archivedTrade{
			Symbol:      a.symbol,
			TradeID:     t.ID,
			Price:       t.Price.String(),
			Size:        t.Size.String(),
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			TradedAt:    t.Timestamp.UTC(),
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("s3blob: encode archived trade %d: %w", t.ID, err)
		}
	}
	return &buf, nil
}
