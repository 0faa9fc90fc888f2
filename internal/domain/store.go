package domain

import (
	"context"
	"io"
	"time"
)

// TradeStore persists trade prints.
type TradeStore interface {
	InsertBatch(ctx context.Context, symbol string, trades []Trade) error
	GetLastTimestamp(ctx context.Context, symbol string) (time.Time, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BookCache publishes book snapshots to a shared cache for out-of-process
// consumers.
type BookCache interface {
	SetSnapshot(ctx context.Context, snap BookSnapshot) error
	GetSnapshot(ctx context.Context, symbol string) (BookSnapshot, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged trade records out of the primary store into blob
// storage.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotSink consumes periodic book snapshots. Publish receives an immutable
// copy and must not assume it is called from any particular goroutine.
type SnapshotSink interface {
	Publish(ctx context.Context, snap BookSnapshot) error
}
