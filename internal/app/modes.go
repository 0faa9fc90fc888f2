package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfaulds/bookwatch/internal/domain"
	"github.com/mfaulds/bookwatch/internal/feed"
	"github.com/mfaulds/bookwatch/internal/render"
	"github.com/mfaulds/bookwatch/internal/tracker"
)

// WatchMode follows the live feed and renders the book to the terminal.
// Nothing is persisted.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	console := render.NewConsole(os.Stdout, "Bitstamp")
	return a.runPipeline(ctx, deps, []domain.SnapshotSink{console}, false)
}

// RecordMode follows the live feed and records: snapshots go to the Redis
// book cache and trades to PostgreSQL, with aged trades archived to blob
// storage. No console output.
func (a *App) RecordMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting record mode")

	return a.runPipeline(ctx, deps, []domain.SnapshotSink{deps.BookCache}, true)
}

// FullMode renders and records at the same time.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	console := render.NewConsole(os.Stdout, "Bitstamp")
	return a.runPipeline(ctx, deps, []domain.SnapshotSink{console, deps.BookCache}, true)
}

// runPipeline starts the tracker, the feed, and (when recording) the
// retention sweeper, and blocks until the first goroutine fails or the
// context is cancelled.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies, sinks []domain.SnapshotSink, record bool) error {
	var trades domain.TradeStore
	if record {
		trades = deps.TradeStore
	}

	trk := tracker.New(tracker.Config{
		Symbol:         a.cfg.Feed.Symbol,
		Depth:          a.cfg.Book.Depth,
		RenderInterval: a.cfg.Book.RenderInterval.Duration,
	}, sinks, trades, a.logger)

	wsFeed := feed.NewBitstampFeed(
		a.cfg.Feed.WsURL,
		a.cfg.Feed.Symbol,
		trk.HandleEvent,
		trk.HandleSession,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return trk.Run(ctx)
	})
	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})

	if record && a.cfg.Retention.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runRetention(ctx, deps.Archiver)
		})
	}

	return g.Wait()
}

// runRetention periodically archives trades older than the retention window.
func (a *App) runRetention(ctx context.Context, archiver domain.Archiver) error {
	interval := a.cfg.Retention.SweepInterval.Duration
	window := time.Duration(a.cfg.Retention.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-window)
			archived, err := archiver.ArchiveTrades(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "trade archive sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if archived > 0 {
				a.logger.InfoContext(ctx, "archived aged trades",
					slog.Int64("count", archived),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}
