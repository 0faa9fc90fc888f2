// Package feed runs the connection lifecycle around the Bitstamp WebSocket
// client: connect, subscribe, deliver events, reconnect with backoff.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfaulds/bookwatch/internal/domain"
	"github.com/mfaulds/bookwatch/internal/platform/bitstamp"
)

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// EventHandler is called for each decoded event, in feed order.
type EventHandler func(ctx context.Context, ev domain.Event)

// SessionHandler is called when a new feed session begins, before any of its
// events are delivered. Consumers rebuild per-session state (the book) here.
type SessionHandler func(ctx context.Context, sessionID string)

// BitstampFeed connects to the Bitstamp WebSocket, subscribes to the live
// orders and trades channels for one symbol, and invokes the handlers for
// each message. It reconnects on disconnect; each (re)connection is a fresh
// session with a new session ID.
type BitstampFeed struct {
	wsURL     string
	symbol    string
	onEvent   EventHandler
	onSession SessionHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewBitstampFeed creates a feed for the given symbol (e.g. "btcusd").
func NewBitstampFeed(wsURL, symbol string, onEvent EventHandler, onSession SessionHandler, logger *slog.Logger) *BitstampFeed {
	return &BitstampFeed{
		wsURL:     wsURL,
		symbol:    symbol,
		onEvent:   onEvent,
		onSession: onSession,
		logger:    logger.With(slog.String("component", "bitstamp_feed")),
		done:      make(chan struct{}),
	}
}

// Run connects and delivers events until ctx is cancelled, reconnecting with
// exponential backoff on disconnect.
func (f *BitstampFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		start := time.Now()
		err := f.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		// A session that lived for a while resets the backoff.
		if time.Since(start) > maxReconnectDelay {
			delay = reconnectDelay
		}
		f.logger.Warn("bitstamp feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runSession runs one connection to completion. The session handler fires
// before Connect so the consumer starts from an empty book and never mixes
// events across sessions.
func (f *BitstampFeed) runSession(ctx context.Context) error {
	sessionID := uuid.NewString()
	if f.onSession != nil {
		f.onSession(ctx, sessionID)
	}

	client := bitstamp.NewWSClient(f.wsURL, func(ev domain.Event) {
		if f.onEvent != nil {
			f.onEvent(ctx, ev)
		}
	})
	defer client.Close()

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx,
		bitstamp.OrdersChannel(f.symbol),
		bitstamp.TradesChannel(f.symbol),
	); err != nil {
		return err
	}
	f.logger.Info("bitstamp feed subscribed",
		slog.String("symbol", f.symbol),
		slog.String("session_id", sessionID),
	)

	return client.Wait(ctx)
}

// Close stops the feed.
func (f *BitstampFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
