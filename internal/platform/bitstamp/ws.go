// Package bitstamp is a WebSocket client for the Bitstamp real-time data
// feed, plus the decoding of its wire messages into domain events.
package bitstamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfaulds/bookwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// EventHandler is called for every decoded feed event, in the order frames
// arrive on the socket.
type EventHandler func(domain.Event)

// WSClient is a WebSocket client for the Bitstamp live feed. It manages the
// connection, channel subscriptions, and keep-alive, and delivers decoded
// events to the registered handler from a single read goroutine so feed
// order is preserved.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// writeMu serializes all writes to the connection; gorilla/websocket
	// does not allow concurrent writers, and pings race with subscribes.
	writeMu sync.Mutex

	// Channels to restore on reconnect.
	subscriptions []string

	handler EventHandler

	// readErr receives the terminal error of the current read loop.
	readErr chan error
	done    chan struct{}
}

// NewWSClient creates a client for the given endpoint, e.g.
// "wss://ws.bitstamp.net". The handler must be set before Connect.
func NewWSClient(wsURL string, handler EventHandler) *WSClient {
	return &WSClient{
		wsURL:   wsURL,
		handler: handler,
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection, starts the read and ping
// loops, and restores any previous subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bitstamp/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bitstamp/ws: connect: %w", err)
	}
	w.conn = conn
	w.readErr = make(chan error, 1)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	for _, ch := range w.subscriptions {
		if err := w.sendCommand(conn, "bts:subscribe", ch); err != nil {
			return fmt.Errorf("bitstamp/ws: restore subscription %s: %w", ch, err)
		}
	}
	return nil
}

// Subscribe subscribes to the given channels (see OrdersChannel and
// TradesChannel) and remembers them for reconnection.
func (w *WSClient) Subscribe(ctx context.Context, channels ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bitstamp/ws: not connected")
	}
	for _, ch := range channels {
		if err := w.sendCommand(w.conn, "bts:subscribe", ch); err != nil {
			return fmt.Errorf("bitstamp/ws: subscribe %s: %w", ch, err)
		}
		w.subscriptions = append(w.subscriptions, ch)
	}
	return nil
}

// Wait blocks until the current connection's read loop terminates or ctx is
// done, and returns the cause.
func (w *WSClient) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-w.readErr:
		return err
	case <-w.done:
		return nil
	}
}

// Close shuts down the connection and stops the loops. Safe to call more
// than once.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		w.writeMu.Unlock()
		return w.conn.Close()
	}
	return nil
}

// sendCommand writes a subscribe/unsubscribe frame. Caller must hold w.mu.
func (w *WSClient) sendCommand(conn *websocket.Conn, event, channel string) error {
	data, err := json.Marshal(wsCommand{Event: event, Data: wsCommandData{Channel: channel}})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the connection fails, decoding each and
// handing it to the handler. The terminal error is published on readErr for
// Wait; reconnection policy belongs to the caller (internal/feed).
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
			case w.readErr <- fmt.Errorf("bitstamp/ws: read: %w", errors.Join(domain.ErrWSDisconnect, err)):
			default:
			}
			return
		}

		ev, err := DecodeMessage(raw)
		if err != nil {
			// Malformed frames are dropped; the feed occasionally sends
			// frames we do not model and none of them are fatal.
			continue
		}
		if w.handler != nil {
			w.handler(ev)
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
