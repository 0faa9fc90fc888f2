package bitstamp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfaulds/bookwatch/internal/domain"
)

// Channel name prefixes for the Bitstamp live feeds.
const (
	ordersChannelPrefix = "live_orders_"
	tradesChannelPrefix = "live_trades_"
)

// OrdersChannel returns the live-orders channel name for a symbol, e.g.
// "live_orders_btcusd".
func OrdersChannel(symbol string) string { return ordersChannelPrefix + symbol }

// TradesChannel returns the live-trades channel name for a symbol, e.g.
// "live_trades_btcusd".
func TradesChannel(symbol string) string { return tradesChannelPrefix + symbol }

// wsCommand is an outbound subscribe/unsubscribe frame.
type wsCommand struct {
	Event string        `json:"event"`
	Data  wsCommandData `json:"data"`
}

type wsCommandData struct {
	Channel string `json:"channel"`
}

// wsMessage is the outer envelope of every inbound frame.
type wsMessage struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// orderPayload mirrors the data object of live_orders events. Bitstamp sends
// every numeric field twice, as a float and as a string; the string forms are
// authoritative and are what the decoder parses.
type orderPayload struct {
	ID             uint64  `json:"id"`
	IDStr          string  `json:"id_str"`
	OrderType      int     `json:"order_type"` // 0 = buy, 1 = sell
	Datetime       string  `json:"datetime"`
	Microtimestamp string  `json:"microtimestamp"`
	Amount         float64 `json:"amount"`
	AmountStr      string  `json:"amount_str"`
	Price          float64 `json:"price"`
	PriceStr       string  `json:"price_str"`
}

// tradePayload mirrors the data object of live_trades events.
type tradePayload struct {
	ID             uint64  `json:"id"`
	Amount         float64 `json:"amount"`
	AmountStr      string  `json:"amount_str"`
	Price          float64 `json:"price"`
	PriceStr       string  `json:"price_str"`
	BuyOrderID     uint64  `json:"buy_order_id"`
	SellOrderID    uint64  `json:"sell_order_id"`
	Timestamp      string  `json:"timestamp"`
	Microtimestamp string  `json:"microtimestamp"`
	Type           int     `json:"type"`
}

// DecodeMessage turns a raw frame into a domain event. Frames that are not
// order or trade events (subscription acks, heartbeats, unknown channels)
// decode to EventOther. Malformed payloads return domain.ErrBadMessage.
func DecodeMessage(raw []byte) (domain.Event, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Event{}, domain.ErrBadMessage
	}

	switch msg.Event {
	case "order_created", "order_changed", "order_deleted":
		var p orderPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return domain.Event{}, domain.ErrBadMessage
		}
		kind := domain.EventOrderCreated
		if msg.Event == "order_changed" {
			kind = domain.EventOrderChanged
		} else if msg.Event == "order_deleted" {
			kind = domain.EventOrderDeleted
		}
		return domain.Event{Kind: kind, Order: p.toDomain()}, nil

	case "trade":
		var p tradePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return domain.Event{}, domain.ErrBadMessage
		}
		return domain.Event{Kind: domain.EventTrade, Trade: p.toDomain()}, nil

	default:
		// bts:subscription_succeeded, bts:request_reconnect, anything new.
		return domain.Event{Kind: domain.EventOther}, nil
	}
}

func (p *orderPayload) toDomain() domain.Order {
	side := domain.Buy
	if p.OrderType == 1 {
		side = domain.Sell
	}
	return domain.Order{
		ID:             p.ID,
		Side:           side,
		Price:          parseDecimal(p.PriceStr, p.Price),
		Size:           parseDecimal(p.AmountStr, p.Amount),
		Datetime:       p.Datetime,
		Microtimestamp: p.Microtimestamp,
		PriceRaw:       p.PriceStr,
		SizeRaw:        p.AmountStr,
	}
}

func (p *tradePayload) toDomain() domain.Trade {
	return domain.Trade{
		ID:          p.ID,
		Price:       parseDecimal(p.PriceStr, p.Price),
		Size:        parseDecimal(p.AmountStr, p.Amount),
		BuyOrderID:  p.BuyOrderID,
		SellOrderID: p.SellOrderID,
		Timestamp:   parseMicrotimestamp(p.Microtimestamp),
	}
}

// parseDecimal prefers the string form of a numeric field; the float form is
// a fallback for frames that omit it.
func parseDecimal(s string, f float64) decimal.Decimal {
	if s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(f)
}

// parseMicrotimestamp converts Bitstamp's microsecond-precision string
// timestamp. A missing or malformed value yields the current time.
func parseMicrotimestamp(s string) time.Time {
	if us, err := strconv.ParseInt(s, 10, 64); err == nil && us > 0 {
		return time.UnixMicro(us).UTC()
	}
	return time.Now().UTC()
}
