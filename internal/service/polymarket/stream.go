package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	"PolySentry/pkg/util"

	"github.com/gorilla/websocket"
)

// Stream implements TradeStream backed by the CLOB market websocket.
type Stream struct {
	url            string
	markets        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a Polymarket trade stream. An empty markets list
// subscribes to the full firehose.
func NewStream(url string, markets []string, reconnectDelay, pingInterval time.Duration) drepo.TradeStream {
	return &Stream{
		url:            url,
		markets:        markets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the websocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("polymarket connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	log.Printf("polymarket: connected")
	return nil
}

// Subscribe subscribes to the market trade channel.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("polymarket not connected")
	}
	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": s.markets,
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("polymarket: subscribed markets=%d", len(s.markets))
	return nil
}

// wsTrade is one trade frame. Numeric fields arrive as strings.
type wsTrade struct {
	EventType string `json:"event_type"`
	ID        string `json:"id"`
	Market    string `json:"market"`
	Outcome   string `json:"outcome"`
	Wallet    string `json:"proxy_wallet"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// Read streams trade events and errors. A closed errs channel means the
// read loop exited and the caller should Reconnect.
func (s *Stream) Read(ctx context.Context) (<-chan *models.TradeEvent, <-chan error) {
	events := make(chan *models.TradeEvent, 1024)
	errs := make(chan error, 1)

	// keepalive
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("polymarket conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("polymarket read: %w", err)
					return
				}
				for _, ev := range decodeTrades(b) {
					select {
					case events <- ev:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return events, errs
}

// decodeTrades parses a websocket frame into trade events. Frames that
// are not trades are ignored; malformed numerics produce zero values the
// normalizer will reject.
func decodeTrades(b []byte) []*models.TradeEvent {
	var frames []wsTrade
	if err := json.Unmarshal(b, &frames); err != nil {
		var single wsTrade
		if err := json.Unmarshal(b, &single); err != nil {
			return nil
		}
		frames = []wsTrade{single}
	}

	var out []*models.TradeEvent
	for _, f := range frames {
		if f.EventType != "" && f.EventType != "trade" && f.EventType != "last_trade_price" {
			continue
		}
		if f.ID == "" && f.Market == "" {
			continue
		}
		price, _ := strconv.ParseFloat(f.Price, 64)
		size, _ := strconv.ParseFloat(f.Size, 64)
		var ts time.Time
		if t, ok := util.ParseTime(f.Timestamp); ok {
			ts = t
		}
		out = append(out, &models.TradeEvent{
			ID:        f.ID,
			MarketID:  f.Market,
			Outcome:   f.Outcome,
			Wallet:    strings.ToLower(f.Wallet),
			Side:      models.Side(strings.ToUpper(f.Side)),
			Price:     price,
			Size:      size,
			AmountUSD: price * size,
			Timestamp: ts,
		})
	}
	return out
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the websocket connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
