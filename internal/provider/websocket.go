package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vnbacktest/internal/domain"
)

// WebSocketProvider implements the live-price half of the Provider
// interface for the live path spec.md §6 mentions but the simulator
// does not require; GetDailyHistory always returns an empty series.
// Grounded on Junivor-DoAn-Finpull's internal/service/finnhub/client.go.
type WebSocketProvider struct {
	URL string

	mu     sync.RWMutex
	conn   *websocket.Conn
	latest map[string]float64
}

func NewWebSocketProvider(url string) *WebSocketProvider {
	return &WebSocketProvider{URL: url, latest: make(map[string]float64)}
}

func (w *WebSocketProvider) Name() string { return "websocket" }

// Connect dials the feed and subscribes to symbols, then reads ticks
// into the latest-price cache until ctx is cancelled.
func (w *WebSocketProvider) Connect(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	for _, symbol := range symbols {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": symbol}); err != nil {
			return fmt.Errorf("websocket subscribe %s: %w", symbol, err)
		}
	}

	go w.readLoop(ctx, conn)
	return nil
}

type tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func (w *WebSocketProvider) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		default:
		}
		var t tick
		if err := conn.ReadJSON(&t); err != nil {
			return
		}
		w.mu.Lock()
		w.latest[t.Symbol] = t.Price
		w.mu.Unlock()
	}
}

func (w *WebSocketProvider) GetDailyHistory(_ context.Context, _ string, _, _ time.Time) (domain.Series, error) {
	return domain.Series{}, nil
}

func (w *WebSocketProvider) GetLastPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if price, ok := w.latest[symbol]; ok {
			out[symbol] = price
		}
	}
	return out, nil
}
