package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"baseroute/internal/model"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
)

// ExchangeClient defines the standard interface for all exchange ticker clients.
type ExchangeClient interface {
	GetName() string
	StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error
}

// session is the exchange-specific half of a stream: what to send after
// connecting and how to turn a frame into a tick.
type session interface {
	subscribe(c *websocket.Conn, pair string) error
	parse(message []byte, pair string) (model.PriceTick, bool, error)
}

// runStream dials url, runs s over the connection and reconnects with
// exponential backoff until ctx is cancelled.
func runStream(ctx context.Context, logger *slog.Logger, url, pair string, s session, priceChan chan<- model.PriceTick) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			logger.Info("Context cancelled, shutting down stream")
			return nil
		}

		logger.Info("Connecting to WebSocket", "url", url, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			err = s.subscribe(c, pair)
			if err == nil {
				backoff = initialBackoff
				logger.Info("Connected, streaming ticks", "pair", pair)
				err = readLoop(ctx, logger, c, pair, s, priceChan)
			}
			c.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("Stream interrupted, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// readLoop forwards parsed ticks until the connection fails or ctx ends.
func readLoop(ctx context.Context, logger *slog.Logger, c *websocket.Conn, pair string, s session, priceChan chan<- model.PriceTick) error {
	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		tick, ok, err := s.parse(message, pair)
		if err != nil {
			logger.Warn("Failed to parse message", "error", err)
			continue
		}
		if !ok {
			continue
		}
		tick.At = time.Now()

		select {
		case priceChan <- tick:
			logger.Debug("Sent price tick", "bid", tick.Bid, "ask", tick.Ask)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
