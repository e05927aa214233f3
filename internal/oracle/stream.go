package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"baseroute/internal/exchange"
	"baseroute/internal/model"

	"github.com/shopspring/decimal"
)

// StreamFeed serves the mid price of the latest tick from an exchange stream
// while it is younger than maxAge.
type StreamFeed struct {
	logger *slog.Logger
	client exchange.ExchangeClient
	pair   string
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	latest model.PriceTick
}

// NewStreamFeed creates a new StreamFeed. Call Run to start consuming ticks.
func NewStreamFeed(logger *slog.Logger, client exchange.ExchangeClient, pair string, maxAge time.Duration) *StreamFeed {
	return &StreamFeed{
		logger: logger.With("feed", client.GetName()),
		client: client,
		pair:   pair,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (f *StreamFeed) Name() string {
	return f.client.GetName()
}

// Run streams ticks until ctx is cancelled.
func (f *StreamFeed) Run(ctx context.Context) error {
	ticks := make(chan model.PriceTick, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.client.StartStream(ctx, ticks, f.pair)
	}()

	for {
		select {
		case tick := <-ticks:
			f.Observe(tick)
		case err := <-errCh:
			f.logger.Info("Price stream stopped", "pair", f.pair, "error", err)
			return err
		}
	}
}

// Observe records tick as the latest price.
func (f *StreamFeed) Observe(tick model.PriceTick) {
	if tick.At.IsZero() {
		tick.At = f.now()
	}
	f.mu.Lock()
	f.latest = tick
	f.mu.Unlock()
}

// PriceUSD returns the latest mid price, or ErrNoPrice when it is missing or stale.
func (f *StreamFeed) PriceUSD(_ context.Context) (decimal.Decimal, error) {
	f.mu.RLock()
	tick := f.latest
	f.mu.RUnlock()

	if tick.At.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: no %s tick received yet", ErrNoPrice, f.pair)
	}
	if age := f.now().Sub(tick.At); f.maxAge > 0 && age > f.maxAge {
		return decimal.Zero, fmt.Errorf("%w: %s tick is %s old", ErrNoPrice, f.pair, age.Round(time.Millisecond))
	}
	return decimal.NewFromFloat(tick.Mid()), nil
}
