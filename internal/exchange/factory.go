package exchange

import (
	"fmt"
	"log/slog"
)

// NewClient creates a new exchange client based on the given name.
// An empty url selects the exchange's public endpoint.
func NewClient(name string, logger *slog.Logger, url string) (ExchangeClient, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, url), nil
	case "binance":
		return NewBinanceClient(logger, url), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
