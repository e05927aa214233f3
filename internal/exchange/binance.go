package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"baseroute/internal/model"

	"github.com/gorilla/websocket"
)

const binanceWSURL = "wss://stream.binance.com:9443/ws"

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	logger  *slog.Logger
	baseURL string
}

// NewBinanceClient creates a new BinanceClient. An empty baseURL uses the public endpoint.
func NewBinanceClient(logger *slog.Logger, baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = binanceWSURL
	}
	return &BinanceClient{logger: logger.With("exchange", "binance"), baseURL: baseURL}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream streams 24h ticker updates for pair (e.g. "ETH/USD").
// Binance has no USD books, so USD is quoted against USDT.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	symbol, err := binanceSymbol(pair)
	if err != nil {
		return err
	}
	url := strings.TrimRight(b.baseURL, "/") + "/" + symbol + "@ticker"
	return runStream(ctx, b.logger, url, pair, binanceSession{}, priceChan)
}

func binanceSymbol(pair string) (string, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(pair), "/")
	if !ok || base == "" || quote == "" {
		return "", fmt.Errorf("invalid pair %q", pair)
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return strings.ToLower(base + quote), nil
}

type binanceSession struct{}

// The stream endpoint is subscribed by URL.
func (binanceSession) subscribe(*websocket.Conn, string) error {
	return nil
}

type binanceTicker struct {
	Event string `json:"e"`
	Bid   string `json:"b"`
	Ask   string `json:"a"`
}

func (binanceSession) parse(message []byte, pair string) (model.PriceTick, bool, error) {
	var t binanceTicker
	if err := json.Unmarshal(message, &t); err != nil {
		return model.PriceTick{}, false, err
	}
	if t.Bid == "" || t.Ask == "" {
		return model.PriceTick{}, false, nil
	}
	bid, err := strconv.ParseFloat(t.Bid, 64)
	if err != nil {
		return model.PriceTick{}, false, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := strconv.ParseFloat(t.Ask, 64)
	if err != nil {
		return model.PriceTick{}, false, fmt.Errorf("parse ask: %w", err)
	}
	return model.PriceTick{Exchange: "binance", Pair: pair, Bid: bid, Ask: ask}, true, nil
}
