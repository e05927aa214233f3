package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"baseroute/internal/model"

	"github.com/gorilla/websocket"
)

const krakenWSURL = "wss://ws.kraken.com"

// KrakenClient implements the ExchangeClient interface for Kraken.
type KrakenClient struct {
	logger *slog.Logger
	url    string
}

// NewKrakenClient creates a new KrakenClient. An empty url uses the public endpoint.
func NewKrakenClient(logger *slog.Logger, url string) *KrakenClient {
	if url == "" {
		url = krakenWSURL
	}
	return &KrakenClient{logger: logger.With("exchange", "kraken"), url: url}
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

// StartStream subscribes to the ticker channel for pair (e.g. "ETH/USD").
func (k *KrakenClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	if _, _, ok := strings.Cut(pair, "/"); !ok {
		return fmt.Errorf("invalid pair %q", pair)
	}
	return runStream(ctx, k.logger, k.url, pair, krakenSession{}, priceChan)
}

// krakenPair maps a pair to Kraken's naming, where bitcoin is XBT.
func krakenPair(pair string) string {
	base, quote, _ := strings.Cut(strings.ToUpper(pair), "/")
	if base == "BTC" {
		base = "XBT"
	}
	return base + "/" + quote
}

type krakenSession struct{}

type krakenSubscription struct {
	Event        string            `json:"event"`
	Pair         []string          `json:"pair"`
	Subscription map[string]string `json:"subscription"`
}

func (krakenSession) subscribe(c *websocket.Conn, pair string) error {
	return c.WriteJSON(krakenSubscription{
		Event:        "subscribe",
		Pair:         []string{krakenPair(pair)},
		Subscription: map[string]string{"name": "ticker"},
	})
}

type krakenTicker struct {
	Ask []json.RawMessage `json:"a"`
	Bid []json.RawMessage `json:"b"`
}

// parse handles ticker frames, [channelID, {"a": [...], "b": [...]}, "ticker", pair].
// Event objects (heartbeat, systemStatus, subscriptionStatus) are skipped.
func (krakenSession) parse(message []byte, pair string) (model.PriceTick, bool, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(message), []byte("[")) {
		var event struct {
			Event        string `json:"event"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return model.PriceTick{}, false, err
		}
		if event.Status == "error" {
			return model.PriceTick{}, false, fmt.Errorf("kraken %s: %s", event.Event, event.ErrorMessage)
		}
		return model.PriceTick{}, false, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return model.PriceTick{}, false, err
	}
	if len(frame) < 4 {
		return model.PriceTick{}, false, fmt.Errorf("short ticker frame: %d elements", len(frame))
	}
	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "ticker" {
		return model.PriceTick{}, false, nil
	}

	var t krakenTicker
	if err := json.Unmarshal(frame[1], &t); err != nil {
		return model.PriceTick{}, false, err
	}
	if len(t.Bid) == 0 || len(t.Ask) == 0 {
		return model.PriceTick{}, false, fmt.Errorf("ticker without bid or ask")
	}
	bid, err := krakenPrice(t.Bid[0])
	if err != nil {
		return model.PriceTick{}, false, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := krakenPrice(t.Ask[0])
	if err != nil {
		return model.PriceTick{}, false, fmt.Errorf("parse ask: %w", err)
	}
	return model.PriceTick{Exchange: "kraken", Pair: pair, Bid: bid, Ask: ask}, true, nil
}

func krakenPrice(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
