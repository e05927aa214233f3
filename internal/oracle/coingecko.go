package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// CoinGeckoFeed reads the USD price from the CoinGecko simple/price endpoint.
type CoinGeckoFeed struct {
	httpClient *http.Client
	endpoint   string
	coinID     string
}

// NewCoinGeckoFeed creates a feed for coinID (e.g. "ethereum").
func NewCoinGeckoFeed(httpClient *http.Client, endpoint, coinID string) *CoinGeckoFeed {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CoinGeckoFeed{httpClient: httpClient, endpoint: endpoint, coinID: coinID}
}

func (f *CoinGeckoFeed) Name() string {
	return "coingecko"
}

// PriceUSD performs one GET ?ids=<coin>&vs_currencies=usd.
func (f *CoinGeckoFeed) PriceUSD(ctx context.Context) (decimal.Decimal, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse coingecko url: %w", err)
	}
	q := u.Query()
	q.Set("ids", f.coinID)
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode coingecko response: %w", err)
	}
	price, ok := body[f.coinID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: coingecko has no usd price for %s", ErrNoPrice, f.coinID)
	}
	return price, nil
}
