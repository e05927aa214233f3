package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// routeCacheTTL bounds how long one routing answer is reused across the fee
// tiers of a single analysis.
const routeCacheTTL = 2 * time.Second

// LiveAggregator asks the Uniswap routing API for its best v3 route and
// reports it for the fee tier that route actually uses. Other tiers come back
// as reverts: the aggregator did not find them worth routing through.
type LiveAggregator struct {
	httpClient *http.Client
	url        string
	apiKey     string
	chainID    uint64

	flight singleflight.Group
	mu     sync.Mutex
	cache  map[string]cachedRoute
	ttl    time.Duration
	now    func() time.Time
}

type cachedRoute struct {
	resp    *aggregatorResponse
	err     error
	expires time.Time
}

// NewLiveAggregator creates a new LiveAggregator.
func NewLiveAggregator(httpClient *http.Client, url, apiKey string, chainID uint64) (*LiveAggregator, error) {
	if url == "" {
		return nil, errors.New("aggregator url is required")
	}
	if apiKey == "" {
		return nil, errors.New("aggregator api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LiveAggregator{
		httpClient: httpClient,
		url:        url,
		apiKey:     apiKey,
		chainID:    chainID,
		cache:      make(map[string]cachedRoute),
		ttl:        routeCacheTTL,
		now:        time.Now,
	}, nil
}

func (a *LiveAggregator) Name() string {
	return "aggregator"
}

type aggregatorRequest struct {
	TokenIn           string   `json:"tokenIn"`
	TokenInChainID    uint64   `json:"tokenInChainId"`
	TokenOut          string   `json:"tokenOut"`
	TokenOutChainID   uint64   `json:"tokenOutChainId"`
	Amount            string   `json:"amount"`
	Type              string   `json:"type"`
	Protocols         []string `json:"protocols"`
	SlippageTolerance int      `json:"slippageTolerance"`
}

type aggregatorPool struct {
	Type         string `json:"type"`
	Fee          string `json:"fee"`
	SqrtRatioX96 string `json:"sqrtRatioX96"`
}

type aggregatorResponse struct {
	Quote          string             `json:"quote"`
	GasUseEstimate string             `json:"gasUseEstimate"`
	Route          [][]aggregatorPool `json:"route"`
	ErrorCode      string             `json:"errorCode"`
	Detail         string             `json:"detail"`
}

// Quote requests an exact-input v3 quote and matches it against req.Fee.
// Requests for the same token pair and amount share one routing answer.
func (a *LiveAggregator) Quote(ctx context.Context, req Request) (*Result, error) {
	parsed, err := a.bestRoute(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(parsed.Route) != 1 || len(parsed.Route[0]) != 1 {
		return nil, &RevertError{Reason: "best route is not a single v3 pool"}
	}
	pool := parsed.Route[0][0]
	fee, err := strconv.ParseUint(pool.Fee, 10, 32)
	if err != nil || !strings.HasPrefix(pool.Type, "v3") {
		return nil, &RevertError{Reason: "best route is not a v3 pool"}
	}
	if uint32(fee) != uint32(req.Fee) {
		return nil, &RevertError{Reason: fmt.Sprintf("best route uses fee %d", fee)}
	}

	amountOut, ok := new(big.Int).SetString(parsed.Quote, 10)
	if !ok {
		return nil, &RevertError{Reason: "quote is not an integer"}
	}
	gas, err := strconv.ParseUint(parsed.GasUseEstimate, 10, 64)
	if err != nil {
		gas = 0
	}
	sqrtAfter, ok := new(big.Int).SetString(pool.SqrtRatioX96, 10)
	if !ok {
		sqrtAfter = new(big.Int)
	}

	return &Result{
		AmountOut:         amountOut,
		SqrtPriceX96After: sqrtAfter,
		TicksCrossed:      1,
		GasEstimate:       gas,
	}, nil
}

func routeKey(req Request) string {
	return req.TokenIn.Address.Hex() + ":" + req.TokenOut.Address.Hex() + ":" + req.AmountIn.String()
}

// bestRoute returns the routing answer for req, from cache when fresh.
// Transport failures are not cached.
func (a *LiveAggregator) bestRoute(ctx context.Context, req Request) (*aggregatorResponse, error) {
	key := routeKey(req)

	if entry, ok := a.cached(key); ok {
		return entry.resp, entry.err
	}

	v, err, _ := a.flight.Do(key, func() (any, error) {
		// A flight that finished between the lookup above and Do has stored its answer.
		if entry, ok := a.cached(key); ok {
			return entry.resp, entry.err
		}
		resp, err := a.fetchRoute(ctx, req)
		if err != nil && !IsRevert(err) {
			return nil, err
		}
		a.store(key, cachedRoute{resp: resp, err: err, expires: a.now().Add(a.ttl)})
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*aggregatorResponse), nil
}

func (a *LiveAggregator) cached(key string) (cachedRoute, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key]
	if !ok || !a.now().Before(entry.expires) {
		return cachedRoute{}, false
	}
	return entry, true
}

func (a *LiveAggregator) store(key string, entry cachedRoute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for k, e := range a.cache {
		if !now.Before(e.expires) {
			delete(a.cache, k)
		}
	}
	a.cache[key] = entry
}

func (a *LiveAggregator) fetchRoute(ctx context.Context, req Request) (*aggregatorResponse, error) {
	body, err := json.Marshal(aggregatorRequest{
		TokenIn:           req.TokenIn.Address.Hex(),
		TokenInChainID:    a.chainID,
		TokenOut:          req.TokenOut.Address.Hex(),
		TokenOutChainID:   a.chainID,
		Amount:            req.AmountIn.String(),
		Type:              "EXACT_INPUT",
		Protocols:         []string{"v3"},
		SlippageTolerance: 50,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal aggregator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build aggregator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read aggregator response: %w", err)}
	}

	var parsed aggregatorResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransportError{Err: fmt.Errorf("aggregator status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		reason := parsed.ErrorCode
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &RevertError{Reason: reason}
	case decodeErr != nil:
		return nil, &TransportError{Err: fmt.Errorf("decode aggregator response: %w", decodeErr)}
	}
	return &parsed, nil
}
