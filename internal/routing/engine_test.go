package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"baseroute/internal/model"
	"baseroute/internal/oracle"
	"baseroute/internal/quote"
	"baseroute/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQuoter struct {
	mock.Mock
}

func (m *MockQuoter) Name() string {
	return "mock"
}

func (m *MockQuoter) Quote(ctx context.Context, req quote.Request) (*quote.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*quote.Result)
	return res, args.Error(1)
}

// onFee registers a response for one fee tier.
func (m *MockQuoter) onFee(fee model.FeeTier, res *quote.Result, err error) {
	m.On("Quote", mock.Anything, mock.MatchedBy(func(r quote.Request) bool { return r.Fee == fee })).Return(res, err)
}

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) GasPrice(ctx context.Context) *big.Int {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int)
}

func (m *MockOracle) ReferencePriceUSD(ctx context.Context) decimal.Decimal {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal)
}

func newMockOracle() *MockOracle {
	o := new(MockOracle)
	o.On("GasPrice", mock.Anything).Return(big.NewInt(2_000_000_000))
	o.On("ReferencePriceUSD", mock.Anything).Return(decimal.NewFromInt(3500))
	return o
}

func noPool() error {
	return fmt.Errorf("%w: %w", quote.ErrTierUnavailable, &quote.RevertError{Reason: "pool does not exist"})
}

func result(amountOut int64, ticks uint32) *quote.Result {
	return &quote.Result{AmountOut: big.NewInt(amountOut), SqrtPriceX96After: big.NewInt(1), TicksCrossed: ticks, GasEstimate: 150_000}
}

func newTestEngine(q Quoter, o PriceOracle, reg prometheus.Registerer) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(logger, registry.NewBase(), q, o, Config{MaxConcurrency: 4, Registry: reg})
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestEngine_Analyze_RanksTiers(t *testing.T) {
	q := new(MockQuoter)
	q.onFee(model.FeeTierLowest, nil, noPool())
	q.onFee(model.FeeTierLow, result(542_000_000_000_000, 1), nil)
	q.onFee(model.FeeTierMedium, result(541_000_000_000_000, 1), nil)
	q.onFee(model.FeeTierHigh, result(538_000_000_000_000, 2), nil)
	o := newMockOracle()

	res, err := newTestEngine(q, o, nil).Analyze(context.Background(), "USDC", "WETH", "1000")
	require.NoError(t, err)

	require.Len(t, res.Routes, 3)
	assert.Equal(t, model.FeeTierLow, res.Routes[0].FeeTier)
	assert.Equal(t, model.FeeTierMedium, res.Routes[1].FeeTier)
	assert.Equal(t, model.FeeTierHigh, res.Routes[2].FeeTier)

	assert.True(t, res.Routes[0].IsBest)
	assert.False(t, res.Routes[1].IsBest)
	assert.False(t, res.Routes[2].IsBest)
	require.NotNil(t, res.Best)
	assert.Equal(t, res.Routes[0], *res.Best)

	best := res.Routes[0]
	assert.Equal(t, "542000000000000", best.AmountOut.String())
	assert.Equal(t, "0.000542", best.AmountOutFormatted)
	assert.Equal(t, "0.05%", best.FeeLabel)
	assert.Equal(t, "USDC -> [0.05%] -> WETH", best.Route)
	assert.Equal(t, "-0.05%", best.PriceImpactLabel)
	// 150k gas at 2 gwei is 0.0003 ETH, at 3500 USD.
	assert.Equal(t, "$1.0500", best.GasCostUSD)

	assert.Equal(t, "~-1.00%", res.Routes[2].PriceImpactLabel)
	assert.Equal(t, "1000000000", res.AmountInBaseUnits.String())
	assert.Equal(t, "3500.00", res.ReferencePriceUSD)
	assert.Equal(t, "2000000000", res.GasPriceWei.String())
	assert.Equal(t, "usdc-weth", res.Pair.ID)
	assert.Equal(t, "mock", res.Provider)

	q.AssertNumberOfCalls(t, "Quote", 4)
	o.AssertExpectations(t)
}

func TestEngine_Analyze_NoLiquidity(t *testing.T) {
	reg := prometheus.NewRegistry()
	q := new(MockQuoter)
	q.On("Quote", mock.Anything, mock.Anything).Return(nil, noPool())

	e := newTestEngine(q, newMockOracle(), reg)
	_, err := e.Analyze(context.Background(), "USDC", "WETH", "1000")
	assert.ErrorIs(t, err, ErrNoLiquidity)
	q.AssertNumberOfCalls(t, "Quote", 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.analyses.WithLabelValues("no_liquidity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.droppedTiers.WithLabelValues("3000")))
}

func TestEngine_Analyze_CancelledRequestIsNotNoLiquidity(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := new(MockQuoter)
	q.On("Quote", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: %w", quote.ErrTierUnavailable, context.Canceled))

	e := newTestEngine(q, newMockOracle(), reg)
	_, err := e.Analyze(ctx, "USDC", "WETH", "1000")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoLiquidity)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.analyses.WithLabelValues("aborted")))
}

type failingGasPricer struct{}

func (failingGasPricer) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("rpc unreachable")
}

type failingFeed struct{}

func (failingFeed) Name() string { return "failing" }

func (failingFeed) PriceUSD(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("feed down")
}

func TestEngine_Analyze_OracleFailuresUseFallbacks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prices := oracle.New(logger, failingGasPricer{}, failingFeed{}, oracle.Config{
		Timeout:             time.Second,
		FallbackGasPriceWei: big.NewInt(1_000_000),
		FallbackPriceUSD:    decimal.NewFromInt(3500),
	})

	q := new(MockQuoter)
	q.onFee(model.FeeTierLowest, nil, noPool())
	q.onFee(model.FeeTierLow, result(542_000_000_000_000, 1), nil)
	q.onFee(model.FeeTierMedium, nil, noPool())
	q.onFee(model.FeeTierHigh, nil, noPool())

	res, err := newTestEngine(q, prices, nil).Analyze(context.Background(), "USDC", "WETH", "1000")
	require.NoError(t, err)
	assert.Equal(t, "1000000", res.GasPriceWei.String())
	assert.Equal(t, "3500.00", res.ReferencePriceUSD)
	require.Len(t, res.Routes, 1)
	// 150k gas at 1e6 wei is 1.5e-7 ETH, at 3500 USD.
	assert.Equal(t, "$0.0005", res.Routes[0].GasCostUSD)
}

func TestEngine_Analyze_TieBreaksOnLowerFee(t *testing.T) {
	q := new(MockQuoter)
	q.onFee(model.FeeTierLowest, nil, noPool())
	q.onFee(model.FeeTierLow, result(1_000, 1), nil)
	q.onFee(model.FeeTierMedium, result(1_000, 1), nil)
	q.onFee(model.FeeTierHigh, result(1_000, 1), nil)

	for i := 0; i < 5; i++ {
		res, err := newTestEngine(q, newMockOracle(), nil).Analyze(context.Background(), "USDC", "WETH", "1")
		require.NoError(t, err)
		require.Len(t, res.Routes, 3)
		assert.Equal(t, []model.FeeTier{model.FeeTierLow, model.FeeTierMedium, model.FeeTierHigh},
			[]model.FeeTier{res.Routes[0].FeeTier, res.Routes[1].FeeTier, res.Routes[2].FeeTier})
		assert.True(t, res.Routes[0].IsBest)
	}
}

func TestEngine_Analyze_InputErrors(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		amount  string
		wantErr error
	}{
		{name: "unknown token", from: "DOGE", to: "WETH", amount: "1", wantErr: ErrUnknownToken},
		{name: "unknown output token", from: "USDC", to: "PEPE", amount: "1", wantErr: ErrUnknownToken},
		{name: "same token", from: "USDC", to: "usdc", amount: "1", wantErr: ErrUnsupportedPair},
		{name: "unlisted pair", from: "LINK", to: "AAVE", amount: "1", wantErr: ErrUnsupportedPair},
		{name: "zero amount", from: "USDC", to: "WETH", amount: "0", wantErr: ErrInvalidAmount},
		{name: "negative amount", from: "USDC", to: "WETH", amount: "-3", wantErr: ErrInvalidAmount},
		{name: "not a number", from: "USDC", to: "WETH", amount: "ten", wantErr: ErrInvalidAmount},
		{name: "below smallest unit", from: "USDC", to: "WETH", amount: "0.0000001", wantErr: ErrInvalidAmount},
		{name: "beyond uint256", from: "USDC", to: "WETH", amount: "1e80", wantErr: ErrInvalidAmount},
		{name: "huge exponent", from: "USDC", to: "WETH", amount: "1e1000000", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(MockQuoter)
			o := new(MockOracle)

			_, err := newTestEngine(q, o, nil).Analyze(context.Background(), tt.from, tt.to, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
			q.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
			o.AssertNotCalled(t, "GasPrice", mock.Anything)
			o.AssertNotCalled(t, "ReferencePriceUSD", mock.Anything)
		})
	}
}

func TestEngine_Analyze_NativeTokenQuotesWrapped(t *testing.T) {
	reg := registry.NewBase()
	eth, err := reg.Lookup("ETH")
	require.NoError(t, err)
	weth, err := reg.Lookup("WETH")
	require.NoError(t, err)

	q := new(MockQuoter)
	q.On("Quote", mock.Anything, mock.MatchedBy(func(r quote.Request) bool {
		return r.TokenIn.Address == weth.Address && r.TokenIn.Symbol == eth.Symbol
	})).Return(result(1_800_000_000, 1), nil)

	res, err := newTestEngine(q, newMockOracle(), nil).Analyze(context.Background(), "eth", "usdc", "1")
	require.NoError(t, err)
	assert.Equal(t, "ETH", res.TokenIn.Symbol)
	assert.Equal(t, eth.Address, res.TokenIn.Address)
	assert.Equal(t, "ETH -> [0.01%] -> USDC", res.Routes[0].Route)
}

// countingQuoter tracks the peak number of concurrent calls.
type countingQuoter struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingQuoter) Name() string { return "counting" }

func (c *countingQuoter) Quote(ctx context.Context, req quote.Request) (*quote.Result, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return result(int64(req.Fee), 1), nil
}

func TestEngine_Analyze_BoundsConcurrency(t *testing.T) {
	q := &countingQuoter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(logger, registry.NewBase(), q, newMockOracle(), Config{MaxConcurrency: 2})

	res, err := e.Analyze(context.Background(), "WETH", "USDC", "1")
	require.NoError(t, err)
	assert.Len(t, res.Routes, 4)
	assert.LessOrEqual(t, q.peak.Load(), int32(2))
	// Output equals the fee here, so the highest tier ranks first.
	assert.Equal(t, model.FeeTierHigh, res.Best.FeeTier)
}

func TestPriceImpact_WorsensWithFee(t *testing.T) {
	for i := 1; i < len(model.FeeTiers); i++ {
		lower, higher := priceImpact(model.FeeTiers[i-1]), priceImpact(model.FeeTiers[i])
		assert.True(t, higher.LessThan(lower), "fee %s vs %s", model.FeeTiers[i], model.FeeTiers[i-1])
	}
}
