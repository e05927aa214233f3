package quote

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"baseroute/internal/model"

	"github.com/shopspring/decimal"
)

// simulatedPool describes the synthetic pool behind one fee tier.
type simulatedPool struct {
	depthUSD decimal.Decimal
	gas      uint64
}

var simulatedPools = map[model.FeeTier]simulatedPool{
	model.FeeTierLowest: {depthUSD: decimal.NewFromInt(2_000_000), gas: 110000},
	model.FeeTierLow:    {depthUSD: decimal.NewFromInt(50_000_000), gas: 145000},
	model.FeeTierMedium: {depthUSD: decimal.NewFromInt(20_000_000), gas: 120000},
	model.FeeTierHigh:   {depthUSD: decimal.NewFromInt(1_000_000), gas: 95000},
}

// SimulatedFallback produces deterministic quotes from static USD prices.
// It backs demo deployments where no RPC endpoint or API key is configured.
type SimulatedFallback struct {
	pricesUSD map[string]decimal.Decimal
}

// NewSimulatedFallback creates a provider from symbol -> USD price.
func NewSimulatedFallback(pricesUSD map[string]float64) (*SimulatedFallback, error) {
	if len(pricesUSD) == 0 {
		return nil, errors.New("simulated prices are required")
	}
	prices := make(map[string]decimal.Decimal, len(pricesUSD))
	for sym, p := range pricesUSD {
		if p <= 0 {
			continue
		}
		prices[strings.ToUpper(sym)] = decimal.NewFromFloat(p)
	}
	return &SimulatedFallback{pricesUSD: prices}, nil
}

func (s *SimulatedFallback) Name() string {
	return "simulated"
}

// Quote converts through USD, takes the pool fee, then applies constant-product
// slippage against the tier's synthetic depth.
func (s *SimulatedFallback) Quote(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}

	pool, ok := simulatedPools[req.Fee]
	if !ok {
		return nil, &RevertError{Reason: "no simulated pool for fee tier"}
	}
	priceIn, ok := s.pricesUSD[strings.ToUpper(req.TokenIn.Symbol)]
	if !ok {
		return nil, &RevertError{Reason: "no simulated price for " + req.TokenIn.Symbol}
	}
	priceOut, ok := s.pricesUSD[strings.ToUpper(req.TokenOut.Symbol)]
	if !ok {
		return nil, &RevertError{Reason: "no simulated price for " + req.TokenOut.Symbol}
	}

	amountIn := decimal.NewFromBigInt(req.AmountIn, -int32(req.TokenIn.Decimals))
	valueUSD := amountIn.Mul(priceIn)
	afterFee := valueUSD.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromInt(int64(req.Fee)).Shift(-6)))

	// x*y=k against depth/2 on each side: out = in * R / (R + in).
	reserve := pool.depthUSD.Div(decimal.NewFromInt(2))
	filledUSD := afterFee.Mul(reserve).Div(reserve.Add(afterFee))

	amountOut := filledUSD.Div(priceOut).Shift(int32(req.TokenOut.Decimals)).Truncate(0).BigInt()
	if amountOut.Sign() <= 0 {
		return nil, &RevertError{Reason: "insufficient simulated liquidity"}
	}

	ticks := uint32(1)
	if valueUSD.GreaterThan(reserve.Div(decimal.NewFromInt(100))) {
		ticks = 3
	}

	return &Result{
		AmountOut:         amountOut,
		SqrtPriceX96After: new(big.Int),
		TicksCrossed:      ticks,
		GasEstimate:       pool.gas,
	}, nil
}
