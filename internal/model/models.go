package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceTick represents a single top-of-book update from an exchange ticker stream.
type PriceTick struct {
	Exchange string
	Pair     string
	Bid      float64
	Ask      float64
	At       time.Time
}

// Mid returns the midpoint between bid and ask.
func (t PriceTick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Token is an ERC-20 (or the native asset) supported by the registry.
type Token struct {
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Native   bool           `json:"native,omitempty"`
}

// TokenPair is an ordered, registry-listed trading pair.
type TokenPair struct {
	ID    string `json:"id"`
	From  Token  `json:"from"`
	To    Token  `json:"to"`
	Label string `json:"label"`
}

// FeeTier is a Uniswap V3 pool fee in hundredths of a basis point.
type FeeTier uint32

const (
	FeeTierLowest FeeTier = 100   // 0.01%
	FeeTierLow    FeeTier = 500   // 0.05%
	FeeTierMedium FeeTier = 3000  // 0.3%
	FeeTierHigh   FeeTier = 10000 // 1%
)

// FeeTiers is the fixed set of tiers queried for every analysis, lowest fee first.
var FeeTiers = []FeeTier{FeeTierLowest, FeeTierLow, FeeTierMedium, FeeTierHigh}

// BasisPoints returns the fee in basis points (500 -> 5).
func (f FeeTier) BasisPoints() float64 {
	return float64(f) / 100
}

// Percent returns the fee as a percentage (500 -> 0.05).
func (f FeeTier) Percent() float64 {
	return float64(f) / 10000
}

// Label renders the fee the way pool UIs do, e.g. "0.05%" or "1%".
func (f FeeTier) Label() string {
	return decimal.NewFromInt(int64(f)).Shift(-4).String() + "%"
}

// BigInt returns the tier as a uint24 ABI argument.
func (f FeeTier) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(f))
}

func (f FeeTier) String() string {
	return fmt.Sprintf("%d", uint32(f))
}

// RouteQuote is one ranked candidate execution path for an analysis.
type RouteQuote struct {
	FeeTier            FeeTier `json:"fee"`
	FeeLabel           string  `json:"feeLabel"`
	AmountOut          Amount  `json:"amountOut"`
	AmountOutFormatted string  `json:"amountOutFormatted"`
	GasEstimate        uint64  `json:"gasEstimate"`
	GasCostUSD         string  `json:"gasEstimateUSD"`
	PriceImpact        float64 `json:"priceImpactPct"`
	PriceImpactLabel   string  `json:"priceImpact"`
	Route              string  `json:"route"`
	IsBest             bool    `json:"isBest"`
}

// AnalysisResult is the ranked output of a single analyze request.
type AnalysisResult struct {
	Pair              TokenPair    `json:"pair"`
	TokenIn           Token        `json:"tokenIn"`
	TokenOut          Token        `json:"tokenOut"`
	AmountIn          string       `json:"amountIn"`
	AmountInBaseUnits Amount       `json:"amountInBaseUnits"`
	Routes            []RouteQuote `json:"routes"`
	Best              *RouteQuote  `json:"best"`
	ReferencePriceUSD string       `json:"ethPriceUSD"`
	GasPriceWei       Amount       `json:"gasPriceWei"`
	Provider          string       `json:"provider"`
	Timestamp         time.Time    `json:"timestamp"`
}
