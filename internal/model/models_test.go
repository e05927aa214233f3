package model

import (
	"encoding/json"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeTier_Labels(t *testing.T) {
	assert.Equal(t, "0.01%", FeeTierLowest.Label())
	assert.Equal(t, "0.05%", FeeTierLow.Label())
	assert.Equal(t, "0.3%", FeeTierMedium.Label())
	assert.Equal(t, "1%", FeeTierHigh.Label())
	assert.Equal(t, 5.0, FeeTierLow.BasisPoints())
	assert.Equal(t, 0.3, FeeTierMedium.Percent())
}

func TestParseUnits(t *testing.T) {
	t.Run("valid amounts", func(t *testing.T) {
		v, err := ParseUnits("1000", 6)
		require.NoError(t, err)
		assert.Equal(t, "1000000000", v.String())

		v, err = ParseUnits("0.5", 18)
		require.NoError(t, err)
		assert.Equal(t, "500000000000000000", v.String())

		v, err = ParseUnits("1.23456789", 6)
		require.NoError(t, err)
		assert.Equal(t, "1234567", v.String(), "extra precision is truncated")
	})

	t.Run("invalid amounts", func(t *testing.T) {
		for _, in := range []string{"0", "-5", "abc", "", "NaN", "Inf", "0.0000001", "1e-1000000000", "1e80", "1e1000000", "1e1000000000"} {
			_, err := ParseUnits(in, 6)
			assert.True(t, errors.Is(err, ErrInvalidAmount), "input %q", in)
		}
	})
}

func TestParseUnits_Uint256Bound(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	v, err := ParseUnits(maxUint256.String(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, maxUint256.Cmp(v))

	overflow := new(big.Int).Add(maxUint256, big.NewInt(1))
	_, err = ParseUnits(overflow.String(), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Same magnitude expressed in whole tokens.
	_, err = ParseUnits("1e72", 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	v, err = ParseUnits("1e70", 6)
	require.NoError(t, err)
	assert.Equal(t, 77, len(v.String()))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0.000542", FormatUnits(big.NewInt(542000000000000), 18))
	assert.Equal(t, "1000", FormatUnits(big.NewInt(1000000000), 6))
	assert.Equal(t, "0", FormatUnits(nil, 6))
}

func TestAmount_JSON(t *testing.T) {
	big1, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	raw, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: NewAmount(big1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"123456789012345678901234567890"}`, string(raw))

	var decoded struct {
		A Amount `json:"a"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42}`), &decoded))
	assert.Equal(t, int64(42), decoded.A.Int64())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"4.2"}`), &decoded))
}

func TestNewTradeID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id := NewTradeID(now)
	assert.Regexp(t, regexp.MustCompile(`^TRD-[0-9A-Z]+-[0-9A-F]{8}$`), id)
	assert.NotEqual(t, id, NewTradeID(now), "random suffix differs for the same instant")
}

func TestClassifyExecution(t *testing.T) {
	tests := []struct {
		name      string
		predicted string
		actual    string
		quality   string
		ok        bool
	}{
		{"exact fill", "0.5", "0.5", QualityExcellent, true},
		{"better than predicted", "0.5", "0.51", QualityExcellent, true},
		{"within five percent", "1.0", "0.97", QualityGood, true},
		{"large shortfall", "1.0", "0.90", QualityReview, true},
		{"zero prediction", "0", "1", "", false},
		{"garbage", "abc", "1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quality, _, _, ok := ClassifyExecution(tt.predicted, tt.actual)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.quality, quality)
		})
	}

	_, score, variance, ok := ClassifyExecution("2", "1.9")
	require.True(t, ok)
	assert.Equal(t, "95.00", score.StringFixed(2))
	assert.Equal(t, "-5.0000", variance.StringFixed(4))
}

func TestTradeRecord_ApplyDefaultsAndValidate(t *testing.T) {
	trade := &TradeRecord{
		PairFrom:        "USDC",
		PairTo:          "WETH",
		AmountIn:        "1000",
		AmountOut:       "0.541",
		Type:            "Market",
		Route:           "USDC -> [0.05%] -> WETH",
		EffectiveRate:   "0.000541",
		GasCost:         "$0.0004",
		GasUsed:         "120000",
		PredictedOutput: "0.542",
		PriceImpact:     "-0.05%",
		TransactionHash: "0xabc",
		WalletAddress:   "0xdef",
	}
	trade.ApplyDefaults(time.Now())

	assert.NotEmpty(t, trade.TradeID)
	assert.Equal(t, DefaultNetwork, trade.Network)
	assert.Equal(t, DefaultTradeStatus, trade.Status)
	assert.Equal(t, QualityExcellent, trade.ExecutionQuality)
	assert.Equal(t, "99.82", trade.QualityScore)
	assert.NoError(t, trade.Validate())

	trade.PairTo = "usdc"
	assert.Error(t, trade.Validate())

	assert.ErrorContains(t, (&TradeRecord{}).Validate(), "tradeId")
}

func TestTradeRecord_Report(t *testing.T) {
	trade := &TradeRecord{
		TradeID:         "TRD-1",
		PredictedOutput: "1",
		AmountOut:       "0.96",
		RoutesAnalyzed:  []RouteQuote{{FeeTier: FeeTierLow, IsBest: true}, {FeeTier: FeeTierMedium}},
	}
	r := trade.Report()
	assert.Equal(t, "-4.0000", r.VariancePct)
	assert.Equal(t, "96.00", r.QualityScore)
	assert.Equal(t, QualityGood, r.Quality)
	assert.Equal(t, 2, r.RoutesCompared)
}
