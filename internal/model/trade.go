package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Execution quality bands derived from actual vs predicted output.
const (
	QualityExcellent = "Excellent"
	QualityGood      = "Good"
	QualityReview    = "Review"
)

const (
	DefaultNetwork     = "Base L2"
	DefaultTradeStatus = "Completed"
)

// TradeRecord is a persisted, immutable record of an executed swap.
type TradeRecord struct {
	ID               int64        `json:"id" db:"id"`
	TradeID          string       `json:"tradeId" db:"trade_id"`
	Timestamp        time.Time    `json:"timestamp" db:"timestamp"`
	PairFrom         string       `json:"pairFrom" db:"pair_from"`
	PairTo           string       `json:"pairTo" db:"pair_to"`
	AmountIn         string       `json:"amountIn" db:"amount_in"`
	AmountOut        string       `json:"amountOut" db:"amount_out"`
	Type             string       `json:"type" db:"type"`
	Route            string       `json:"route" db:"route"`
	EffectiveRate    string       `json:"effectiveRate" db:"effective_rate"`
	GasCost          string       `json:"gasCost" db:"gas_cost"`
	GasUsed          string       `json:"gasUsed" db:"gas_used"`
	ExecutionQuality string       `json:"executionQuality" db:"execution_quality"`
	QualityScore     string       `json:"qualityScore" db:"quality_score"`
	PredictedOutput  string       `json:"predictedOutput" db:"predicted_output"`
	PriceImpact      string       `json:"priceImpact" db:"price_impact"`
	TransactionHash  string       `json:"transactionHash" db:"transaction_hash"`
	WalletAddress    string       `json:"walletAddress" db:"wallet_address"`
	Network          string       `json:"network" db:"network"`
	BlockNumber      *string      `json:"blockNumber" db:"block_number"`
	Status           string       `json:"status" db:"status"`
	RoutesAnalyzed   []RouteQuote `json:"routesAnalyzed" db:"routes_analyzed"`
}

// NewTradeID returns an identifier of the form TRD-<base36 unix millis>-<8 hex>.
func NewTradeID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("TRD-%s-%s",
		strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)),
		strings.ToUpper(suffix),
	)
}

// ExecutionReport compares the predicted output of a trade with what it actually received.
type ExecutionReport struct {
	TradeID         string       `json:"tradeId"`
	PredictedOutput string       `json:"predictedOutput"`
	ActualOutput    string       `json:"actualOutput"`
	VariancePct     string       `json:"variancePct"`
	QualityScore    string       `json:"qualityScore"`
	Quality         string       `json:"executionQuality"`
	RoutesCompared  int          `json:"routesCompared"`
	Routes          []RouteQuote `json:"routesAnalyzed"`
}

// ClassifyExecution scores actual against predicted output. The score is the
// percentage of the prediction that was realised; variance is the signed
// percentage difference. ok is false when either input is unusable.
func ClassifyExecution(predicted, actual string) (quality string, score, variance decimal.Decimal, ok bool) {
	p, err := decimal.NewFromString(strings.TrimSpace(predicted))
	if err != nil || !p.IsPositive() {
		return "", decimal.Zero, decimal.Zero, false
	}
	a, err := decimal.NewFromString(strings.TrimSpace(actual))
	if err != nil || a.IsNegative() {
		return "", decimal.Zero, decimal.Zero, false
	}

	hundred := decimal.NewFromInt(100)
	score = a.Div(p).Mul(hundred)
	variance = a.Sub(p).Div(p).Mul(hundred)

	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(99)):
		quality = QualityExcellent
	case score.GreaterThanOrEqual(decimal.NewFromInt(95)):
		quality = QualityGood
	default:
		quality = QualityReview
	}
	return quality, score, variance, true
}

// Report builds the compliance summary for a stored trade.
func (t *TradeRecord) Report() ExecutionReport {
	r := ExecutionReport{
		TradeID:         t.TradeID,
		PredictedOutput: t.PredictedOutput,
		ActualOutput:    t.AmountOut,
		QualityScore:    t.QualityScore,
		Quality:         t.ExecutionQuality,
		RoutesCompared:  len(t.RoutesAnalyzed),
		Routes:          t.RoutesAnalyzed,
	}
	if quality, score, variance, ok := ClassifyExecution(t.PredictedOutput, t.AmountOut); ok {
		r.VariancePct = variance.StringFixed(4)
		if r.QualityScore == "" {
			r.QualityScore = score.StringFixed(2)
		}
		if r.Quality == "" {
			r.Quality = quality
		}
	}
	return r
}

// ApplyDefaults fills fields the caller may omit. Quality is derived from
// predicted and actual output when not supplied.
func (t *TradeRecord) ApplyDefaults(now time.Time) {
	if t.TradeID == "" {
		t.TradeID = NewTradeID(now)
	}
	if t.Network == "" {
		t.Network = DefaultNetwork
	}
	if t.Status == "" {
		t.Status = DefaultTradeStatus
	}
	if t.ExecutionQuality == "" || t.QualityScore == "" {
		if quality, score, _, ok := ClassifyExecution(t.PredictedOutput, t.AmountOut); ok {
			if t.ExecutionQuality == "" {
				t.ExecutionQuality = quality
			}
			if t.QualityScore == "" {
				t.QualityScore = score.StringFixed(2)
			}
		}
	}
}

// Validate reports the first missing required field.
func (t *TradeRecord) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"tradeId", t.TradeID},
		{"pairFrom", t.PairFrom},
		{"pairTo", t.PairTo},
		{"amountIn", t.AmountIn},
		{"amountOut", t.AmountOut},
		{"type", t.Type},
		{"route", t.Route},
		{"effectiveRate", t.EffectiveRate},
		{"gasCost", t.GasCost},
		{"gasUsed", t.GasUsed},
		{"executionQuality", t.ExecutionQuality},
		{"qualityScore", t.QualityScore},
		{"predictedOutput", t.PredictedOutput},
		{"priceImpact", t.PriceImpact},
		{"transactionHash", t.TransactionHash},
		{"walletAddress", t.WalletAddress},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	if strings.EqualFold(t.PairFrom, t.PairTo) {
		return fmt.Errorf("pairFrom and pairTo must differ")
	}
	return nil
}
