package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"baseroute/internal/model"
	"baseroute/internal/quote"
	"baseroute/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoLiquidity means every fee tier was unavailable for the request.
	ErrNoLiquidity = errors.New("no liquidity for any fee tier")

	ErrUnknownToken    = registry.ErrUnknownToken
	ErrUnsupportedPair = registry.ErrUnsupportedPair
	ErrInvalidAmount   = model.ErrInvalidAmount
)

// Quoter is the quote client the engine fans out over.
type Quoter interface {
	Name() string
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

// PriceOracle supplies gas and reference prices. Implementations never fail.
type PriceOracle interface {
	GasPrice(ctx context.Context) *big.Int
	ReferencePriceUSD(ctx context.Context) decimal.Decimal
}

// Config tunes the engine.
type Config struct {
	// MaxConcurrency bounds in-flight tier quotes per request. Zero means one per tier.
	MaxConcurrency int
	// FeeTiers overrides the tiers queried; nil means model.FeeTiers.
	FeeTiers []model.FeeTier
	Registry prometheus.Registerer
}

// Engine discovers and ranks fee-tier routes for a token pair.
type Engine struct {
	logger         *slog.Logger
	registry       *registry.Registry
	quoter         Quoter
	oracle         PriceOracle
	tiers          []model.FeeTier
	maxConcurrency int
	metrics        *metrics
	now            func() time.Time
}

// NewEngine creates a new instance of the Engine.
func NewEngine(logger *slog.Logger, reg *registry.Registry, quoter Quoter, oracle PriceOracle, cfg Config) *Engine {
	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = model.FeeTiers
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = len(tiers)
	}
	return &Engine{
		logger:         logger,
		registry:       reg,
		quoter:         quoter,
		oracle:         oracle,
		tiers:          append([]model.FeeTier(nil), tiers...),
		maxConcurrency: limit,
		metrics:        newMetrics(cfg.Registry),
		now:            time.Now,
	}
}

// Analyze quotes amount of from into to across every fee tier and returns the
// routes ranked by output, best first. Input errors are reported before any
// network call.
func (e *Engine) Analyze(ctx context.Context, from, to, amount string) (*model.AnalysisResult, error) {
	start := time.Now()
	result, err := e.analyze(ctx, from, to, amount)
	e.metrics.observeAnalysis(err, time.Since(start))
	return result, err
}

func (e *Engine) analyze(ctx context.Context, from, to, amount string) (*model.AnalysisResult, error) {
	tokenIn, err := e.registry.Lookup(from)
	if err != nil {
		return nil, err
	}
	tokenOut, err := e.registry.Lookup(to)
	if err != nil {
		return nil, err
	}
	pair, err := e.registry.Pair(tokenIn.Symbol, tokenOut.Symbol)
	if err != nil {
		return nil, err
	}
	amountIn, err := model.ParseUnits(amount, tokenIn.Decimals)
	if err != nil {
		return nil, err
	}

	quoteIn, quoteOut := tokenIn, tokenOut
	quoteIn.Address = e.registry.QuoteAddress(tokenIn)
	quoteOut.Address = e.registry.QuoteAddress(tokenOut)

	// Oracle reads run alongside quoting and are joined before formatting.
	var (
		prices   errgroup.Group
		gasPrice *big.Int
		refPrice decimal.Decimal
	)
	prices.Go(func() error {
		gasPrice = e.oracle.GasPrice(ctx)
		return nil
	})
	prices.Go(func() error {
		refPrice = e.oracle.ReferencePriceUSD(ctx)
		return nil
	})

	results := make([]*quote.Result, len(e.tiers))
	var tiers errgroup.Group
	tiers.SetLimit(e.maxConcurrency)
	for i, fee := range e.tiers {
		i, fee := i, fee
		tiers.Go(func() error {
			res, err := e.quoter.Quote(ctx, quote.Request{
				TokenIn:  quoteIn,
				TokenOut: quoteOut,
				AmountIn: amountIn,
				Fee:      fee,
			})
			if err != nil {
				e.logger.Debug("Fee tier unavailable", "pair", pair.ID, "fee", fee, "error", err)
				e.metrics.tierDropped(fee)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = tiers.Wait()
	_ = prices.Wait()
	// Tiers that failed because the caller went away are not a liquidity result.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", pair.Label, err)
	}
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}

	routes := make([]model.RouteQuote, 0, len(results))
	for i, res := range results {
		if res == nil {
			continue
		}
		routes = append(routes, buildRoute(tokenIn, tokenOut, e.tiers[i], res, gasPrice, refPrice))
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLiquidity, pair.Label)
	}
	rankRoutes(routes)

	best := routes[0]
	e.logger.Info("Routes analyzed",
		"pair", pair.ID,
		"amountIn", amount,
		"routes", len(routes),
		"bestFee", best.FeeTier,
		"bestAmountOut", best.AmountOutFormatted,
	)

	return &model.AnalysisResult{
		Pair:              pair,
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amount,
		AmountInBaseUnits: model.NewAmount(amountIn),
		Routes:            routes,
		Best:              &best,
		ReferencePriceUSD: refPrice.StringFixed(2),
		GasPriceWei:       model.NewAmount(gasPrice),
		Provider:          e.quoter.Name(),
		Timestamp:         e.now().UTC(),
	}, nil
}

// rankRoutes sorts by output descending, lower fee first on equal output, and
// flags the head as best.
func rankRoutes(routes []model.RouteQuote) {
	sort.SliceStable(routes, func(i, j int) bool {
		if c := routes[i].AmountOut.Cmp(routes[j].AmountOut.Int); c != 0 {
			return c > 0
		}
		return routes[i].FeeTier < routes[j].FeeTier
	})
	for i := range routes {
		routes[i].IsBest = i == 0
	}
}

var weiPerEther = decimal.New(1, 18)

func buildRoute(tokenIn, tokenOut model.Token, fee model.FeeTier, res *quote.Result, gasPrice *big.Int, refPrice decimal.Decimal) model.RouteQuote {
	gasWei := new(big.Int).Mul(new(big.Int).SetUint64(res.GasEstimate), gasPrice)
	gasUSD := decimal.NewFromBigInt(gasWei, 0).Div(weiPerEther).Mul(refPrice)

	impact := priceImpact(fee)
	label := impact.StringFixed(2) + "%"
	if res.TicksCrossed > 1 {
		label = "~" + label
	}

	return model.RouteQuote{
		FeeTier:            fee,
		FeeLabel:           fee.Label(),
		AmountOut:          model.NewAmount(res.AmountOut),
		AmountOutFormatted: model.FormatUnits(res.AmountOut, tokenOut.Decimals),
		GasEstimate:        res.GasEstimate,
		GasCostUSD:         "$" + gasUSD.StringFixed(4),
		PriceImpact:        impact.InexactFloat64(),
		PriceImpactLabel:   label,
		Route:              fmt.Sprintf("%s -> [%s] -> %s", tokenIn.Symbol, fee.Label(), tokenOut.Symbol),
	}
}

// priceImpact reports the pool fee as a negative percentage, so a higher fee
// tier always reports a worse impact. It does not model depth.
func priceImpact(fee model.FeeTier) decimal.Decimal {
	return decimal.NewFromInt(int64(fee)).Shift(-4).Neg()
}
