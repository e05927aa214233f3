package oracle

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by feeds that have nothing usable to serve.
var ErrNoPrice = errors.New("no reference price available")

// GasPricer is the subset of ethclient.Client used for gas pricing.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// PriceFeed supplies the native asset's USD price.
type PriceFeed interface {
	Name() string
	PriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Config holds the oracle call policy and fallbacks.
type Config struct {
	Timeout             time.Duration
	FallbackGasPriceWei *big.Int
	FallbackPriceUSD    decimal.Decimal
	Registry            prometheus.Registerer
}

// Oracle serves gas and reference prices. It never fails: any source error
// is logged and replaced by the configured fallback.
type Oracle struct {
	logger        *slog.Logger
	gas           GasPricer
	feed          PriceFeed
	timeout       time.Duration
	fallbackGas   *big.Int
	fallbackPrice decimal.Decimal
	fallbacks     *prometheus.CounterVec
}

// New creates a new Oracle. A nil gas or feed always serves the fallback.
func New(logger *slog.Logger, gas GasPricer, feed PriceFeed, cfg Config) *Oracle {
	o := &Oracle{
		logger:        logger,
		gas:           gas,
		feed:          feed,
		timeout:       cfg.Timeout,
		fallbackGas:   new(big.Int),
		fallbackPrice: cfg.FallbackPriceUSD,
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baseroute",
			Subsystem: "oracle",
			Name:      "fallbacks_total",
			Help:      "Oracle reads answered with the configured fallback.",
		}, []string{"kind"}),
	}
	if cfg.FallbackGasPriceWei != nil {
		o.fallbackGas.Set(cfg.FallbackGasPriceWei)
	}
	if cfg.Registry != nil {
		cfg.Registry.MustRegister(o.fallbacks)
	}
	return o
}

func (o *Oracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// GasPrice returns the current network gas price in wei.
func (o *Oracle) GasPrice(ctx context.Context) *big.Int {
	if o.gas == nil {
		o.fallbacks.WithLabelValues("gas").Inc()
		return new(big.Int).Set(o.fallbackGas)
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	price, err := o.gas.SuggestGasPrice(ctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		o.logger.Warn("Gas price unavailable, using fallback", "error", err, "fallbackWei", o.fallbackGas.String())
		o.fallbacks.WithLabelValues("gas").Inc()
		return new(big.Int).Set(o.fallbackGas)
	}
	return price
}

// ReferencePriceUSD returns the native asset's USD price.
func (o *Oracle) ReferencePriceUSD(ctx context.Context) decimal.Decimal {
	if o.feed == nil {
		o.fallbacks.WithLabelValues("price").Inc()
		return o.fallbackPrice
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	price, err := o.feed.PriceUSD(ctx)
	if err != nil || !price.IsPositive() {
		o.logger.Warn("Reference price unavailable, using fallback",
			"feed", o.feed.Name(), "error", err, "fallbackUSD", o.fallbackPrice.String())
		o.fallbacks.WithLabelValues("price").Inc()
		return o.fallbackPrice
	}
	return price
}
