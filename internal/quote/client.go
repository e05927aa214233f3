package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// ClientConfig tunes the call policy around a Provider.
type ClientConfig struct {
	// RetryDelay is the fixed pause before the single retry of a transient failure.
	RetryDelay time.Duration
	// CallTimeout bounds every attempt.
	CallTimeout time.Duration
	// RequestsPerSecond and Burst configure the token bucket shared by all
	// callers of this client. A non-positive rate disables limiting.
	RequestsPerSecond float64
	Burst             int
	Registry          prometheus.Registerer
}

// Client wraps a Provider with rate limiting, per-call timeouts and the
// retry-then-classify policy. It is safe for concurrent use.
type Client struct {
	logger      *slog.Logger
	provider    Provider
	limiter     *rate.Limiter
	retryDelay  time.Duration
	callTimeout time.Duration
	metrics     *Metrics
}

// NewClient creates a new Client around provider.
func NewClient(logger *slog.Logger, provider Provider, cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		logger:      logger.With("provider", provider.Name()),
		provider:    provider,
		limiter:     rate.NewLimiter(limit, burst),
		retryDelay:  cfg.RetryDelay,
		callTimeout: cfg.CallTimeout,
		metrics:     NewMetrics(cfg.Registry),
	}
}

// Name returns the wrapped provider's name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Quote returns a quote for one fee tier. Reverts are returned immediately;
// transient failures are retried exactly once after the retry delay. Every
// failure wraps ErrTierUnavailable.
func (c *Client) Quote(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	res, err := c.attempt(ctx, req)
	if err == nil {
		return res, nil
	}
	if IsRevert(err) || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: fee %s: %w", ErrTierUnavailable, req.Fee, err)
	}

	c.logger.Debug("Transient quote failure, retrying", "fee", req.Fee, "error", err)
	timer := time.NewTimer(c.retryDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, fmt.Errorf("%w: fee %s: %w", ErrTierUnavailable, req.Fee, ctx.Err())
	case <-timer.C:
	}

	res, err = c.attempt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: fee %s: %w", ErrTierUnavailable, req.Fee, err)
	}
	return res, nil
}

// attempt performs one rate-limited, time-bounded provider call and
// normalises unclassified errors into *TransportError.
func (c *Client) attempt(ctx context.Context, req Request) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.provider.Quote(callCtx, req)
	elapsed := time.Since(start)

	switch {
	case err == nil && (res == nil || res.AmountOut == nil || res.AmountOut.Sign() <= 0):
		err = &RevertError{Reason: "provider returned an empty quote"}
	case err == nil:
		c.metrics.observe(c.provider.Name(), req.Fee, outcomeOK, elapsed)
		return res, nil
	}

	var transport *TransportError
	if IsRevert(err) {
		c.metrics.observe(c.provider.Name(), req.Fee, outcomeRevert, elapsed)
		return nil, err
	}
	if !errors.As(err, &transport) {
		err = &TransportError{Err: err}
	}
	c.metrics.observe(c.provider.Name(), req.Fee, outcomeTransport, elapsed)
	return nil, err
}
