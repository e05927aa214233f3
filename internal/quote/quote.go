package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"baseroute/internal/model"
)

var (
	// ErrTierUnavailable marks a fee tier that produced no usable quote for this request.
	ErrTierUnavailable = errors.New("fee tier unavailable")
	// ErrInvalidRequest is returned before any network call for malformed requests.
	ErrInvalidRequest = errors.New("invalid quote request")
)

// Request is a single exact-input quote for one fee tier. Token addresses are
// the ones the quoting contract understands; the native asset is already
// replaced by its wrapped equivalent.
type Request struct {
	TokenIn  model.Token
	TokenOut model.Token
	AmountIn *big.Int
	Fee      model.FeeTier
}

func (r Request) validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amount in must be positive", ErrInvalidRequest)
	}
	if r.TokenIn.Address == r.TokenOut.Address {
		return fmt.Errorf("%w: token in and token out are the same", ErrInvalidRequest)
	}
	return nil
}

// Result is the simulated outcome of a swap.
type Result struct {
	AmountOut         *big.Int
	SqrtPriceX96After *big.Int
	TicksCrossed      uint32
	GasEstimate       uint64
}

// Provider produces raw quotes. Implementations classify failures as
// *RevertError or *TransportError; anything else is treated as transient.
type Provider interface {
	Name() string
	Quote(ctx context.Context, req Request) (*Result, error)
}

// RevertError means the simulation ran and reverted: the pool does not exist
// or cannot fill the amount. It is never retried.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "quote reverted: " + e.Reason
}

// TransportError means the quote could not be obtained: timeout, rate limit or
// a broken connection. It is retried once.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "quote transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRevert reports whether err carries a revert classification.
func IsRevert(err error) bool {
	var revert *RevertError
	return errors.As(err, &revert)
}
