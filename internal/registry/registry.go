package registry

import (
	"errors"
	"fmt"
	"strings"

	"baseroute/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownToken is returned when a symbol is not registered.
	ErrUnknownToken = errors.New("unknown token")
	// ErrUnsupportedPair is returned for pairs that are not listed, including from == to.
	ErrUnsupportedPair = errors.New("unsupported pair")
)

// Registry is an immutable symbol -> token lookup plus the enumerated pairs.
// It is safe for concurrent reads.
type Registry struct {
	chainID uint64
	tokens  map[string]model.Token // keyed by upper-cased symbol
	order   []string
	pairs   []model.TokenPair
	wrapped model.Token
}

// PairSpec declares a supported pair by symbol.
type PairSpec struct {
	ID   string
	From string
	To   string
}

// New builds a registry. wrappedSymbol names the token the native asset aliases to.
func New(chainID uint64, tokens []model.Token, pairs []PairSpec, wrappedSymbol string) (*Registry, error) {
	r := &Registry{
		chainID: chainID,
		tokens:  make(map[string]model.Token, len(tokens)),
	}
	for _, t := range tokens {
		key := strings.ToUpper(t.Symbol)
		if _, dup := r.tokens[key]; dup {
			return nil, fmt.Errorf("duplicate token symbol %s", t.Symbol)
		}
		r.tokens[key] = t
		r.order = append(r.order, key)
	}

	wrapped, ok := r.tokens[strings.ToUpper(wrappedSymbol)]
	if !ok {
		return nil, fmt.Errorf("wrapped native token %s: %w", wrappedSymbol, ErrUnknownToken)
	}
	r.wrapped = wrapped

	for _, p := range pairs {
		from, err := r.Lookup(p.From)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.ID, err)
		}
		to, err := r.Lookup(p.To)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.ID, err)
		}
		if from.Symbol == to.Symbol {
			return nil, fmt.Errorf("pair %s: from and to are both %s", p.ID, from.Symbol)
		}
		r.pairs = append(r.pairs, model.TokenPair{
			ID:    p.ID,
			From:  from,
			To:    to,
			Label: fmt.Sprintf("%s -> %s", from.Symbol, to.Symbol),
		})
	}
	return r, nil
}

// ChainID returns the network the registry addresses belong to.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Lookup resolves a symbol case-insensitively.
func (r *Registry) Lookup(symbol string) (model.Token, error) {
	t, ok := r.tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return model.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return t, nil
}

// Tokens returns every registered token in registration order.
func (r *Registry) Tokens() []model.Token {
	out := make([]model.Token, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.tokens[key])
	}
	return out
}

// Pairs returns the supported pairs in registration order. The slice is a copy.
func (r *Registry) Pairs() []model.TokenPair {
	out := make([]model.TokenPair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// Pair resolves an ordered pair by symbols.
func (r *Registry) Pair(from, to string) (model.TokenPair, error) {
	fromToken, err := r.Lookup(from)
	if err != nil {
		return model.TokenPair{}, err
	}
	toToken, err := r.Lookup(to)
	if err != nil {
		return model.TokenPair{}, err
	}
	if fromToken.Symbol == toToken.Symbol {
		return model.TokenPair{}, fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, fromToken.Symbol, toToken.Symbol)
	}
	for _, p := range r.pairs {
		if p.From.Symbol == fromToken.Symbol && p.To.Symbol == toToken.Symbol {
			return p, nil
		}
	}
	return model.TokenPair{}, fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, fromToken.Symbol, toToken.Symbol)
}

// QuoteAddress returns the address quoting contracts understand. The native
// asset is replaced by its wrapped equivalent.
func (r *Registry) QuoteAddress(t model.Token) common.Address {
	if t.Native {
		return r.wrapped.Address
	}
	return t.Address
}
