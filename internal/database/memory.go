package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"baseroute/internal/model"
)

// MemoryRepository is an in-process Repository for demos and tests.
// Stored records are copied in and out so callers cannot mutate them.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	trades map[string]model.TradeRecord
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{trades: make(map[string]model.TradeRecord)}
}

// Migrate is a no-op.
func (r *MemoryRepository) Migrate(context.Context) error {
	return nil
}

func (r *MemoryRepository) CreateTrade(_ context.Context, trade *model.TradeRecord) (*model.TradeRecord, error) {
	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.trades[trade.TradeID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTradeID, trade.TradeID)
	}
	r.nextID++
	stored := cloneTrade(*trade)
	stored.ID = r.nextID
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}
	r.trades[stored.TradeID] = stored

	out := cloneTrade(stored)
	return &out, nil
}

func (r *MemoryRepository) GetTrade(_ context.Context, tradeID string) (*model.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trade, ok := r.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tradeID)
	}
	out := cloneTrade(trade)
	return &out, nil
}

func (r *MemoryRepository) ListTradesByWallet(_ context.Context, wallet string) ([]model.TradeRecord, error) {
	return r.filter(func(t model.TradeRecord) bool {
		return strings.EqualFold(t.WalletAddress, wallet)
	}), nil
}

func (r *MemoryRepository) ListTradesByIDs(_ context.Context, tradeIDs []string) ([]model.TradeRecord, error) {
	want := make(map[string]struct{}, len(tradeIDs))
	for _, id := range tradeIDs {
		want[id] = struct{}{}
	}
	return r.filter(func(t model.TradeRecord) bool {
		_, ok := want[t.TradeID]
		return ok
	}), nil
}

func (r *MemoryRepository) ListTrades(context.Context) ([]model.TradeRecord, error) {
	return r.filter(func(model.TradeRecord) bool { return true }), nil
}

// filter returns matching trades newest first, ties by insertion order descending.
func (r *MemoryRepository) filter(keep func(model.TradeRecord) bool) []model.TradeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TradeRecord, 0, len(r.trades))
	for _, t := range r.trades {
		if keep(t) {
			out = append(out, cloneTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func cloneTrade(t model.TradeRecord) model.TradeRecord {
	if t.BlockNumber != nil {
		bn := *t.BlockNumber
		t.BlockNumber = &bn
	}
	if t.RoutesAnalyzed != nil {
		routes := make([]model.RouteQuote, len(t.RoutesAnalyzed))
		for i, rq := range t.RoutesAnalyzed {
			rq.AmountOut = model.NewAmount(rq.AmountOut.Int)
			routes[i] = rq
		}
		t.RoutesAnalyzed = routes
	}
	return t
}
