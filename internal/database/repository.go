package database

import (
	"context"
	"errors"

	"baseroute/internal/model"
)

var (
	// ErrNotFound is returned when no trade matches the requested id.
	ErrNotFound = errors.New("trade not found")
	// ErrDuplicateTradeID is returned when a trade id is already stored.
	ErrDuplicateTradeID = errors.New("duplicate trade id")
	// ErrInvalidRecord is returned when a trade is missing required fields.
	ErrInvalidRecord = errors.New("invalid trade record")
)

// Repository defines the standard interface for trade persistence.
// Records are created once and never updated.
type Repository interface {
	CreateTrade(ctx context.Context, trade *model.TradeRecord) (*model.TradeRecord, error)
	GetTrade(ctx context.Context, tradeID string) (*model.TradeRecord, error)
	ListTradesByWallet(ctx context.Context, wallet string) ([]model.TradeRecord, error)
	ListTradesByIDs(ctx context.Context, tradeIDs []string) ([]model.TradeRecord, error)
	ListTrades(ctx context.Context) ([]model.TradeRecord, error)
	Migrate(ctx context.Context) error
}
