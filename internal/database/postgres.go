package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"baseroute/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgErrUniqueViolation is the Postgres unique_violation code.
const pgErrUniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trades (
	id                BIGSERIAL PRIMARY KEY,
	trade_id          TEXT NOT NULL UNIQUE,
	timestamp         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	pair_from         TEXT NOT NULL,
	pair_to           TEXT NOT NULL,
	amount_in         TEXT NOT NULL,
	amount_out        TEXT NOT NULL,
	type              TEXT NOT NULL,
	route             TEXT NOT NULL,
	effective_rate    TEXT NOT NULL,
	gas_cost          TEXT NOT NULL,
	gas_used          TEXT NOT NULL,
	execution_quality TEXT NOT NULL,
	quality_score     TEXT NOT NULL,
	predicted_output  TEXT NOT NULL,
	price_impact      TEXT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	wallet_address    TEXT NOT NULL,
	network           TEXT NOT NULL DEFAULT 'Base L2',
	block_number      TEXT,
	status            TEXT NOT NULL DEFAULT 'Completed',
	routes_analyzed   JSONB NOT NULL DEFAULT '[]'::jsonb
);
CREATE INDEX IF NOT EXISTS trades_wallet_idx ON trades (lower(wallet_address));
CREATE INDEX IF NOT EXISTS trades_timestamp_idx ON trades (timestamp DESC, id DESC);
`

const tradeColumns = `id, trade_id, timestamp, pair_from, pair_to, amount_in, amount_out, type, route,
	effective_rate, gas_cost, gas_used, execution_quality, quality_score, predicted_output,
	price_impact, transaction_hash, wallet_address, network, block_number, status, routes_analyzed`

// PostgresRepository implements Repository for PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

// Migrate creates the trades table and its indexes when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate trades: %w", err)
	}
	return nil
}

// CreateTrade inserts trade and returns the stored row.
func (r *PostgresRepository) CreateTrade(ctx context.Context, trade *model.TradeRecord) (*model.TradeRecord, error) {
	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now().UTC()
	}
	routes := trade.RoutesAnalyzed
	if routes == nil {
		routes = []model.RouteQuote{}
	}
	routesJSON, err := json.Marshal(routes)
	if err != nil {
		return nil, fmt.Errorf("encode routes analyzed: %w", err)
	}

	rows, err := r.Pool.Query(ctx, `
		INSERT INTO trades (trade_id, timestamp, pair_from, pair_to, amount_in, amount_out, type, route,
			effective_rate, gas_cost, gas_used, execution_quality, quality_score, predicted_output,
			price_impact, transaction_hash, wallet_address, network, block_number, status, routes_analyzed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING `+tradeColumns,
		trade.TradeID, trade.Timestamp, trade.PairFrom, trade.PairTo, trade.AmountIn, trade.AmountOut,
		trade.Type, trade.Route, trade.EffectiveRate, trade.GasCost, trade.GasUsed, trade.ExecutionQuality,
		trade.QualityScore, trade.PredictedOutput, trade.PriceImpact, trade.TransactionHash,
		trade.WalletAddress, trade.Network, trade.BlockNumber, trade.Status, routesJSON,
	)
	if err != nil {
		return nil, r.insertError(trade.TradeID, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.TradeRecord])
	if err != nil {
		return nil, r.insertError(trade.TradeID, err)
	}
	return &stored, nil
}

func (r *PostgresRepository) insertError(tradeID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateTradeID, tradeID)
	}
	return fmt.Errorf("insert trade: %w", err)
}

// GetTrade returns the trade with the given external id.
func (r *PostgresRepository) GetTrade(ctx context.Context, tradeID string) (*model.TradeRecord, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = $1`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	trade, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.TradeRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tradeID)
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return &trade, nil
}

// ListTradesByWallet returns the wallet's trades, newest first. The address
// match is case-insensitive.
func (r *PostgresRepository) ListTradesByWallet(ctx context.Context, wallet string) ([]model.TradeRecord, error) {
	return r.list(ctx, `WHERE lower(wallet_address) = lower($1)`, wallet)
}

// ListTradesByIDs returns the trades with the given ids, newest first.
func (r *PostgresRepository) ListTradesByIDs(ctx context.Context, tradeIDs []string) ([]model.TradeRecord, error) {
	if len(tradeIDs) == 0 {
		return []model.TradeRecord{}, nil
	}
	return r.list(ctx, `WHERE trade_id = ANY($1)`, tradeIDs)
}

// ListTrades returns every trade, newest first.
func (r *PostgresRepository) ListTrades(ctx context.Context) ([]model.TradeRecord, error) {
	return r.list(ctx, ``)
}

func (r *PostgresRepository) list(ctx context.Context, where string, args ...any) ([]model.TradeRecord, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+tradeColumns+` FROM trades `+where+` ORDER BY timestamp DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	trades, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.TradeRecord])
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}
