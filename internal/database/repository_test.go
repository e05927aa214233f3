package database

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"baseroute/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}

	repo := &PostgresRepository{Pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate: %s", err)
	}

	code := m.Run()

	pool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("could not stop postgres container: %s", err)
	}
	os.Exit(code)
}

func sampleTrade(tradeID, wallet string, ts time.Time) *model.TradeRecord {
	block := "12345678"
	return &model.TradeRecord{
		TradeID:          tradeID,
		Timestamp:        ts,
		PairFrom:         "USDC",
		PairTo:           "WETH",
		AmountIn:         "1000",
		AmountOut:        "0.541",
		Type:             "Market",
		Route:            "USDC -> [0.05%] -> WETH",
		EffectiveRate:    "0.000541",
		GasCost:          "$0.0004",
		GasUsed:          "120000",
		ExecutionQuality: model.QualityExcellent,
		QualityScore:     "99.82",
		PredictedOutput:  "0.542",
		PriceImpact:      "-0.05%",
		TransactionHash:  "0x" + tradeID,
		WalletAddress:    wallet,
		Network:          model.DefaultNetwork,
		BlockNumber:      &block,
		Status:           model.DefaultTradeStatus,
		RoutesAnalyzed: []model.RouteQuote{
			{FeeTier: model.FeeTierLow, FeeLabel: "0.05%", AmountOut: model.NewAmount(bigInt("542000000000000")), IsBest: true},
			{FeeTier: model.FeeTierMedium, FeeLabel: "0.3%", AmountOut: model.NewAmount(bigInt("541000000000000"))},
		},
	}
}

// testRepositoryContract exercises behaviour every Repository must share.
func testRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	created, err := repo.CreateTrade(ctx, sampleTrade("TRD-A", "0xAbC", base))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "TRD-A", created.TradeID)

	_, err = repo.CreateTrade(ctx, sampleTrade("TRD-B", "0xabc", base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.CreateTrade(ctx, sampleTrade("TRD-C", "0xother", base.Add(2*time.Minute)))
	require.NoError(t, err)

	t.Run("duplicate id", func(t *testing.T) {
		_, err := repo.CreateTrade(ctx, sampleTrade("TRD-A", "0xabc", base))
		assert.ErrorIs(t, err, ErrDuplicateTradeID)
	})

	t.Run("invalid record", func(t *testing.T) {
		bad := sampleTrade("TRD-BAD", "0xabc", base)
		bad.TransactionHash = ""
		_, err := repo.CreateTrade(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidRecord)
		_, err = repo.GetTrade(ctx, "TRD-BAD")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetTrade(ctx, "TRD-A")
		require.NoError(t, err)
		assert.Equal(t, "0xAbC", got.WalletAddress)
		assert.True(t, base.Equal(got.Timestamp))
		require.NotNil(t, got.BlockNumber)
		assert.Equal(t, "12345678", *got.BlockNumber)
		require.Len(t, got.RoutesAnalyzed, 2)
		assert.Equal(t, "542000000000000", got.RoutesAnalyzed[0].AmountOut.String())
		assert.True(t, got.RoutesAnalyzed[0].IsBest)

		_, err = repo.GetTrade(ctx, "TRD-MISSING")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("by wallet is case-insensitive and newest first", func(t *testing.T) {
		trades, err := repo.ListTradesByWallet(ctx, "0XABC")
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "TRD-B", trades[0].TradeID)
		assert.Equal(t, "TRD-A", trades[1].TradeID)
	})

	t.Run("by ids", func(t *testing.T) {
		trades, err := repo.ListTradesByIDs(ctx, []string{"TRD-A", "TRD-C", "TRD-NOPE"})
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "TRD-C", trades[0].TradeID)
		assert.Equal(t, "TRD-A", trades[1].TradeID)

		trades, err = repo.ListTradesByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})

	t.Run("all", func(t *testing.T) {
		trades, err := repo.ListTrades(ctx)
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, []string{"TRD-C", "TRD-B", "TRD-A"},
			[]string{trades[0].TradeID, trades[1].TradeID, trades[2].TradeID})
	})
}

func TestPostgresRepository(t *testing.T) {
	if pool == nil {
		t.Skip("postgres container not started (-short)")
	}
	ctx := context.Background()
	_, err := pool.Exec(ctx, "TRUNCATE trades RESTART IDENTITY")
	require.NoError(t, err)

	repo := &PostgresRepository{Pool: pool}
	require.NoError(t, repo.Migrate(ctx), "migrate must be idempotent")
	testRepositoryContract(t, repo)
}

func TestMemoryRepository(t *testing.T) {
	testRepositoryContract(t, NewMemoryRepository())
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	trade := sampleTrade("TRD-X", "0xabc", time.Now())
	stored, err := repo.CreateTrade(ctx, trade)
	require.NoError(t, err)

	stored.Status = "Tampered"
	*stored.BlockNumber = "1"
	stored.RoutesAnalyzed[0].AmountOut.SetInt64(1)
	trade.Route = "changed"

	got, err := repo.GetTrade(ctx, "TRD-X")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTradeStatus, got.Status)
	assert.Equal(t, "12345678", *got.BlockNumber)
	assert.Equal(t, "542000000000000", got.RoutesAnalyzed[0].AmountOut.String())
	assert.Equal(t, "USDC -> [0.05%] -> WETH", got.Route)
}

func bigInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int " + s)
	}
	return v
}
