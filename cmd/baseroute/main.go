package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"baseroute/internal/api"
	"baseroute/internal/config"
	"baseroute/internal/database"
	"baseroute/internal/exchange"
	"baseroute/internal/oracle"
	"baseroute/internal/quote"
	"baseroute/internal/registry"
	"baseroute/internal/routing"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Cannot load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	if err := run(logger, &cfg); err != nil {
		logger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(logger *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tokens := registry.NewBase()
	if cfg.Network.ChainID != tokens.ChainID() {
		return fmt.Errorf("network.chain_id %d does not match the token registry (%d)", cfg.Network.ChainID, tokens.ChainID())
	}

	httpClient := &http.Client{Timeout: cfg.Quote.CallTimeout()}

	// The RPC client backs both the on-chain quoter and the gas oracle.
	var (
		caller quote.ContractCaller
		gas    oracle.GasPricer
	)
	if cfg.Network.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
		switch {
		case err != nil && cfg.Quote.Provider == config.ProviderOnChain:
			return fmt.Errorf("dial rpc: %w", err)
		case err != nil:
			logger.Warn("RPC unavailable, gas price will use the fallback", "error", err)
		default:
			defer eth.Close()
			caller, gas = eth, eth
		}
	}

	provider, err := quote.NewProvider(cfg, caller, httpClient)
	if err != nil {
		return fmt.Errorf("create quote provider: %w", err)
	}
	quotes := quote.NewClient(logger, provider, quote.ClientConfig{
		RetryDelay:        cfg.Quote.RetryDelay(),
		CallTimeout:       cfg.Quote.CallTimeout(),
		RequestsPerSecond: cfg.Quote.RequestsPerSecond,
		Burst:             cfg.Quote.Burst,
		Registry:          reg,
	})

	g, ctx := errgroup.WithContext(ctx)

	var feed oracle.PriceFeed
	switch cfg.Oracle.PriceSource {
	case config.PriceSourceCoinGecko:
		feed = oracle.NewCoinGeckoFeed(&http.Client{Timeout: cfg.Oracle.Timeout()}, cfg.Oracle.CoinGeckoURL, cfg.Oracle.CoinGeckoID)
	case config.PriceSourceBinance, config.PriceSourceKraken:
		client, err := exchange.NewClient(cfg.Oracle.PriceSource, logger, "")
		if err != nil {
			return err
		}
		stream := oracle.NewStreamFeed(logger, client, cfg.Oracle.StreamPair, cfg.Oracle.StreamMaxAge())
		g.Go(func() error { return stream.Run(ctx) })
		feed = stream
	}

	prices := oracle.New(logger, gas, feed, oracle.Config{
		Timeout:             cfg.Oracle.Timeout(),
		FallbackGasPriceWei: big.NewInt(cfg.Oracle.FallbackGasPriceWei),
		FallbackPriceUSD:    decimal.NewFromFloat(cfg.Oracle.FallbackPriceUSD),
		Registry:            reg,
	})

	engine := routing.NewEngine(logger, tokens, quotes, prices, routing.Config{
		MaxConcurrency: cfg.Quote.MaxConcurrency,
		Registry:       reg,
	})

	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeRepo()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	server := api.NewServer(logger, tokens, engine, repo, api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    reg,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"addr", cfg.Server.Addr,
			"provider", quotes.Name(),
			"priceSource", cfg.Oracle.PriceSource,
			"database", cfg.Database.Driver,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (database.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return database.NewMemoryRepository(), func() {}, nil
	default:
		repo, err := database.NewPostgresRepository(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
}
