package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Quote provider names.
const (
	ProviderOnChain    = "onchain"
	ProviderAggregator = "aggregator"
	ProviderSimulated  = "simulated"
)

// Reference price sources.
const (
	PriceSourceCoinGecko = "coingecko"
	PriceSourceBinance   = "binance"
	PriceSourceKraken    = "kraken"
	PriceSourceNone      = "none"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Network  NetworkConfig
	Quote    QuoteConfig
	Oracle   OracleConfig
	Database DatabaseConfig
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig defines the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// NetworkConfig defines the chain the quotes are taken from.
type NetworkConfig struct {
	Name          string
	ChainID       uint64 `mapstructure:"chain_id"`
	RPCURL        string `mapstructure:"rpc_url"`
	QuoterAddress string `mapstructure:"quoter_address"`
}

// QuoteConfig defines the quote provider and its call policy.
type QuoteConfig struct {
	Provider           string
	RetryDelayMS       int                `mapstructure:"retry_delay_ms"`
	CallTimeoutMS      int                `mapstructure:"call_timeout_ms"`
	RequestsPerSecond  float64            `mapstructure:"requests_per_second"`
	Burst              int                `mapstructure:"burst"`
	MaxConcurrency     int                `mapstructure:"max_concurrency"`
	AggregatorURL      string             `mapstructure:"aggregator_url"`
	AggregatorAPIKey   string             `mapstructure:"aggregator_api_key"`
	SimulatedPricesUSD map[string]float64 `mapstructure:"simulated_prices_usd"`
}

// OracleConfig defines the gas and reference price sources and their fallbacks.
type OracleConfig struct {
	PriceSource         string  `mapstructure:"price_source"`
	CoinGeckoURL        string  `mapstructure:"coingecko_url"`
	CoinGeckoID         string  `mapstructure:"coingecko_id"`
	StreamPair          string  `mapstructure:"stream_pair"`
	StreamMaxAgeMS      int     `mapstructure:"stream_max_age_ms"`
	TimeoutMS           int     `mapstructure:"timeout_ms"`
	FallbackGasPriceWei int64   `mapstructure:"fallback_gas_price_wei"`
	FallbackPriceUSD    float64 `mapstructure:"fallback_price_usd"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// RetryDelay is the pause before the single retry of a transient quote failure.
func (q QuoteConfig) RetryDelay() time.Duration {
	return time.Duration(q.RetryDelayMS) * time.Millisecond
}

// CallTimeout bounds each quote attempt.
func (q QuoteConfig) CallTimeout() time.Duration {
	return time.Duration(q.CallTimeoutMS) * time.Millisecond
}

// Timeout bounds each oracle call.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// StreamMaxAge is how long a streamed tick stays usable.
func (o OracleConfig) StreamMaxAge() time.Duration {
	return time.Duration(o.StreamMaxAgeMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("network.name", "Base L2")
	v.SetDefault("network.chain_id", 8453)
	v.SetDefault("network.rpc_url", "https://mainnet.base.org")
	v.SetDefault("network.quoter_address", "0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a")

	v.SetDefault("quote.provider", ProviderOnChain)
	v.SetDefault("quote.retry_delay_ms", 50)
	v.SetDefault("quote.call_timeout_ms", 5000)
	v.SetDefault("quote.requests_per_second", 20)
	v.SetDefault("quote.burst", 1)
	v.SetDefault("quote.max_concurrency", 4)
	v.SetDefault("quote.aggregator_url", "https://api.uniswap.org/v2/quote")
	v.SetDefault("quote.aggregator_api_key", "")
	v.SetDefault("quote.simulated_prices_usd", map[string]any{
		"eth":   1845.50,
		"weth":  1845.50,
		"cbeth": 1950.00,
		"usdc":  1.0,
		"usdbc": 1.0,
		"dai":   1.0,
		"link":  14.50,
		"aave":  95.00,
	})

	v.SetDefault("oracle.price_source", PriceSourceCoinGecko)
	v.SetDefault("oracle.coingecko_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("oracle.coingecko_id", "ethereum")
	v.SetDefault("oracle.stream_pair", "ETH/USD")
	v.SetDefault("oracle.stream_max_age_ms", 30000)
	v.SetDefault("oracle.timeout_ms", 3000)
	v.SetDefault("oracle.fallback_gas_price_wei", 1000000)
	v.SetDefault("oracle.fallback_price_usd", 3500)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "baseroute")
	v.SetDefault("database.sslmode", "disable")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}

// Validate checks enumerated values and numeric bounds.
func (c Config) Validate() error {
	switch c.Quote.Provider {
	case ProviderOnChain, ProviderAggregator, ProviderSimulated:
	default:
		return fmt.Errorf("quote.provider %q is not one of onchain, aggregator, simulated", c.Quote.Provider)
	}
	switch c.Oracle.PriceSource {
	case PriceSourceCoinGecko, PriceSourceBinance, PriceSourceKraken, PriceSourceNone:
	default:
		return fmt.Errorf("oracle.price_source %q is not supported", c.Oracle.PriceSource)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not one of postgres, memory", c.Database.Driver)
	}
	if c.Quote.Provider == ProviderAggregator && c.Quote.AggregatorAPIKey == "" {
		return errors.New("quote.aggregator_api_key is required for the aggregator provider")
	}
	if c.Quote.RetryDelayMS < 0 || c.Quote.CallTimeoutMS <= 0 {
		return errors.New("quote timings must be positive")
	}
	if c.Quote.RequestsPerSecond <= 0 || c.Quote.Burst <= 0 || c.Quote.MaxConcurrency <= 0 {
		return errors.New("quote rate limits must be positive")
	}
	if c.Oracle.FallbackGasPriceWei <= 0 || c.Oracle.FallbackPriceUSD <= 0 {
		return errors.New("oracle fallbacks must be positive")
	}
	return nil
}
