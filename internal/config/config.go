// Package config loads runtime configuration from the environment. A .env
// file in the working directory is loaded first when present; real
// environment variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultStacksAPIURL    = "https://api.mainnet.hiro.so"
	DefaultContractAddress = "SPAT9BDQ1NQ5B6VNNVS9J5PEH8WXHAEZ3E2Z72AR"
	DefaultContractName    = "bondingcurvestxfun"
	DefaultPollInterval    = 5 * time.Minute
	DefaultPollConcurrency = 4
	DefaultTradeWorkers    = 2
	DefaultTradeTimeout    = 2 * time.Minute
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTPAddr string

	// Chain
	StacksNetwork   string
	StacksAPIURL    string
	ContractAddress string
	ContractName    string
	SignerURL       string
	SenderAddress   string

	// Storage
	PostgresDSN   string
	ClickhouseDSN string
	RedisURL      string
	UseMemory     bool

	// Feed
	PollInterval    time.Duration
	PollConcurrency int

	// Trading
	TradeWorkers int
	TradeTimeout time.Duration
}

// Load reads configuration from the environment. The useMemory flag comes
// from the command line, not the environment.
func Load(useMemory bool) (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        envOr("HTTP_ADDR", DefaultHTTPAddr),
		StacksNetwork:   envOr("STACKS_NETWORK", "mainnet"),
		StacksAPIURL:    envOr("STACKS_API_URL", DefaultStacksAPIURL),
		ContractAddress: envOr("CONTRACT_ADDRESS", DefaultContractAddress),
		ContractName:    envOr("CONTRACT_NAME", DefaultContractName),
		SignerURL:       os.Getenv("SIGNER_URL"),
		SenderAddress:   os.Getenv("SENDER_ADDRESS"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:   os.Getenv("CLICKHOUSE_DSN"),
		RedisURL:        os.Getenv("REDIS_URL"),
		UseMemory:       useMemory,
	}

	var err error
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.PollConcurrency, err = envInt("POLL_CONCURRENCY", DefaultPollConcurrency); err != nil {
		return nil, err
	}
	if cfg.TradeWorkers, err = envInt("TRADE_WORKERS", DefaultTradeWorkers); err != nil {
		return nil, err
	}
	if cfg.TradeTimeout, err = envDuration("TRADE_TIMEOUT", DefaultTradeTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.StacksNetwork {
	case "mainnet", "testnet", "devnet":
	default:
		return fmt.Errorf("invalid STACKS_NETWORK %q", c.StacksNetwork)
	}
	if c.StacksAPIURL == "" {
		return errors.New("STACKS_API_URL is required")
	}
	if !c.UseMemory {
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required (or run with --use-memory)")
		}
		if c.ClickhouseDSN == "" {
			return errors.New("CLICKHOUSE_DSN is required (or run with --use-memory)")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required (or run with --use-memory)")
		}
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.PollConcurrency <= 0 {
		return errors.New("POLL_CONCURRENCY must be positive")
	}
	if c.TradeWorkers <= 0 {
		return errors.New("TRADE_WORKERS must be positive")
	}
	if c.TradeTimeout <= 0 {
		return errors.New("TRADE_TIMEOUT must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
