package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_MemoryModeDefaults(t *testing.T) {
	cfg, err := Load(true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ContractAddress != DefaultContractAddress || cfg.ContractName != DefaultContractName {
		t.Errorf("contract = %s.%s", cfg.ContractAddress, cfg.ContractName)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.TradeWorkers != DefaultTradeWorkers {
		t.Errorf("TradeWorkers = %d", cfg.TradeWorkers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("POLL_CONCURRENCY", "8")
	t.Setenv("TRADE_TIMEOUT", "45s")

	cfg, err := Load(true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.PollConcurrency != 8 {
		t.Errorf("PollConcurrency = %d", cfg.PollConcurrency)
	}
	if cfg.TradeTimeout != 45*time.Second {
		t.Errorf("TradeTimeout = %v", cfg.TradeTimeout)
	}
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	if _, err := Load(true); err == nil {
		t.Error("accepted malformed POLL_INTERVAL")
	}

	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("TRADE_WORKERS", "many")
	if _, err := Load(true); err == nil {
		t.Error("accepted malformed TRADE_WORKERS")
	}
}

func TestLoad_DBModeRequiresDSNs(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load(false)
	if err == nil {
		t.Fatal("accepted db mode without DSNs")
	}
	if !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Errorf("unexpected error %v", err)
	}

	t.Setenv("POSTGRES_DSN", "postgres://localhost/stx")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://localhost:9000/stx")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(false); err != nil {
		t.Errorf("Load failed with all DSNs set: %v", err)
	}
}

func TestValidate_Network(t *testing.T) {
	t.Setenv("STACKS_NETWORK", "moonnet")
	if _, err := Load(true); err == nil {
		t.Error("accepted invalid network")
	}
}
