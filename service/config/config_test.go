package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerAddr:        ":8080",
		LogLevel:          "info",
		DatabaseURL:       "postgres://localhost:5432/soldash",
		NATSURL:           "nats://localhost:4222",
		SolanaRPCURL:      "https://api.devnet.solana.com",
		SolanaCluster:     "devnet",
		RPCTimeout:        10 * time.Second,
		TemporalHost:      "localhost:7233",
		TemporalNamespace: "default",
		TemporalTaskQueue: "soldash-reconcile",
		ReconcileInterval: 30 * time.Second,
		ReconcileMinAge:   15 * time.Second,
		ReconcileBatch:    100,
		JupiterAPIURL:     "https://quote-api.jup.ag/v6",
		RaydiumAPIURL:     "https://transaction-v1.raydium.io",
		ManualSwapRate:    100.0,
		SwapSlippageBps:   50,
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SOLANA_RPC_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/soldash")
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "devnet", cfg.SolanaCluster)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "soldash-reconcile", cfg.TemporalTaskQueue)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "https://quote-api.jup.ag/v6", cfg.JupiterAPIURL)
	assert.Equal(t, 100.0, cfg.ManualSwapRate)
	assert.Equal(t, 50, cfg.SwapSlippageBps)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/soldash")
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("SOLANA_CLUSTER", "mainnet-beta")
	t.Setenv("SOLANA_RPC_TIMEOUT", "5s")
	t.Setenv("RECONCILE_INTERVAL", "1m")
	t.Setenv("MANUAL_SWAP_RATE", "42.5")
	t.Setenv("SWAP_SLIPPAGE_BPS", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mainnet-beta", cfg.SolanaCluster)
	assert.Equal(t, 5*time.Second, cfg.RPCTimeout)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 42.5, cfg.ManualSwapRate)
	assert.Equal(t, 100, cfg.SwapSlippageBps)
}

func TestLoad_InvalidCluster(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/soldash")
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("SOLANA_CLUSTER", "localnet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_CLUSTER")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/soldash")
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("RECONCILE_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONCILE_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database URL",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "DatabaseURL is required",
		},
		{
			name:    "missing RPC URL",
			mutate:  func(c *Config) { c.SolanaRPCURL = "" },
			wantErr: "SolanaRPCURL is required",
		},
		{
			name:    "bad cluster",
			mutate:  func(c *Config) { c.SolanaCluster = "moonnet" },
			wantErr: "SolanaCluster",
		},
		{
			name:    "RPC timeout too small",
			mutate:  func(c *Config) { c.RPCTimeout = 100 * time.Millisecond },
			wantErr: "RPCTimeout",
		},
		{
			name:    "negative swap rate",
			mutate:  func(c *Config) { c.ManualSwapRate = -1 },
			wantErr: "ManualSwapRate",
		},
		{
			name:    "slippage out of range",
			mutate:  func(c *Config) { c.SwapSlippageBps = 20000 },
			wantErr: "SwapSlippageBps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
