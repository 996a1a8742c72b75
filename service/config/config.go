package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration
	SolanaRPCURL  string
	SolanaCluster string // "mainnet-beta", "devnet", or "testnet"
	RPCTimeout    time.Duration

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Reconciliation configuration
	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileBatch    int

	// Swap provider configuration
	JupiterAPIURL   string
	RaydiumAPIURL   string
	ManualSwapRate  float64
	SwapSlippageBps int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.SolanaCluster = getEnvOrDefault("SOLANA_CLUSTER", "devnet")
	if !validCluster(cfg.SolanaCluster) {
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER must be one of mainnet-beta, devnet, testnet"))
	}

	rpcTimeout, err := parseDuration("SOLANA_RPC_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "soldash-reconcile")

	// Reconciliation configuration
	reconcileInterval, err := parseDuration("RECONCILE_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ReconcileInterval = reconcileInterval
	}

	reconcileMinAge, err := parseDuration("RECONCILE_MIN_AGE", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ReconcileMinAge = reconcileMinAge
	}

	cfg.ReconcileBatch = 100

	// Swap provider configuration
	cfg.JupiterAPIURL = getEnvOrDefault("JUPITER_API_URL", "https://quote-api.jup.ag/v6")
	cfg.RaydiumAPIURL = getEnvOrDefault("RAYDIUM_API_URL", "https://transaction-v1.raydium.io")

	rate, err := parseFloat("MANUAL_SWAP_RATE", 100.0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ManualSwapRate = rate
	}

	slippage, err := parseInt("SWAP_SLIPPAGE_BPS", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SwapSlippageBps = slippage
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if !validCluster(c.SolanaCluster) {
		errs = append(errs, fmt.Errorf("SolanaCluster must be one of mainnet-beta, devnet, testnet"))
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.ReconcileInterval < time.Second {
		errs = append(errs, fmt.Errorf("ReconcileInterval must be at least 1 second"))
	}

	if c.ReconcileMinAge < 0 {
		errs = append(errs, fmt.Errorf("ReconcileMinAge cannot be negative"))
	}

	if c.ManualSwapRate <= 0 {
		errs = append(errs, fmt.Errorf("ManualSwapRate must be positive"))
	}

	if c.SwapSlippageBps < 0 || c.SwapSlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("SwapSlippageBps must be between 0 and 10000"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validCluster(cluster string) bool {
	switch cluster {
	case "mainnet-beta", "devnet", "testnet":
		return true
	}
	return false
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result float64
	if _, err := fmt.Sscanf(value, "%g", &result); err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
