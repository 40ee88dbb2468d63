// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Blockchain settings
	RPCURL         string
	ChainID        int64
	PrivateKey     string // Hex-encoded, 0x prefix optional
	FactoryAddress string
	GasLimit       uint64
	PollInterval   time.Duration // receipt polling while a tx is mined

	// Gateway
	CORSOrigins     string // comma-separated; "*" allows any origin
	WritesPerMinute int    // per-client budget for mutating requests

	// Tracing
	OTLPEndpoint string // empty disables export
}

// Local development defaults
const (
	DefaultRPCURL         = "http://localhost:8545"
	DefaultChainID        = 31337
	DefaultFactoryAddress = "0xBa691fF03DBA107CB362A124b4cE7981C4a9963D"
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultGasLimit       = 500000
	DefaultPollInterval   = 2 * time.Second
	DefaultWritesPerMin   = 30
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       getEnv("LOG_FORMAT", DefaultLogFormat),
		RPCURL:          getEnv("RPC_URL", DefaultRPCURL),
		ChainID:         getEnvInt64("CHAIN_ID", DefaultChainID),
		PrivateKey:      os.Getenv("PRIVATE_KEY"), // Required, no default
		FactoryAddress:  getEnv("FACTORY_ADDRESS", DefaultFactoryAddress),
		GasLimit:        uint64(getEnvInt64("GAS_LIMIT", DefaultGasLimit)),
		PollInterval:    getEnvDuration("CONFIRMATION_POLL_INTERVAL", DefaultPollInterval),
		CORSOrigins:     os.Getenv("CORS_ORIGINS"),
		WritesPerMinute: int(getEnvInt64("RATE_LIMIT_WPM", DefaultWritesPerMin)),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}

	key := strings.TrimPrefix(c.PrivateKey, "0x")
	if len(key) != 64 {
		return fmt.Errorf("PRIVATE_KEY must be 64 hex characters (with or without 0x prefix)")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}

	if !common.IsHexAddress(c.FactoryAddress) {
		return fmt.Errorf("FACTORY_ADDRESS %q is not a valid address", c.FactoryAddress)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("CONFIRMATION_POLL_INTERVAL must be positive")
	}

	if c.WritesPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_WPM must be positive")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
