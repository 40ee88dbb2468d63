package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func validConfig() Config {
	return Config{
		PrivateKey:      testKey,
		RPCURL:          DefaultRPCURL,
		ChainID:         DefaultChainID,
		FactoryAddress:  DefaultFactoryAddress,
		PollInterval:    time.Second,
		LogFormat:       "json",
		WritesPerMinute: DefaultWritesPerMin,
	}
}

func TestLoad_WithValidConfig(t *testing.T) {
	t.Setenv("PRIVATE_KEY", testKey)
	t.Setenv("PORT", "9090")
	t.Setenv("CONFIRMATION_POLL_INTERVAL", "500ms")
	t.Setenv("GAS_LIMIT", "750000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, DefaultFactoryAddress, cfg.FactoryAddress)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, uint64(750000), cfg.GasLimit)
	assert.Equal(t, DefaultWritesPerMin, cfg.WritesPerMinute)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoad_MissingPrivateKey(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY is required")
}

func TestLoad_InvalidPrivateKeyLength(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "tooshort")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "64 hex characters")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "prefixed key", mutate: func(c *Config) { c.PrivateKey = "0x" + testKey }},
		{name: "missing private key", mutate: func(c *Config) { c.PrivateKey = "" }, wantErr: "PRIVATE_KEY is required"},
		{name: "invalid private key length", mutate: func(c *Config) { c.PrivateKey = "abc123" }, wantErr: "64 hex characters"},
		{name: "missing RPC URL", mutate: func(c *Config) { c.RPCURL = "" }, wantErr: "RPC_URL is required"},
		{name: "zero chain ID", mutate: func(c *Config) { c.ChainID = 0 }, wantErr: "CHAIN_ID"},
		{name: "bad factory", mutate: func(c *Config) { c.FactoryAddress = "0x1234" }, wantErr: "FACTORY_ADDRESS"},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: "CONFIRMATION_POLL_INTERVAL"},
		{name: "zero write budget", mutate: func(c *Config) { c.WritesPerMinute = 0 }, wantErr: "RATE_LIMIT_WPM"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "3s")
	t.Setenv("TEST_BAD_DURATION", "soon")

	assert.Equal(t, 3*time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD_DURATION", time.Second))
}
