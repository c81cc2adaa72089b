package config

import (
	"strings"
	"testing"
	"time"

	"openrequests/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		MongoURI:           DefaultMongoURI,
		MongoDatabaseName:  DefaultMongoDatabaseName,
		MongoConnTimeout:   DefaultMongoConnTimeout,
		StoreBackend:       StoreMongo,
		Port:               DefaultPort,
		RateLimitRequests:  DefaultRateLimitRequests,
		RateLimitWindow:    DefaultRateLimitWindow,
		RequestTimeout:     DefaultRequestTimeout,
		IdempotencyTTL:     DefaultIdempotencyTTL,
		MaxRequestSize:     DefaultMaxRequestSize,
		ReadTimeout:        DefaultReadTimeout,
		WriteTimeout:       DefaultWriteTimeout,
		IdleTimeout:        DefaultIdleTimeout,
		ShutdownTimeout:    DefaultShutdownTimeout,
		RequestTTL:         DefaultRequestTTL,
		ExpirationInterval: DefaultExpirationInterval,
		ClaimMaxRetries:    DefaultClaimMaxRetries,
		EventBufferSize:    DefaultEventBufferSize,
		EventsTopic:        DefaultEventsTopic,
		IntakeTopic:        DefaultIntakeTopic,
		IntakeGroupID:      DefaultIntakeGroupID,

		EventsRelayGroupPrefix: DefaultEventsRelayGroupPrefix,

		Log: logger.Discard(),
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load("test")

	assert.Equal(t, 10*time.Hour, cfg.RequestTTL)
	assert.Equal(t, 30*time.Second, cfg.ExpirationInterval)
	assert.Equal(t, 3, cfg.ClaimMaxRetries)
	assert.Equal(t, StoreMongo, cfg.StoreBackend)
	assert.False(t, cfg.KafkaEnabled)
	assert.NotNil(t, cfg.Log)
	assert.NotNil(t, cfg.Client)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvRequestTTL, "2h")
	t.Setenv(EnvExpirationInterval, "5s")
	t.Setenv(EnvClaimMaxRetries, "7")
	t.Setenv(EnvStoreBackend, StoreMemory)
	t.Setenv(EnvKafkaEnabled, "true")
	t.Setenv(EnvEventsTopic, "events")

	cfg := Load("test")

	assert.Equal(t, 2*time.Hour, cfg.RequestTTL)
	assert.Equal(t, 5*time.Second, cfg.ExpirationInterval)
	assert.Equal(t, 7, cfg.ClaimMaxRetries)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.False(t, cfg.UsesMongo())
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "events", cfg.EventsTopic)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv(EnvRequestTTL, "ten hours")
	t.Setenv(EnvClaimMaxRetries, "three")

	cfg := Load("test")

	assert.Equal(t, DefaultRequestTTL, cfg.RequestTTL)
	assert.Equal(t, DefaultClaimMaxRetries, cfg.ClaimMaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory store skips mongo checks", func(c *Config) { c.StoreBackend = StoreMemory; c.MongoURI = "" }, ""},
		{"bad port", func(c *Config) { c.Port = "70000" }, "Port"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, "StoreBackend"},
		{"bad mongo uri", func(c *Config) { c.MongoURI = "postgres://x" }, "MongoURI"},
		{"zero ttl", func(c *Config) { c.RequestTTL = 0 }, "RequestTTL"},
		{"zero interval", func(c *Config) { c.ExpirationInterval = 0 }, "ExpirationInterval"},
		{"no retries", func(c *Config) { c.ClaimMaxRetries = 0 }, "ClaimMaxRetries"},
		{"kafka without topic", func(c *Config) { c.KafkaEnabled = true; c.EventsTopic = "" }, "EventsTopic"},
		{"kafka without relay group", func(c *Config) { c.KafkaEnabled = true; c.EventsRelayGroupPrefix = "" }, "EventsRelayGroupPrefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.RequestTTL = 0
	cfg.MaxRequestSize = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "must be positive"))
}

func TestRedactMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://***:***@db:27017", redactMongoURI("mongodb://user:secret@db:27017"))
	assert.Equal(t, DefaultMongoURI, redactMongoURI(DefaultMongoURI))
}

func TestNormalizePagination(t *testing.T) {
	assert.Equal(t, 20, NormalizePaginationLimit(0))
	assert.Equal(t, 5, NormalizePaginationLimit(5))
	assert.Equal(t, DefaultPaginationLimit, NormalizePaginationLimit(1000))
	assert.EqualValues(t, 0, NormalizeOffset(-4))
}
