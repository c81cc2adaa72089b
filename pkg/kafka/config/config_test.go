package kafka_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultProducerCompression, cfg.ProducerCompression)
	assert.EqualValues(t, -2, cfg.ConsumerStartOffset)
	assert.Equal(t, DefaultConsumerMaxRetries, cfg.ConsumerMaxRetries)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092")
	t.Setenv(EnvKafkaProducerCompression, "zstd")
	t.Setenv(EnvKafkaConsumerRetryBackoff, "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, "zstd", cfg.ProducerCompression)
	assert.Equal(t, time.Second, cfg.ConsumerRetryBackoff)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaProducerRequireAcks, "2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProducerCompression")
	assert.Contains(t, err.Error(), "ProducerRequireAcks")
}

func TestWithStartOffset_Copies(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	relay := cfg.WithStartOffset(StartOffsetNewest)
	relay.Brokers[0] = "other:9092"

	assert.Equal(t, StartOffsetNewest, relay.ConsumerStartOffset)
	assert.Equal(t, StartOffsetOldest, cfg.ConsumerStartOffset)
	assert.Equal(t, "localhost:9092", cfg.Brokers[0])
}

func TestValidate_EmptyBroker(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "k1:9092,,")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broker 1 cannot be empty")
}
