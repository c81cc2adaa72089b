package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "openrequests"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStoreBackend      = StoreMongo

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultRequestTTL         = 10 * time.Hour
	DefaultExpirationInterval = 30 * time.Second
	DefaultClaimMaxRetries    = 3
	DefaultEventBufferSize    = 16

	DefaultKafkaEnabled   = false
	DefaultEventsTopic    = "requests.events"
	DefaultIntakeTopic    = "requests.intake"
	DefaultIntakeGroupID  = "openrequests-intake"
	DefaultIntakeDLQTopic = "requests.intake.dlq"

	DefaultEventsRelayGroupPrefix = "openrequests-sse"

	DefaultPaginationLimit = 100
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)
