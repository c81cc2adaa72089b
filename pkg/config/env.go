package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStoreBackend      = "STORE_BACKEND"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRequestTTL         = "REQUEST_TTL"
	EnvExpirationInterval = "EXPIRATION_INTERVAL"
	EnvClaimMaxRetries    = "CLAIM_MAX_RETRIES"
	EnvEventBufferSize    = "EVENT_BUFFER_SIZE"

	EnvKafkaEnabled   = "KAFKA_ENABLED"
	EnvEventsTopic    = "KAFKA_EVENTS_TOPIC"
	EnvIntakeTopic    = "KAFKA_INTAKE_TOPIC"
	EnvIntakeGroupID  = "KAFKA_INTAKE_GROUP_ID"
	EnvIntakeDLQTopic = "KAFKA_INTAKE_DLQ_TOPIC"

	EnvEventsRelayGroupPrefix = "KAFKA_EVENTS_RELAY_GROUP_PREFIX"
)
