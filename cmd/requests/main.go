package main

import (
	"openrequests/internal/requests/events"
	"openrequests/internal/requests/handler"
	"openrequests/internal/requests/intake"
	"openrequests/internal/requests/repository"
	"openrequests/internal/requests/scheduler"
	"openrequests/internal/requests/service"
	"openrequests/internal/requests/validator"
	"openrequests/pkg/app"
	"openrequests/pkg/config"
	"openrequests/pkg/contracts"
	"openrequests/pkg/kafka"
	kafka_config "openrequests/pkg/kafka/config"
	kafka_middleware "openrequests/pkg/kafka/middleware"

	"github.com/google/uuid"
)

const ServiceName = "requests"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Open Requests service")

	serverApp := app.NewApplication(cfg)

	store := initStore(cfg, serverApp)
	broker := events.NewBroker(cfg.EventBufferSize, cfg.Log)
	serverApp.OnShutdown("broker", func() error {
		broker.Close()
		return nil
	})

	metrics := kafka_middleware.NewMetrics()
	notifier := events.Fanout{broker}
	var kafkaCfg *kafka_config.Config
	if cfg.KafkaEnabled {
		kafkaCfg = loadKafkaConfig(cfg)
		notifier = append(notifier, initEventPublisher(cfg, kafkaCfg, metrics, serverApp))
	}

	requestService := initServices(cfg, store, notifier)

	expirations := scheduler.NewExpirationScheduler(store, notifier, cfg)
	serverApp.AddWorker(contracts.WorkerFunc{WorkerName: "expiration-scheduler", Fn: expirations.Run})

	if cfg.KafkaEnabled {
		initIntakeConsumer(cfg, kafkaCfg, requestService, metrics, serverApp)
		initEventRelay(cfg, kafkaCfg, broker, metrics, serverApp)
	}

	stream := handler.NewEventStream(requestService, broker, handler.DefaultKeepAlive, cfg.Log)
	serverApp.SetApp(
		handler.NewRequestHandler(requestService, stream, cfg.Log),
		handler.NewHealthHandler(store, metrics, cfg.Log),
	)

	if err := serverApp.Run(); err != nil {
		cfg.Log.Fatal("Open Requests service stopped with error", "error", err)
	}
	cfg.Log.Info("Open Requests service stopped")
}

func initStore(cfg *config.Config, serverApp *app.Application) repository.RequestStore {
	if !cfg.UsesMongo() {
		cfg.Log.Warn("Using in-memory request store; state is lost on restart")
		return repository.NewMemoryRequestStore(nil)
	}

	cfg.SetMongo()
	serverApp.OnShutdown("mongo", func() error {
		cfg.GracefulShutdown()
		return nil
	})
	cfg.Log.Info("Mongo request store initialized", "database", cfg.MongoDatabaseName)
	return repository.NewMongoRequestStore(cfg)
}

func initServices(cfg *config.Config, store repository.RequestStore, notifier events.Notifier) service.RequestService {
	requestValidator := validator.NewRequestValidator(cfg.Log)
	claims := service.NewClaimCoordinator(store, notifier, cfg)
	requestService := service.NewRequestService(
		store,
		claims,
		requestValidator,
		notifier,
		cfg,
	)

	cfg.Log.Info("Request service initialized",
		"request_ttl", cfg.RequestTTL,
		"claim_max_retries", cfg.ClaimMaxRetries,
	)
	return requestService
}

func loadKafkaConfig(cfg *config.Config) *kafka_config.Config {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	return kafkaCfg
}

func initEventPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, metrics *kafka_middleware.Metrics, serverApp *app.Application) events.Notifier {
	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.EventsTopic, "")
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())
	serverApp.OnShutdown("kafka-producer", producer.Close)

	cfg.Log.Info("Kafka event publisher initialized", "topic", cfg.EventsTopic)
	return events.NewKafkaNotifier(producer)
}

func initIntakeConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, requestService service.RequestService, metrics *kafka_middleware.Metrics, serverApp *app.Application) {
	intakeHandler := intake.NewHandler(requestService, cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.Log, cfg.IntakeTopic, cfg.IntakeGroupID, cfg.IntakeDLQTopic, intakeHandler.Handle)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	serverApp.AddWorker(contracts.WorkerFunc{WorkerName: "intake-consumer", Fn: consumer.Start})
	serverApp.OnShutdown("kafka-consumer", consumer.Close)

	cfg.Log.Info("Kafka intake consumer initialized", "topic", cfg.IntakeTopic, "group_id", cfg.IntakeGroupID)
}

// initEventRelay reads the events topic back into the local broker so SSE
// streams on this instance see changes committed by the others. The group is
// unique per process and starts at the newest offset: only live events matter.
func initEventRelay(cfg *config.Config, kafkaCfg *kafka_config.Config, broker *events.Broker, metrics *kafka_middleware.Metrics, serverApp *app.Application) {
	groupID := cfg.EventsRelayGroupPrefix + "-" + uuid.NewString()
	relay := events.NewRelay(broker, cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg.WithStartOffset(kafka_config.StartOffsetNewest), cfg.Log, cfg.EventsTopic, groupID, "", relay.Handle)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka event relay", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	serverApp.AddWorker(contracts.WorkerFunc{WorkerName: "event-relay", Fn: consumer.Start})
	serverApp.OnShutdown("kafka-event-relay", consumer.Close)

	cfg.Log.Info("Kafka event relay initialized", "topic", cfg.EventsTopic, "group_id", groupID)
}
