package di

import (
	"context"
	"fmt"
	"time"

	"TickWatch/internal/alert"
	"TickWatch/internal/detector"
	"TickWatch/internal/domain/repository"
	"TickWatch/internal/handler/api"
	mid "TickWatch/internal/middleware"
	internalrepo "TickWatch/internal/repository"
	"TickWatch/internal/service/cache"
	"TickWatch/internal/service/finnhub"
	"TickWatch/internal/usecase"
	pkgch "TickWatch/pkg/clickhouse"
	"TickWatch/pkg/config"
	pkgkafka "TickWatch/pkg/kafka"
	applogger "TickWatch/pkg/logger"
	"TickWatch/pkg/metrics"
	"TickWatch/pkg/server"
)

// Store combines tick and signal persistence; every backend implements
// both sides against the same connection.
type Store interface {
	repository.TickStore
	repository.SignalStore
}

// ProvideLogger creates the structured logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	db := cfg.ClickHouse.Database
	tickTable := db + "." + cfg.Store.TickTable
	sigTable := db + "." + cfg.Store.SignalTable

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + tickTable + " (symbol String, ts DateTime64(3), open Float64, high Float64, low Float64, close Float64, volume Float64) ENGINE=MergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS " + sigTable + " (kind String, symbol String, ts DateTime64(3), close Float64, volume Float64, metric Float64, message String) ENGINE=MergeTree ORDER BY (symbol, ts)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideStore selects the persistence backend from config.
func ProvideStore(cfg *config.Config, logger *applogger.Logger) (Store, error) {
	switch cfg.Store.Type {
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		db := cfg.ClickHouse.Database
		s := internalrepo.NewClickHouseStore(client.DB(), db+"."+cfg.Store.TickTable, db+"."+cfg.Store.SignalTable)
		s.SetLogger(logger)
		return s, nil
	case "postgres":
		return internalrepo.NewPostgresStore(cfg.Postgres.DSN)
	default:
		return internalrepo.NewMemoryStore(), nil
	}
}

// ProvideTickStore exposes the tick side of the store.
func ProvideTickStore(s Store) repository.TickStore { return s }

// ProvideSignalStore exposes the signal side of the store.
func ProvideSignalStore(s Store) repository.SignalStore { return s }

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka publisher repository, or nil when
// Kafka is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.TickTopic, cfg.Kafka.SignalTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML,
// or nil when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler registers handler for the ticks topic, or
// nil when the consumer is disabled.
func ProvideKafkaTicksHandler(pipeline *usecase.Pipeline, metrics repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TickTopic, pipeline, metrics)
}

// ProvideDetector creates the anomaly detector from configured
// thresholds.
func ProvideDetector(cfg *config.Config) *detector.Detector {
	return detector.New(detector.Config{
		PriceSpikeZScore: cfg.Detectors.PriceSpikeZScore,
		VolumeSurgeRatio: cfg.Detectors.VolumeSurgeRatio,
		VolatilityRatio:  cfg.Detectors.VolatilityRatio,
		VWAPDeviationPct: cfg.Detectors.VWAPDeviationPct,
		MinHistory:       cfg.Detectors.MinHistory,
	})
}

// ProvideAlertChannels builds the configured delivery channels. An
// empty list falls back to console so fired signals are never silent.
func ProvideAlertChannels(cfg *config.Config) ([]alert.Channel, error) {
	blocks := cfg.Alerts
	if len(blocks) == 0 {
		blocks = []config.AlertChannel{{Type: "console"}}
	}
	cfgs := make([]alert.ChannelConfig, 0, len(blocks))
	for _, b := range blocks {
		cfgs = append(cfgs, alert.ChannelConfig{Type: b.Type, Options: b.Options})
	}
	return alert.BuildAll(cfgs)
}

// ProvideDispatcher creates the alert dispatcher.
func ProvideDispatcher(channels []alert.Channel, metrics repository.Metrics, logger *applogger.Logger) *alert.Dispatcher {
	return alert.NewDispatcher(channels, metrics, logger)
}

// ProvideFinnhubStream creates the Finnhub WebSocket stream.
func ProvideFinnhubStream(cfg *config.Config) repository.MarketStream {
	return finnhub.New(
		cfg.Source.APIKey,
		cfg.Source.WebSocketURL,
		cfg.Source.Symbols,
		cfg.Source.ReconnectDelay,
		cfg.Source.PingInterval,
	)
}

// ProvideTickSource creates the Finnhub REST poller.
func ProvideTickSource(cfg *config.Config) repository.TickSource {
	return finnhub.NewPoller(cfg.Source.APIKey, cfg.Source.BaseURL, cfg.Source.RequestTimeout)
}

// ProvideLiveHub creates the websocket fan-out hub.
func ProvideLiveHub(logger *applogger.Logger) *api.LiveHub {
	return api.NewLiveHub(logger)
}

// ProvidePipeline creates the orchestrator use case.
func ProvidePipeline(
	cfg *config.Config,
	source repository.TickSource,
	store repository.TickStore,
	sigStore repository.SignalStore,
	det *detector.Detector,
	disp *alert.Dispatcher,
	metrics repository.Metrics,
	logger *applogger.Logger,
	publisher repository.Publisher,
	hub *api.LiveHub,
) *usecase.Pipeline {
	opts := []usecase.Option{usecase.WithEventSink(hub)}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	return usecase.NewPipeline(
		usecase.Config{
			Symbols:    cfg.Source.Symbols,
			Interval:   cfg.Source.PollInterval,
			WindowSize: cfg.Detectors.WindowSize,
			RetryMax:   cfg.Source.RetryMax,
			BackoffMin: cfg.Source.BackoffMin,
			BackoffMax: cfg.Source.BackoffMax,
		},
		source, store, sigStore, det, disp, metrics, logger,
		opts...,
	)
}

// ProvideStreamCollector creates the stream collector use case.
func ProvideStreamCollector(
	stream repository.MarketStream,
	pipeline *usecase.Pipeline,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.StreamCollector {
	// Validate and throttle between WebSocket and the pipeline
	guard := mid.NewStreamGuard(pipeline, metrics,
		mid.WithMaxRPS(cfg.Source.MaxRPS),
		mid.WithBufferSize(cfg.Source.BufferSize),
	)
	return usecase.NewStreamCollector(stream, pipeline, metrics, guard)
}

// ProvideBytesCache selects the response cache backend.
func ProvideBytesCache(cfg *config.Config) cache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return cache.NewTTLCache()
}

// ProvideTicksHandler creates the HTTP read API handler.
func ProvideTicksHandler(
	logger *applogger.Logger,
	store repository.TickStore,
	sigStore repository.SignalStore,
	c cache.BytesCache,
	hub *api.LiveHub,
) *api.TicksHandler {
	return api.NewTicksHandler(logger, store, sigStore, c, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	pipeline *usecase.Pipeline,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	store repository.TickStore,
	publisher repository.Publisher,
	handler *api.TicksHandler,
) *server.App {
	// Ship aggregated error logs to Kafka when a bus is available
	if pub, ok := publisher.(applogger.Publisher); ok && cfg.Kafka.LogsTopic != "" {
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      pub,
		})
	}
	app := server.New(cfg, logger, pipeline, collector, consumer, kh, store, publisher)
	app.SetHTTPHandler(handler)
	return app
}
