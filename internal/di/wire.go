//go:build wireinject
// +build wireinject

package di

import (
	"TickWatch/pkg/config"
	"TickWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Persistence
		ProvideStore,
		ProvideTickStore,
		ProvideSignalStore,

		// Kafka
		ProvideKafkaProducer,
		ProvidePublisher,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// Market data
		ProvideTickSource,
		ProvideFinnhubStream,

		// Detection and alerting
		ProvideDetector,
		ProvideAlertChannels,
		ProvideDispatcher,

		// Use cases
		ProvideLiveHub,
		ProvidePipeline,
		ProvideStreamCollector,

		// HTTP read API
		ProvideBytesCache,
		ProvideTicksHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
