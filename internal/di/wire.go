//go:build wireinject
// +build wireinject

package di

import (
	"ChainWatch/pkg/config"
	"ChainWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Swarm
		ProvideTransport,
		ProvideProber,
		ProvideRouter,

		// Chain access
		ProvideRecordCache,
		ProvideChainSource,
		ProvideChainStream,

		// Pipeline
		ProvideClassifier,
		ProvideQueue,
		ProvideAggregator,
		ProvideHandlers,
		ProvideWorkerPool,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideArchive,
		ProvideKafkaProducer,
		ProvideSink,
		ProvideKafkaConsumer,
		ProvideRecordsHandler,

		// Use cases
		ProvideControlLoop,
		ProvideStatusHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
