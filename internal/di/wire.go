//go:build wireinject
// +build wireinject

package di

import (
	"EquityPulse/pkg/config"
	"EquityPulse/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	// Infrastructure
	ProvideLogger,
	ProvideTables,
	ProvideStore,
	ProvideCache,
	ProvideKafkaProducer,
	ProvideRunPublisher,
	ProvideMetrics,

	// Use cases
	ProvideCalculator,
	ProvideFeatureEngine,
	ProvideFeatureRunner,
	ProvideFeatureQuery,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		coreSet,

		// Transports
		ProvideRateLimiter,
		ProvideFeaturesHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvidePricesLoadedHandler,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeTools wires the engine and query services for one-shot commands.
func InitializeTools(cfg *config.Config) (*Tools, error) {
	wire.Build(coreSet, ProvideTools)
	return &Tools{}, nil
}
