//go:build wireinject
// +build wireinject

package di

import (
	"PricePulse/pkg/config"
	"PricePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStorages,
		ProvideSalesPublisher,
		ProvideOrderFeed,
		ProvideMarketStore,
		ProvideResultsStore,

		// Analytics engines
		ProvideSignalEngine,
		ProvideForecastParams,
		ProvideForecaster,
		ProvideElasticityEstimator,
		ProvidePriceOptimizer,
		ProvideRecommendationEngine,
		ProvideSimParams,
		ProvideSalesGenerator,

		// Caches and alerting
		ProvideCacheService,
		ProvideBytesCache,
		ProvideAlertNotifier,

		// Use cases
		ProvideSalesProcessor,
		ProvideSalesCollector,
		ProvideKafkaSalesHandler,
		ProvideSignalsUseCase,
		ProvideKPIUseCase,
		ProvideForecastUseCase,
		ProvidePricingUseCase,
		ProvideRecommendUseCase,
		ProvideHistoryUseCase,
		ProvideSimulateUseCase,

		// Jobs, HTTP surface, app
		ProvideQueue,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil
}
