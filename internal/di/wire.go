//go:build wireinject
// +build wireinject

package di

import (
	"PolySentry/pkg/config"
	"PolySentry/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideLedger,
		ProvideArchive,
		ProvideKafkaProducer,
		ProvideAuditPublisher,
		ProvideKafkaConsumer,

		// External services
		ProvideStream,
		ProvideResolver,
		ProvideAnalyzer,
		ProvideExecutor,
		ProvideNotifier,

		// Detection and risk
		ProvideEngine,
		ProvideWindow,
		ProvideRolloverRelay,
		ProvideRiskManager,
		ProvideTracker,

		// Pipeline
		ProvideNormalizer,
		ProvideResolutionHandler,
		ProvideOrchestrator,

		// HTTP
		ProvideOpsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
