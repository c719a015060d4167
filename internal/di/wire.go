//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AShareData/pkg/config"
	"AShareData/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application
// with a cleanup that closes the store and cache.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Storage
		ProvideCache,
		ProvideStore,

		// Services
		ProvideReader,
		ProvideRowsHandler,

		// Transports
		ProvideFactorsHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		ProvideApp,
	)
	return nil, nil, nil
}
