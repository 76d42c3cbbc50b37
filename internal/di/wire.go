//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
)

// InitializeContainer builds the full component graph.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(
		provideLogLevel,
		provideLogger,
		provideMetrics,
		provideCacheStore,
		provideDynamoClient,
		provideSessionReader,
		provideWindowStore,
		provideAggregator,
		provideOptimizer,
		provideNotifier,
		provideScheduler,
		provideOpsServer,
		provideContainer,
	)
	return nil, nil
}
