// Package di wires the worker's components together with google/wire.
package di

import (
	"context"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/aggregation"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/jobs"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/queries"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/decorators"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/dynamodb"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/interfaces/ops"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/repository"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/scheduler"
)

func provideLogLevel(cfg *config.Config) zap.AtomicLevel {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	return zap.NewAtomicLevelAt(level)
}

// provideLogger builds the process logger around a shared AtomicLevel so a
// config reload can retune verbosity without a restart.
func provideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == config.Production {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	zapCfg.Encoding = cfg.Logging.Format

	return zapCfg.Build()
}

func provideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideCacheStore(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) *cache.Store {
	return cache.NewStore(cfg.Cache, logger, metrics)
}

func provideDynamoClient(ctx context.Context, cfg *config.Config) (*awsdynamodb.Client, error) {
	return dynamodb.NewClient(ctx, cfg.Database)
}

func provideSessionReader(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) repository.SessionReader {
	repo := dynamodb.NewSessionRepository(client, cfg.Database, logger, metrics)
	return decorators.NewBreakerSessionReader(repo, logger)
}

func provideWindowStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) repository.WindowStore {
	store := dynamodb.NewWindowStore(client, cfg.Database, logger, metrics)
	return decorators.NewBreakerWindowStore(store, logger)
}

func provideAggregator(sessions repository.SessionReader, windows repository.WindowStore, cacheStore *cache.Store, logger *zap.Logger, metrics *observability.Collector) *aggregation.Aggregator {
	return aggregation.New(sessions, windows, cacheStore, logger, metrics)
}

func provideOptimizer(cfg *config.Config, cacheStore *cache.Store, logger *zap.Logger, metrics *observability.Collector) *queries.Optimizer {
	return queries.NewOptimizer(cacheStore, cfg.Query.SlowThreshold, logger, metrics)
}

func provideNotifier(logger *zap.Logger) *scheduler.Notifier {
	return scheduler.NewNotifier(logger)
}

func provideScheduler(cfg *config.Config, notifier *scheduler.Notifier, logger *zap.Logger, metrics *observability.Collector) *scheduler.Scheduler {
	return scheduler.New(cfg.Scheduler, notifier, logger, metrics)
}

func provideOpsServer(cfg *config.Config, sched *scheduler.Scheduler, aggregator *aggregation.Aggregator, cacheStore *cache.Store, optimizer *queries.Optimizer, metrics *observability.Collector, logger *zap.Logger) *ops.Server {
	return ops.NewServer(cfg.Server, sched, aggregator, cacheStore, optimizer, metrics, logger)
}

func provideContainer(cfg *config.Config, logger *zap.Logger, logLevel zap.AtomicLevel, metrics *observability.Collector, cacheStore *cache.Store, aggregator *aggregation.Aggregator, optimizer *queries.Optimizer, sched *scheduler.Scheduler, opsServer *ops.Server) *Container {
	jobs.RegisterHandlers(sched, aggregator, cacheStore, optimizer)
	for _, op := range aggregation.WarmOperations(aggregator) {
		cacheStore.RegisterWarmOperation(op)
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		LogLevel:   logLevel,
		Metrics:    metrics,
		Cache:      cacheStore,
		Aggregator: aggregator,
		Optimizer:  optimizer,
		Scheduler:  sched,
		OpsServer:  opsServer,
	}
}
