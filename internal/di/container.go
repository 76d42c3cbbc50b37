package di

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/aggregation"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/queries"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/interfaces/ops"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/scheduler"
)

// Container holds the fully wired worker components. It owns no global
// state; two containers in one process are completely independent.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Metrics    *observability.Collector
	Cache      *cache.Store
	Aggregator *aggregation.Aggregator
	Optimizer  *queries.Optimizer
	Scheduler  *scheduler.Scheduler
	OpsServer  *ops.Server
}

// Start launches the background components. The ops server is started
// separately by the caller so it can own the listener error.
func (c *Container) Start() {
	c.Cache.Start()
	c.Scheduler.Start()
}

// Stop shuts the background components down, bounded by ctx.
func (c *Container) Stop(ctx context.Context) error {
	err := c.Scheduler.Stop(ctx)
	c.Cache.Stop()
	return err
}

// ApplyLoggingConfig retunes the log level from a reloaded configuration.
// An unparseable level leaves the current one in place.
func (c *Container) ApplyLoggingConfig(cfg *config.Config) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		c.Logger.Warn("Ignoring invalid log level in reloaded configuration",
			zap.String("level", cfg.Logging.Level))
		return
	}
	c.LogLevel.SetLevel(level)
}
