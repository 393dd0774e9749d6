// Package app wires configuration, infrastructure clients and services
// shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/pricing"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/ariefcatur/go-storefront-orders/internal/store/memory"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Container holds the process-wide singletons. Redis and Kafka are optional:
// without them the status cache, idempotency keys, dedup and events are off.
type Container struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *metrics.Engine

	Store    store.Store
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafkax.Producer

	Prices *pricing.Service
	Ledger *inventory.Ledger
	Orders *orders.Service
	Events *orders.Events

	traceShutdown func(context.Context) error
}

func NewContainer(ctx context.Context, cfg config.Config, role string) (*Container, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-"+role)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	c := &Container{Config: cfg, Logger: logger}

	c.traceShutdown, err = telemetry.Setup(ctx, cfg.ServiceName+"-"+role, cfg.OtelEndpoint)
	if err != nil {
		// tracing is best effort
		logger.Error("tracing disabled", zap.Error(err))
	}

	if err := c.setupStore(ctx); err != nil {
		return nil, err
	}

	if cfg.RedisAddr != "" {
		c.Redis = redisx.New(cfg.RedisAddr)
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		c.Producer = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
		c.Producer.Start(ctx)
	}

	c.Metrics = metrics.NewEngine(prometheus.DefaultRegisterer, cfg.ServiceName)
	c.Events = &orders.Events{Producer: cfg.ServiceName + "-" + role, Logger: logger}
	if c.Producer != nil {
		c.Events.Publisher = c.Producer
	}
	c.Prices = pricing.NewService(c.Store, logger)
	c.Ledger = inventory.NewLedger(c.Store, logger, c.Metrics, c.Events)
	c.Orders = &orders.Service{
		Store:   c.Store,
		Ledger:  c.Ledger,
		Prices:  c.Prices,
		Events:  c.Events,
		Logger:  logger,
		Metrics: c.Metrics,
		Tracer:  otel.Tracer("storefront/orders"),
	}
	if c.Redis != nil {
		c.Orders.Cache = c.StatusCache()
	}
	return c, nil
}

func (c *Container) setupStore(ctx context.Context) error {
	switch c.Config.StoreDriver {
	case "memory":
		st := memory.New()
		SeedDemo(st)
		c.Store = st
		c.Logger.Warn("using in-memory store; data is lost on exit")
	case "postgres":
		db, err := postgres.Connect(ctx, c.Config.PostgresDSN, 16)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		c.DB = db
		if c.Config.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			c.Logger.Info("schema migrated")
		}
		c.Store = postgres.NewStore(db, c.Logger, c.Config.TxMaxRetries)
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Config.StoreDriver)
	}
	return nil
}

// StatusCache returns nil when Redis is not configured.
func (c *Container) StatusCache() *redisx.StatusCache {
	if c.Redis == nil {
		return nil
	}
	return &redisx.StatusCache{RDB: c.Redis, Logger: c.Logger}
}

// Shutdown flushes producers and closes clients in reverse start order.
func (c *Container) Shutdown(ctx context.Context) {
	if c.Producer != nil {
		c.Producer.Close()
		c.Producer.WaitClosed()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("redis close", zap.Error(err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if c.traceShutdown != nil {
		if err := c.traceShutdown(ctx); err != nil {
			c.Logger.Error("trace shutdown", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
