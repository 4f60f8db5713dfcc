package cli

import (
	"fmt"
	"time"

	"github.com/fekuna/omnipos-retail-loader/config"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/lock"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/notifier"
	invRepoPkg "github.com/fekuna/omnipos-retail-loader/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-retail-loader/internal/inventory/usecase"
	"github.com/fekuna/omnipos-retail-loader/internal/metrics"
	"github.com/fekuna/omnipos-retail-loader/pkg/broker"
	"github.com/fekuna/omnipos-retail-loader/pkg/cache"
	"github.com/fekuna/omnipos-retail-loader/pkg/database/postgres"
	"github.com/fekuna/omnipos-retail-loader/pkg/database/sqlite"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies a command needs. Everything it
// opens is released by Close in reverse order.
type app struct {
	cfg      *config.Config
	logger   logger.ZapLogger
	db       *sqlx.DB
	registry *prometheus.Registry
	metrics  *metrics.Recorder

	closers []func()
}

func newLogger(cfg *config.Config, verbose bool) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}
	if verbose {
		logConfig.Level = "debug"
	}
	return logger.NewZapLogger(logConfig)
}

// newApp loads the configuration and connects to the database.
func newApp(opts *RootOptions) (*app, error) {
	cfg := config.LoadEnv()

	a := &app{
		cfg:      cfg,
		logger:   newLogger(cfg, opts.Verbose),
		registry: prometheus.NewRegistry(),
	}
	a.closers = append(a.closers, func() { _ = a.logger.Sync() })

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewRecorder(a.registry)

	db, err := openDB(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	return a, nil
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.NewSQLite(cfg.SQLite.Path)
	case "postgres", "":
		return postgres.NewPostgres(&postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}

func (a *app) locker() (lock.Locker, error) {
	switch a.cfg.Inventory.LockBackend {
	case "memory", "":
		return lock.NewKeyedMutex(), nil
	case "redis":
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		a.logger.Info("Connected to Redis", zap.String("addr", a.cfg.Redis.Addr))

		return lock.NewRedisLocker(redisClient, lock.RedisConfig{
			TTL:        time.Duration(a.cfg.Inventory.LockTTLSeconds) * time.Second,
			Retries:    a.cfg.Inventory.LockRetries,
			RetryDelay: time.Duration(a.cfg.Inventory.LockRetryDelayMs) * time.Millisecond,
		}, a.logger.Named("lock")), nil
	default:
		return nil, fmt.Errorf("unknown INVENTORY_LOCK_BACKEND %q", a.cfg.Inventory.LockBackend)
	}
}

// inventoryUseCase wires the consistency engine. Restock notifications are
// published only when KAFKA_TOPIC_RESTOCK is set.
func (a *app) inventoryUseCase() (inventory.UseCase, error) {
	locker, err := a.locker()
	if err != nil {
		return nil, err
	}

	var n inventory.Notifier
	if topic := a.cfg.Kafka.RestockTopic; topic != "" {
		producer := broker.NewProducer(&broker.Config{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   topic,
		})
		a.closers = append(a.closers, func() { _ = producer.Close() })
		n = notifier.NewKafkaNotifier(producer)
		a.logger.Info("Publishing restock events", zap.String("topic", topic))
	}

	return invUCPkg.NewInventoryUseCase(invRepoPkg.NewSQLRepository(a.db), locker, invUCPkg.Options{
		DefaultReorderThreshold: int64(a.cfg.Inventory.DefaultReorderThreshold),
		AllowNegative:           a.cfg.Inventory.AllowNegative,
		Notifier:                n,
		Metrics:                 a.metrics,
	}, a.logger.Named("inventory")), nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
