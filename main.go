package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/repositories/records"
	"github.com/Ramsey-B/fern/pkg/archive"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/remote/rest"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tokenizer"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("fern exited with an error")
		os.Exit(1)
	}
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build(zap.Fields(zap.String("app", cfg.AppName)))
}

// services holds everything the startup dependencies create.
type services struct {
	redis     *redis.Client
	db        database.DB
	snapshots cache.Store
	store     remote.Store
	archive   archive.Archive
	publisher events.Publisher
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLPEnabled, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	svc := &services{publisher: events.Nop{}}
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	registerDependencies(boot, cfg, logger, svc)

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("failed to stop dependencies cleanly")
		}
	}()

	opts := []orchestrator.Option{orchestrator.WithPublisher(svc.publisher)}
	if cfg.SaveLockEnabled {
		opts = append(opts, orchestrator.WithLocker(orchestrator.RedisLocker(redis.NewLocker(svc.redis, "")), cfg.SaveLockTTL))
	}
	orch := orchestrator.New(logger, svc.snapshots, svc.store, cfg.WriterConfig(), opts...)
	if !orch.Configured() {
		logger.Warn("no remote store configured, saves stay local")
	}

	pipeline := ingest.NewPipeline(logger,
		tokenizer.New(logger, tokenizer.WithDelimiter(cfg.Delimiter())),
		schema.NewMapper(logger),
		ingest.WithDefaultYear(cfg.IngestDefaultYear),
		ingest.WithSampleSize(cfg.IngestSampleSize),
	)

	checker := health.NewChecker(cfg.Version)
	checker.AddCheck("cache", health.PingFunc(func(ctx context.Context) error {
		_, _, err := svc.snapshots.Read(ctx, models.KindQuote)
		return err
	}), true)
	if pinger, ok := svc.store.(remote.Pinger); ok {
		checker.AddCheck("remote", pinger, false)
	}

	e := newEcho(cfg, logger)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewRecordsHandler(logger, pipeline, orch, svc.archive).RegisterRoutes(api)
	handlers.NewQuotesHandler(orch).RegisterRoutes(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho(cfg config.Config, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	return e
}

func registerDependencies(boot *startup.Startup, cfg config.Config, logger ectologger.Logger, svc *services) {
	needsRedis := cfg.CacheDriver == string(cache.DriverRedis) || cfg.SaveLockEnabled

	if needsRedis {
		boot.AddDependency(&startup.Dependency{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return err
				}
				svc.redis = client
				return nil
			},
			OnStop: func(context.Context) error {
				return svc.redis.Close()
			},
		})
	}

	var cacheRequires []string
	if cfg.CacheDriver == string(cache.DriverRedis) {
		cacheRequires = []string{"redis"}
	}
	var sqliteCache *cache.SQLite
	boot.AddDependency(&startup.Dependency{
		Name:     "cache",
		Requires: cacheRequires,
		OnStart: func(ctx context.Context) error {
			switch cache.Driver(cfg.CacheDriver) {
			case cache.DriverMemory:
				svc.snapshots = cache.NewMemory()
			case cache.DriverRedis:
				svc.snapshots = cache.NewRedis(svc.redis, cfg.CacheRedisPrefix, logger)
			default:
				store, err := cache.NewSQLite(ctx, cfg.CacheSQLitePath, logger)
				if err != nil {
					return err
				}
				sqliteCache = store
				svc.snapshots = store
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if sqliteCache != nil {
				return sqliteCache.Close()
			}
			return nil
		},
	})

	switch cfg.RemoteDriver {
	case "postgres":
		var conn interface{ Close() error }
		boot.AddDependency(&startup.Dependency{
			Name: "database",
			OnStart: func(ctx context.Context) error {
				db, err := database.Connect(ctx, database.ConnectionConfig{
					Host:            cfg.DatabaseHost,
					Port:            cfg.DatabasePort,
					User:            cfg.DatabaseUserName,
					Password:        cfg.DatabasePassword,
					Name:            cfg.DatabaseName,
					SSLMode:         cfg.DatabaseSSLMode,
					MaxOpenConns:    cfg.DatabaseMaxOpenConns,
					MaxIdleConns:    cfg.DatabaseMaxIdleConns,
					ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
				}, logger)
				if err != nil {
					return err
				}
				conn = db

				migrations := database.NewMigrationService(logger, &database.MigrationConfig{
					MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
					Version:             uint(cfg.DatabaseMigrationVersion),
					Force:               cfg.DatabaseMigrationForce,
					AutoRollback:        cfg.DatabaseMigrationAutoRollback,
				})
				if err := migrations.Migrate(cfg.DatabaseName, db.DB); err != nil {
					_ = db.Close()
					return err
				}

				svc.db = database.NewDatabaseInstance(db, logger)
				svc.store = records.NewRepository(svc.db, logger)
				return nil
			},
			OnStop: func(context.Context) error {
				if conn != nil {
					return conn.Close()
				}
				return nil
			},
		})
	case "rest":
		boot.AddDependency(&startup.Dependency{
			Name: "rest",
			OnStart: func(ctx context.Context) error {
				restCfg := rest.DefaultConfig()
				restCfg.BaseURL = cfg.RestBaseURL
				restCfg.APIKey = cfg.RestAPIKey
				restCfg.Timeout = cfg.RestTimeout
				restCfg.PageSize = cfg.RestPageSize
				store := rest.NewStore(restCfg, logger)
				if err := store.Ping(ctx); err != nil {
					logger.WithContext(ctx).WithError(err).Warn("rest remote is not reachable yet, continuing")
				}
				svc.store = store
				return nil
			},
		})
	}

	switch archive.Driver(cfg.ArchiveDriver) {
	case archive.DriverMemory:
		svc.archive = archive.NewMemory()
	case archive.DriverS3:
		boot.AddDependency(&startup.Dependency{
			Name: "archive",
			OnStart: func(ctx context.Context) error {
				store, err := archive.NewS3(ctx, archive.S3Config{
					Region:    cfg.ArchiveS3Region,
					Bucket:    cfg.ArchiveS3Bucket,
					Endpoint:  cfg.ArchiveS3Endpoint,
					PathStyle: cfg.ArchiveS3PathStyle,
				}, logger, func(o *s3.Options) {
					o.AppID = cfg.AppName
				})
				if err != nil {
					return err
				}
				svc.archive = store
				return nil
			},
		})
	}

	if cfg.KafkaEnabled {
		var producer *events.Producer
		boot.AddDependency(&startup.Dependency{
			Name: "kafka",
			OnStart: func(context.Context) error {
				producer = events.NewProducer(events.ParseConfig(cfg.KafkaBrokers, cfg.KafkaSyncTopic), logger)
				svc.publisher = producer
				return nil
			},
			OnStop: func(context.Context) error {
				return producer.Close()
			},
		})
	}
}
