package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"medtrack/internal/auth"
	"medtrack/internal/config"
	apphttp "medtrack/internal/http"
	"medtrack/internal/metrics"
	"medtrack/internal/ratelimit"
	"medtrack/internal/repository"
	"medtrack/internal/repository/postgres"
	"medtrack/internal/repository/sqlite"
	"medtrack/internal/service"
	"medtrack/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, userRepo, recordRepo, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	if err := m.RegisterDB(db, "medtrack"); err != nil {
		logger.Warnf("register db metrics: %v", err)
	}

	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.TokenTTL(), auth.WithPreviousSecrets(cfg.Auth.PreviousSecrets...))
	if err != nil {
		logger.Fatalf("token codec: %v", err)
	}
	resolver := auth.NewResolver(userRepo, hasher, codec, logger)

	userService := service.NewUserService(userRepo, hasher, logger)
	if cfg.Auth.BootstrapAdminEmail != "" {
		admin, created, err := userService.EnsureAdmin(ctx, service.NewAccount{
			Email:    cfg.Auth.BootstrapAdminEmail,
			Name:     cfg.Auth.BootstrapAdminName,
			Password: cfg.Auth.BootstrapAdminPassword,
		})
		if err != nil {
			logger.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			logger.Infof("created bootstrap admin %s (id %d)", admin.Email(), admin.ID())
		}
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup rate limiter: %v", err)
	}
	defer closeLimiter()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Users:     userService,
		Records:   service.NewHealthRecordService(recordRepo, userRepo),
		Analytics: service.NewAnalyticsService(userRepo, recordRepo),
		Exports: service.NewExportService(storageSvc, service.ArchiveOptions{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			URLExpiry: cfg.Storage.URLExpiry,
		}, logger),
		Resolver:    resolver,
		Gate:        auth.NewGate(resolver),
		Limiter:     limiter,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,

		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err := handler.RegisterRoutes(router); err != nil {
		logger.Fatalf("register routes: %v", err)
	}

	srv := newServer(cfg, router)

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, repository.UserRepository, repository.HealthRecordRepository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, postgres.NewUserRepository(db), postgres.NewHealthRecordRepository(db), nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, sqlite.NewUserRepository(db), sqlite.NewHealthRecordRepository(db), nil
	}
}

func buildLimiter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ratelimit.Limiter, func(), error) {
	limits := ratelimit.Config{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}

	switch cfg.RateLimit.Backend {
	case "off":
		logger.Warn("rate limiting disabled")
		return ratelimit.Noop{}, func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Infof("rate limiting via redis at %s", cfg.Redis.Addr)
		return ratelimit.NewRedisLimiter(client, limits, "medtrack:ratelimit:"), func() { client.Close() }, nil
	default:
		return ratelimit.NewMemoryLimiter(limits), func() {}, nil
	}
}

// buildStorage returns nil when no bucket is configured; archive exports are
// then reported as unavailable.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("no storage bucket configured, archive exports disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
