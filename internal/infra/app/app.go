package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/config"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/database"
	kafkainfra "github.com/Dokus-Tech/dokus-auth/internal/infra/kafka"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/logger"
	redisinfra "github.com/Dokus-Tech/dokus-auth/internal/infra/redis"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/security"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/telemetry"
	"github.com/Dokus-Tech/dokus-auth/internal/limiter"
	postgresrepo "github.com/Dokus-Tech/dokus-auth/internal/repository/postgres"
	redisrepo "github.com/Dokus-Tech/dokus-auth/internal/repository/redis"
	"github.com/Dokus-Tech/dokus-auth/internal/transport/http/middleware"
	"github.com/Dokus-Tech/dokus-auth/internal/transport/http/routes"
	"github.com/Dokus-Tech/dokus-auth/internal/usecase"
)

// Application owns every long-lived component: the connection pools, the
// background sweep and cleanup loops, and the HTTP engine.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider

	memThrottle *limiter.MemoryThrottle
	cleanup     *usecase.TokenCleanup
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	issuer, err := security.NewTokenIssuer(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	throttleCfg := limiter.Config{
		MaxAttempts:     cfg.RateLimit.MaxAttempts,
		AttemptWindow:   cfg.RateLimit.AttemptWindow,
		LockoutDuration: cfg.RateLimit.LockoutDuration,
		SweepInterval:   cfg.RateLimit.SweepInterval,
	}

	var (
		throttle    port.LoginThrottle
		memThrottle *limiter.MemoryThrottle
		redisClient *redisinfra.Client
	)
	if cfg.RateLimit.Store == "redis" {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		attemptStore := redisrepo.NewAttemptStore(redisClient.Client(), redisrepo.AttemptStoreConfig{
			KeyPrefix: "dokus:attempts",
			TTL:       throttleCfg.AttemptWindow + throttleCfg.LockoutDuration,
		})
		throttle = limiter.NewStoreThrottle(attemptStore, throttleCfg, log)
		log.Info("login throttle backed by redis attempt store")
	} else {
		memThrottle = limiter.NewMemoryThrottle(throttleCfg, log)
		throttle = memThrottle
	}

	tokenRepo := postgresrepo.NewTokenRepository(pool)
	accountRepo := postgresrepo.NewAccountRepository(pool)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	rotator := usecase.NewTokenRotator(tokenRepo, eventPublisher, log)
	orchestrator := usecase.NewAuthOrchestrator(cfg, accountRepo, tokenRepo, throttle, issuer, rotator, eventPublisher, log)
	cleanup := usecase.NewTokenCleanup(tokenRepo, cfg.Tokens.CleanupInterval, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Auth:     orchestrator,
		Issuer:   issuer,
		Metrics:  metrics,
		Database: pool,
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}
	engine := routes.Register(deps)

	return &Application{
		cfg:         cfg,
		engine:      engine,
		logger:      log,
		pool:        pool,
		redis:       redisClient,
		tracer:      tracer,
		memThrottle: memThrottle,
		cleanup:     cleanup,
	}, nil
}

// Run starts the background loops and the HTTP server, then blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	if a.memThrottle != nil {
		a.memThrottle.Start()
		defer a.memThrottle.Stop()
	}

	a.cleanup.Start()
	defer a.cleanup.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
