package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/database"
	kafkainfra "github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/kafka"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/notify"
	redisinfra "github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/redis"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/security"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/telemetry"
	postgresrepo "github.com/Developer-AbhinavAF/affiliate-backend/internal/repository/postgres"
	redisrepo "github.com/Developer-AbhinavAF/affiliate-backend/internal/repository/redis"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/routes"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/usecase"
)

const tracerName = "github.com/Developer-AbhinavAF/affiliate-backend"

type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	telemetry *telemetry.Provider
	janitor   *usecase.LedgerJanitor
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryProvider, err := telemetry.Attach(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, ephemeral, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	if ephemeral {
		log.Warn("signing key directory unavailable, using an ephemeral key; tokens will not survive a restart",
			zap.String("key_directory", cfg.JWT.KeyDirectory),
		)
	}
	jwtManager := security.NewJWTManager(keyProvider, cfg.JWT.Issuer)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}, cfg.Argon2.MaxConcurrent)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	notifier, err := notify.New(cfg.SMTP, cfg.App.Env, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	stateCache := redisrepo.NewAccountStateCache(redisClient.Client(), cfg.Redis.AccountStatePrefix)

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
			producer = nil
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	metrics := telemetryProvider.Metrics()

	tokenService := usecase.NewTokenService(jwtManager, repos.Accounts, stateCache, cfg.JWT, cfg.Redis, log)
	tokenService.WithMetrics(metrics)

	otpManager := usecase.NewOTPManager(repos.Ledger, usecase.NewRateGovernor(repos.Ledger, cfg.OTP), hasher, notifier, cfg.OTP, log)
	otpManager.WithMetrics(metrics)

	passwordPolicy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MinStrengthScore)

	signupService := usecase.NewSignupService(repos.Accounts, otpManager, hasher, tokenService, eventPublisher, log)
	recoveryService := usecase.NewRecoveryService(repos.Accounts, otpManager, hasher, passwordPolicy, tokenService, eventPublisher, log)

	authService := usecase.NewAuthService(repos.Accounts, repos.LoginEvents, usecase.NewLoginGovernor(repos.Accounts, cfg.Lockout), hasher, tokenService, eventPublisher, log)
	authService.WithMetrics(metrics)

	accountService := usecase.NewAccountService(repos.Accounts, tokenService, eventPublisher, log)

	var janitor *usecase.LedgerJanitor
	if cfg.Janitor.Enabled {
		janitor = usecase.NewLedgerJanitor(repos.Ledger, cfg.Janitor, log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	var tracer trace.Tracer
	if tp := telemetryProvider.Tracer(); tp != nil {
		tracer = tp.Tracer(tracerName)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		JWTManager:  jwtManager,
		Database:    pool,
		Cache:       redisClient,
		HTTPMetrics: httpMetrics,
		Tracer:      tracer,
		Services: routes.ServiceSet{
			Signup:   signupService,
			Recovery: recoveryService,
			Auth:     authService,
			Accounts: accountService,
			Tokens:   tokenService,
		},
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		producer:  producer,
		telemetry: telemetryProvider,
		janitor:   janitor,
	}, nil
}

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
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	if a.janitor != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			a.janitor.Run(workerCtx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting credential API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.Bool("ledger_janitor", a.janitor != nil),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		a.logger.Info("credential API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}
