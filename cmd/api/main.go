package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/ruz-auth/internal/auth"
	"github.com/Proton-105/ruz-auth/internal/company"
	"github.com/Proton-105/ruz-auth/internal/database"
	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/hash"
	"github.com/Proton-105/ruz-auth/internal/health"
	"github.com/Proton-105/ruz-auth/internal/httpapi"
	"github.com/Proton-105/ruz-auth/internal/idempotency"
	"github.com/Proton-105/ruz-auth/internal/jobs"
	"github.com/Proton-105/ruz-auth/internal/jobs/handlers"
	"github.com/Proton-105/ruz-auth/internal/lifecycle"
	"github.com/Proton-105/ruz-auth/internal/middleware"
	"github.com/Proton-105/ruz-auth/internal/otp"
	"github.com/Proton-105/ruz-auth/internal/ratelimit"
	"github.com/Proton-105/ruz-auth/internal/registry"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/internal/ruz"
	"github.com/Proton-105/ruz-auth/internal/state"
	"github.com/Proton-105/ruz-auth/internal/token"
	"github.com/Proton-105/ruz-auth/pkg/config"
	"github.com/Proton-105/ruz-auth/pkg/graceful"
	"github.com/Proton-105/ruz-auth/pkg/logger"
	"github.com/Proton-105/ruz-auth/pkg/redis"
)

const (
	rateLimitBucketMaxAge = time.Hour
	idempotencyCleanEvery = time.Hour
	decodeCacheCleanEvery = 10 * time.Minute
	shutdownHookTimeout   = 20 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ruz-auth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(cfg)
	config.Watch(v, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
		log.Info("config reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("config reload rejected", slog.Any("error", err))
	})

	log.Info("starting ruz-auth", slog.String("port", cfg.Server.Port))

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}

	if cfg.Database.MigrationsEnabled {
		if err := database.NewMigrator(db.DB, log).Apply(ctx, database.Migrations()); err != nil {
			_ = db.Close()
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	rdb, err := redis.New(ctx, redis.ConfigFrom(cfg.Redis))
	if err != nil {
		_ = db.Close()
		return err
	}

	shutdown := lifecycle.NewShutdown(log)
	probes := buildProbes(db, rdb, log)
	go func() {
		<-ctx.Done()
		_ = probes.Drain(context.Background())
	}()

	router, background := buildRouter(cfg, db, rdb, probes, log)

	if cfg.Jobs.Enabled {
		startJobs(cfg, db, shutdown, log)
	}

	for _, task := range background {
		go task(ctx)
	}

	server := graceful.NewServer(log, cfg.Server, router)
	serveErr := server.ListenAndServe(ctx)

	hookCtx, cancel := context.WithTimeout(context.Background(), shutdownHookTimeout)
	defer cancel()

	shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if err := shutdown.Execute(hookCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	return serveErr
}

func buildProbes(db *sqlx.DB, rdb *redis.Client, log *slog.Logger) *lifecycle.Probes {
	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db.DB))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))

	return lifecycle.NewProbes(checker, log)
}

// buildRouter wires the request path. It also returns the periodic cleanup loops to start.
func buildRouter(
	cfg *config.Config,
	db *sqlx.DB,
	rdb *redis.Client,
	probes *lifecycle.Probes,
	log *slog.Logger,
) (*gin.Engine, []func(context.Context)) {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	users := repository.NewUserRepository(db, log)
	companies := repository.NewCompanyRepository(db, log)
	dictionary := repository.NewDictionaryRepository(db, log)

	otpClient := otp.NewClient(cfg.OTP, nil, log)
	registryClient := registry.NewClient(cfg.Registry, nil, log)

	workflow := auth.NewWorkflow(
		users,
		state.NewStateMachine(users, log, rdb.Client),
		otpClient,
		company.NewEnricher(registryClient, companies, log),
		hash.NewService(),
		log,
	)

	var background []func(context.Context)

	var cache ruz.Cache
	if cfg.Decode.Backend == "redis" {
		cache = ruz.NewRedisCache(redis.NewMetricsClient(rdb))
	} else {
		memory := ruz.NewMemoryCache()
		cache = memory
		background = append(background, every(decodeCacheCleanEvery, func(context.Context) {
			if n := memory.Cleanup(); n > 0 {
				log.Debug("decode cache entries expired", slog.Int("removed", n))
			}
		}))
	}
	decoder := ruz.NewDecoder(dictionary, cache, cfg.Decode.TTL, cfg.Decode.NegativeTTL, log)

	memoryLimiter := ratelimit.NewMemoryLimiter()
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memoryLimiter, log)
	limits := middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log)
	if cfg.RateLimit.Enabled {
		cleaner := ratelimit.NewCleaner(rdb.Client, memoryLimiter, log, cfg.RateLimit.CleanupInterval, rateLimitBucketMaxAge)
		background = append(background, cleaner.Run)
	}

	idem := idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)
	idemCleaner := idempotency.NewCleaner(rdb.Client, log, idempotencyCleanEvery, httpapi.DefaultIdempotencyTTL+time.Hour)
	background = append(background, idemCleaner.Run)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	tokens := token.NewService(cfg.Auth)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:        httpapi.NewAuthHandler(workflow, tokens, limits, apperrors.NewHandler(log, cfg.Sentry.Enabled), log),
		Ruz:         httpapi.NewRuzHandler(decoder, companies, log),
		User:        httpapi.NewUserHandler(users, log),
		Health:      httpapi.NewHealthHandler(probes),
		Tokens:      tokens,
		Idempotency: idem,
		RateLimit:   limits,
		MetricsPath: metricsPath,
		Log:         log,
	})

	return router, background
}

func startJobs(cfg *config.Config, db *sqlx.DB, shutdown *lifecycle.Shutdown, log *slog.Logger) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	importer := ruz.NewImporter(
		registry.NewClient(cfg.Registry, nil, log),
		repository.NewDictionaryRepository(db, log),
		nil,
		log,
	)

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeDictionaryImport, handlers.NewDictionaryImportHandler(importer, log))
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.ImportCron, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
	} else {
		scheduler.Run()
	}

	shutdown.Register("jobs", func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return nil
	})
}

// every runs fn on a ticker until ctx is cancelled.
func every(interval time.Duration, fn func(context.Context)) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}
}
