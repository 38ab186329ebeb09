package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/config"
	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/obs"
	"github.com/noah-isme/b2b-storefront/internal/rates"
	"github.com/noah-isme/b2b-storefront/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "storefront"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts := mustParseRedis(cfg, logger)
	redisClient := mustInitRedis(ctx, redisOpts, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	refresher := &rates.Refresher{
		HTTP: resilience.HTTPClient{
			Client: resilience.NewTracedClient(cfg.RateRequestTimeout),
			Breaker: resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
				WithTarget("exchange_rates").
				WithLogger(logger),
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.RetryMaxAttempts,
			Jitter:      cfg.RetryJitterPercent,
			Timeout:     cfg.RateRequestTimeout,
		},
		SourceURL: cfg.RateSourceURL,
		Store:     rates.PGStore{Pool: pool},
		Cache:     rates.Cache{Client: redisClient, TTL: cfg.RateCacheTTL},
		Base:      cfg.AltCurrencyCode,
		Quote:     cfg.CurrencyCode,
		Logger:    logger.With().Str("task", rates.TaskRefresh).Logger(),
	}
	dispatcher := &events.Dispatcher{
		Mailer: common.LogEmailSender{Logger: logger.With().Str("component", "mailer").Logger()},
		Logger: logger.With().Str("task", events.TaskDeliver).Logger(),
	}

	mux := asynq.NewServeMux()
	mux.Handle(rates.TaskRefresh, refresher)
	mux.Handle(events.TaskDeliver, dispatcher)

	redisConn := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.QueueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	entryID, err := scheduler.Register(cfg.RateRefreshCron, rates.NewRefreshTask(), asynq.Queue(cfg.QueueName))
	if err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.RateRefreshCron).Msg("register rate refresh")
	}
	logger.Info().Str("entry", entryID).Str("cron", cfg.RateRefreshCron).Msg("rate refresh scheduled")

	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	if err := server.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("queue", cfg.QueueName).Msg("worker starting")

	<-ctx.Done()
	scheduler.Shutdown()
	server.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "storefront-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustParseRedis(cfg *config.Config, logger zerolog.Logger) *redis.Options {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	return redisOpts
}

func mustInitRedis(ctx context.Context, opts *redis.Options, logger zerolog.Logger) *redis.Client {
	redisClient := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
