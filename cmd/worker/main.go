package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pasarhq/backend-pasar/internal/config"
	"github.com/pasarhq/backend-pasar/internal/events"
	"github.com/pasarhq/backend-pasar/internal/notify"
	"github.com/pasarhq/backend-pasar/internal/obs"
	"github.com/pasarhq/backend-pasar/internal/store"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "worker").Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "pasar"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool := mustInitDatabase(ctx, logger, cfg.DatabaseURL)
	redisClient := mustInitRedis(ctx, logger, cfg.RedisURL)
	cancel()
	defer pool.Close()
	defer redisClient.Close()

	taskConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}

	cartStore := &store.Store{Pool: pool}
	bus := &events.Bus{Store: &events.PGStore{Pool: pool}}
	worker := &notify.Worker{
		Log:       logger,
		Store:     cartStore,
		Bus:       bus,
		IdleAfter: cfg.AbandonedAfter,
	}

	mux := asynq.NewServeMux()
	worker.Register(mux)

	srv := asynq.NewServer(taskConn, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      asynqLogger{logger},
	})

	scanTask, err := notify.NewAbandonedScanTask(cfg.AbandonedAfter)
	if err != nil {
		logger.Fatal().Err(err).Msg("build abandoned scan task")
	}
	scheduler := asynq.NewScheduler(taskConn, &asynq.SchedulerOpts{
		Logger: asynqLogger{logger},
	})
	cronSpec := fmt.Sprintf("@every %s", cfg.AbandonedScanEvery)
	if _, err := scheduler.Register(cronSpec, scanTask); err != nil {
		logger.Fatal().Err(err).Msg("register abandoned scan schedule")
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker server")
	}
	logger.Info().Dur("abandoned_after", cfg.AbandonedAfter).Msg("worker started")

	<-stopCtx.Done()
	logger.Info().Msg("worker shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
}

func mustInitDatabase(ctx context.Context, logger zerolog.Logger, databaseURL string) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pasar-worker"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, logger zerolog.Logger, redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
