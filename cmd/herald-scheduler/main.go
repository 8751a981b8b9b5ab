// Herald Scheduler — периодический trigger доставки публикаций.
//
// Scheduler:
//   - По cron выбирает due и retryable schedules и публикует посты
//   - Выполняет проход только на держателе lease (Postgres или Redis)
//   - Принимает ручные запросы trigger'а из очереди schedules.trigger
//   - Публикует итоги попыток в RabbitMQ
//
// Экземпляров может быть несколько: claim schedule исключает
// повторную публикацию.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Herald/internal/config"
	"github.com/shaiso/Herald/internal/lease"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/scheduler"
	"github.com/shaiso/Herald/internal/telemetry"
	"github.com/shaiso/Herald/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting herald-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	pub, err := publisher.FromMode(cfg.PublisherMode, cfg.PublisherWebhookURL, cfg.PublishRatePerSec, logger)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}

	svcCfg := scheduler.Config{
		Brands:          repo.NewBrandRepo(pool),
		Campaigns:       repo.NewCampaignRepo(pool),
		Posts:           repo.NewPostRepo(pool),
		Schedules:       repo.NewScheduleRepo(pool),
		Publisher:       pub,
		Logger:          logger,
		MaxRetryCount:   cfg.MaxRetryCount,
		PostingHour:     &cfg.PostingHour,
		PublishTimeout:  cfg.PublishTimeout,
		ClaimLease:      cfg.ClaimLease,
		Concurrency:     cfg.TriggerConcurrency,
		BatchSize:       cfg.TriggerBatchSize,
		DefaultPlatform: cfg.DefaultPlatform,
	}

	// RabbitMQ
	var mqConn *mq.Connection
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in cron-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			} else {
				logger.Debug("topology ready", "topology", mq.TopologyInfo())
			}
			svcCfg.Notifier = mq.NewPublisher(mqConn, logger)
		}
	}

	service := scheduler.New(svcCfg)

	locker, closeLocker, err := newLocker(cfg, pool, logger)
	if err != nil {
		logger.Error("failed to create lease", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	driver, err := trigger.New(trigger.Config{
		Runner: service,
		Locker: locker,
		Logger: logger,
		Spec:   cfg.TriggerCron,
	})
	if err != nil {
		logger.Error("failed to create trigger driver", "error", err)
		os.Exit(1)
	}

	if err := driver.Start(ctx); err != nil {
		logger.Error("failed to start trigger driver", "error", err)
		os.Exit(1)
	}

	// Ручные запросы trigger'а из очереди
	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueTrigger,
			Handler: driver.Handler(),
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("trigger consumer stopped", "error", err)
			}
		}()
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok leader=%t mq=%t", driver.IsLeader(), mqConn != nil && mqConn.IsConnected())
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.SchedPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.PublishTimeout+10*time.Second)
	defer shutdownCancel()

	if err := driver.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop trigger driver", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("herald-scheduler stopped")
}

// newLocker выбирает lease: Redis при заданном REDIS_URL, иначе
// advisory lock Postgres.
func newLocker(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (lease.Locker, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("using postgres advisory lease", "key", lease.DefaultAdvisoryKey)
		return lease.NewPostgres(pool, lease.DefaultAdvisoryKey), func() {}, nil
	}

	client, err := lease.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis lease", "key", lease.DefaultRedisKey, "ttl", cfg.LeaseTTL)
	return lease.NewRedis(client, lease.DefaultRedisKey, cfg.LeaseTTL), func() { _ = client.Close() }, nil
}
