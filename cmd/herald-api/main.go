// Herald API — HTTP API планировщика публикаций.
//
// Создаёт расписания кампаний, переносит публикации и запускает
// проход trigger'а по запросу. Итоги попыток публикуются в RabbitMQ,
// если он доступен.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Herald/internal/api"
	"github.com/shaiso/Herald/internal/config"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/scheduler"
	"github.com/shaiso/Herald/internal/telemetry"
	"github.com/shaiso/Herald/internal/trigger"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting herald-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
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
	logger.Info("connected to database")

	pub, err := publisher.FromMode(cfg.PublisherMode, cfg.PublisherWebhookURL, cfg.PublishRatePerSec, logger)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}

	brandRepo := repo.NewBrandRepo(pool)
	campaignRepo := repo.NewCampaignRepo(pool)
	postRepo := repo.NewPostRepo(pool)

	svcCfg := scheduler.Config{
		Brands:          brandRepo,
		Campaigns:       campaignRepo,
		Posts:           postRepo,
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

	// RabbitMQ опционален: без него итоги попыток только логируются,
	// а async trigger недоступен
	var queue api.Enqueuer
	if cfg.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, outcomes will not be published", "error", err)
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			mqPublisher := mq.NewPublisher(mqConn, logger)
			svcCfg.Notifier = mqPublisher
			queue = mqPublisher
			logger.Info("RabbitMQ connected")
		}
	}

	service := scheduler.New(svcCfg)

	// Driver без Start: API запускает проходы только вручную
	driver, err := trigger.New(trigger.Config{
		Runner: service,
		Logger: logger,
		Spec:   cfg.TriggerCron,
	})
	if err != nil {
		logger.Error("failed to create trigger driver", "error", err)
		os.Exit(1)
	}

	catalog := scheduler.NewCatalog(scheduler.CatalogConfig{
		Brands:    brandRepo,
		Campaigns: campaignRepo,
		Posts:     postRepo,
		Logger:    logger,
	})

	handler := api.NewHandler(api.Config{
		Service: service,
		Catalog: catalog,
		Trigger: driver,
		Queue:   queue,
		Logger:  logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Ручной trigger может публиковать до PUBLISH_TIMEOUT
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.PublishTimeout+10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
