package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"immuna/internal/dossier/rules"
	dossierstore "immuna/internal/dossier/store"
	"immuna/internal/notify"
	"immuna/internal/platform/config"
	"immuna/internal/platform/httpserver"
	"immuna/internal/platform/logger"
	"immuna/internal/platform/postgres"
	platformredis "immuna/internal/platform/redis"
	"immuna/internal/recalc/handler"
	"immuna/internal/recalc/jobs"
	"immuna/internal/recalc/kafka"
	"immuna/internal/recalc/metrics"
	"immuna/internal/recalc/ports"
	recalcqueue "immuna/internal/recalc/queue"
	"immuna/internal/recalc/runner"
	"immuna/internal/recalc/service"
)

// main wires dependencies and the server lifecycle. Business logic lives in
// the internal packages; everything optional degrades to an in-memory
// implementation so the engine runs without infrastructure in development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}

	var (
		dossiers ports.DossierStore
		queue    ports.RecalcQueue
	)
	if pool != nil {
		if err := postgres.Migrate(ctx, pool, dossierstore.Schema, recalcqueue.Schema); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		dossiers = dossierstore.NewPostgres(pool)
		queue = recalcqueue.NewPostgres(pool, cfg.MaxTries)
		defer pool.Close()
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		dossiers = dossierstore.NewInMemory()
		queue = recalcqueue.NewInMemory(cfg.MaxTries)
	}

	var notifier ports.Notifier = notify.NewLogNotifier(log)
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		notifier = notify.NewDeduper(notifier, redisClient, log)
		defer redisClient.Close()
	}

	m := metrics.New()
	registry := rules.Default()

	svc, err := service.New(dossiers, queue, registry,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithNotifier(notifier),
		service.WithCertificateService(&logCertificateService{logger: log}),
	)
	if err != nil {
		log.Error("service init failed", "error", err)
		os.Exit(1)
	}

	run, err := runner.New(queue, svc, service.Retryable,
		runner.WithLogger(log),
		runner.WithMetrics(m),
		runner.WithPartitionTimeout(cfg.PartitionTimeout),
	)
	if err != nil {
		log.Error("runner init failed", "error", err)
		os.Exit(1)
	}

	sweeper, err := jobs.NewSweeper(dossiers,
		jobs.WithLogger(log),
		jobs.WithNotifier(notifier),
		jobs.WithLimit(cfg.SweepLimit),
	)
	if err != nil {
		log.Error("sweeper init failed", "error", err)
		os.Exit(1)
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic, queue, log)
		if err != nil {
			log.Error("kafka consumer init failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	// Periodic drain of the recalculation queue.
	go func() {
		ticker := time.NewTicker(cfg.RunInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := run.RunRecalculation(ctx, cfg.BatchSize, cfg.PartitionCount); err != nil {
					log.Error("scheduled recalculation run failed", "error", err)
				}
			}
		}
	}()

	h := handler.New(run, sweeper, log, cfg.BatchSize, cfg.PartitionCount)
	srv := httpserver.New(cfg.Addr, h.Router(cfg.AdminJWTKey))

	log.Info("starting immuna", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
