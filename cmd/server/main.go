package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"listscreen/internal/audit"
	"listscreen/internal/customers"
	"listscreen/internal/domain"
	"listscreen/internal/jobs"
	"listscreen/internal/platform/config"
	"listscreen/internal/platform/httpserver"
	"listscreen/internal/platform/logger"
	"listscreen/internal/platform/postgres"
	platredis "listscreen/internal/platform/redis"
	"listscreen/internal/scoring"
	scmetrics "listscreen/internal/scoring/metrics"
	"listscreen/internal/scoring/runlock"
	httptransport "listscreen/internal/transport/http"
	"listscreen/internal/watchlist"
	wlmetrics "listscreen/internal/watchlist/metrics"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		snapshots  watchlist.SnapshotStore
		scores     scoring.Store
		population customers.Source
		auditStore audit.Store
		outboxPG   *audit.PostgresStore
		healthFns  []func(context.Context) error
	)

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("opening postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("ensuring schema", "error", err)
			os.Exit(1)
		}
		snapshots = watchlist.NewPostgresStore(db)
		scores = scoring.NewPostgresStore(db)
		population = customers.NewPostgresSource(db)
		outboxPG = audit.NewPostgresStore(db)
		auditStore = outboxPG
		healthFns = append(healthFns, db.PingContext)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		snapshots = watchlist.NewMemoryStore()
		scores = scoring.NewMemoryStore()
		population = customers.NewMemorySource(nil)
		auditStore = audit.NewMemoryStore()
	}

	var lock runlock.Lock = runlock.NewMemoryLock()
	redisClient, err := platredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lock = runlock.NewRedisLock(redisClient.Client)
		healthFns = append(healthFns, redisClient.Health)
	} else {
		log.Warn("no redis configured, run locks are process local")
	}

	auditor := audit.NewPublisher(auditStore, audit.WithLogger(log))

	if outboxPG != nil && len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connecting to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		worker := audit.NewOutboxWorker(outboxPG, kafkaPub, log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox worker stopped", "error", err)
			}
		}()
	}

	ingestor := watchlist.NewIngestor(snapshots,
		watchlist.WithLogger(log),
		watchlist.WithAuditor(auditor),
		watchlist.WithMetrics(wlmetrics.New()),
		watchlist.WithMinEntries(cfg.MinWatchlistEntries),
	)

	coordinator := scoring.NewCoordinator(scores, lock,
		scoring.WithLogger(log),
		scoring.WithAuditor(auditor),
		scoring.WithMetrics(scmetrics.New()),
		scoring.WithBatchSize(cfg.ScoringBatchSize),
		scoring.WithScreenTimeout(cfg.ScreenTimeout),
		scoring.WithLockTTL(cfg.RunLockTTL),
	)

	if cfg.WatchlistPath == "" {
		log.Warn("no watchlist path configured, ingestion jobs will fail until one is set")
	}
	scheduler := jobs.NewChannelScheduler(cfg.JobQueueSize,
		func() jobs.Task {
			return &jobs.IngestionTask{
				Ingestor: ingestor,
				Provider: watchlist.FileProvider{Path: cfg.WatchlistPath},
			}
		},
		func(date domain.ListDate) jobs.Task {
			return &jobs.ScoringTask{
				Coordinator: coordinator,
				Snapshots:   snapshots,
				Customers:   population,
				Date:        date,
				Logger:      log,
			}
		},
	)
	jobWorker := jobs.NewWorker(scheduler.Inbox(), log)
	go func() {
		if err := jobWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("job worker stopped", "error", err)
		}
	}()

	handler := httptransport.NewHandler(snapshots, scores, scheduler, log,
		httptransport.WithHealthCheck(func(ctx context.Context) error {
			for _, probe := range healthFns {
				if err := probe(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	)
	router := httptransport.NewRouter(handler)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("listscreen listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
