// Package main wires together the crawler service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/api"
	"github.com/sitesearch/crawler/internal/clock/system"
	"github.com/sitesearch/crawler/internal/config"
	"github.com/sitesearch/crawler/internal/coordinator"
	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/dispatcher"
	collyfetcher "github.com/sitesearch/crawler/internal/fetcher/colly"
	"github.com/sitesearch/crawler/internal/hash/sha256"
	indexMemory "github.com/sitesearch/crawler/internal/indexer/memory"
	indexPostgres "github.com/sitesearch/crawler/internal/indexer/postgres"
	"github.com/sitesearch/crawler/internal/id/uuid"
	"github.com/sitesearch/crawler/internal/logging"
	"github.com/sitesearch/crawler/internal/metrics"
	"github.com/sitesearch/crawler/internal/policy/ratelimit"
	"github.com/sitesearch/crawler/internal/progress"
	"github.com/sitesearch/crawler/internal/progress/sinks"
	pubsubPublisher "github.com/sitesearch/crawler/internal/publisher/pubsub"
	pubsubQueue "github.com/sitesearch/crawler/internal/queue/pubsub"
	"github.com/sitesearch/crawler/internal/state"
	stateMemory "github.com/sitesearch/crawler/internal/statestore/memory"
	stateRedis "github.com/sitesearch/crawler/internal/statestore/redis"
	"github.com/sitesearch/crawler/internal/storage/gcs"
	"github.com/sitesearch/crawler/internal/telemetry"
	"github.com/sitesearch/crawler/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New("crawlerd", cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracerProvider(ctx, "crawlerd")
	if err != nil {
		logger.Fatal("tracer init failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	var store crawler.StateStore
	if cfg.Redis.Addr != "" {
		redisStore := stateRedis.New(stateRedis.NewClient(stateRedis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		if err := redisStore.Ping(ctx); err != nil {
			logger.Fatal("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Info("using redis state store", zap.String("addr", cfg.Redis.Addr))
		store = redisStore
	} else {
		logger.Warn("redis.addr not set, crawl state is process-local")
		store = stateMemory.New()
	}
	gate := state.NewGate(store)
	tracker := state.NewTracker(store, gate)

	clk := system.New()
	hasher := sha256.New()
	idGen := uuid.New()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Fatal("progress metrics init failed", zap.Error(err))
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	var indexer crawler.Indexer
	if cfg.DB.DSN != "" {
		pgIndexer, err := indexPostgres.New(ctx, indexPostgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns),
		}, clk)
		if err != nil {
			logger.Fatal("postgres indexer init failed", zap.Error(err))
		}
		defer pgIndexer.Close()
		logger.Info("indexing documents to postgres", zap.String("table", cfg.DB.Table))
		indexer = pgIndexer
	} else {
		logger.Warn("db.dsn not set, indexed documents are discarded on exit")
		indexer = indexMemory.New()
	}

	var archive crawler.ArchiveStore
	if cfg.Storage.Bucket != "" {
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		archive, err = gcs.New(gcsClient, gcs.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			logger.Fatal("gcs archive init failed", zap.Error(err))
		}
		logger.Info("archiving pages to gcs", zap.String("bucket", cfg.Storage.Bucket))
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	var limiter crawler.FetchLimiter
	if cfg.Crawler.PerHostRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.PerHostRPS,
			DefaultBurst: cfg.Crawler.PerHostBurst,
		})
	}

	workerCfg := worker.Config{
		ArchiveContentType: cfg.Storage.ContentType,
		ArchivePrefix:      cfg.Storage.Prefix,
		NotifyTopic:        cfg.PubSub.NotifyTopicID,
	}

	var coord *coordinator.Coordinator
	switch cfg.Crawler.Mode {
	case config.ModePubSub:
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		queue := pubsubQueue.New(psClient, pubsubQueue.Config{
			ProjectID:      cfg.PubSub.ProjectID,
			TopicID:        cfg.PubSub.TopicID,
			SubscriptionID: cfg.PubSub.SubscriptionID,
		}, logger.Named("queue"))
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("pubsub queue close failed", zap.Error(err))
			}
		}()

		var notifier crawler.Notifier
		if cfg.PubSub.NotifyTopicID != "" {
			notifier = pubsubPublisher.New(psClient.Publisher(cfg.PubSub.NotifyTopicID))
			logger.Info("publishing crawl completions", zap.String("topic", cfg.PubSub.NotifyTopicID))
		}

		go func() {
			if err := queue.Receive(ctx); err != nil && ctx.Err() == nil {
				logger.Error("pubsub receive failed", zap.Error(err))
				stop()
			}
		}()

		var workers []*worker.Worker
		for i := 0; i < cfg.Crawler.Concurrency; i++ {
			workers = append(workers, worker.New(
				queue,
				gate,
				tracker,
				fetcher,
				indexer,
				archive,
				notifier,
				limiter,
				hub,
				hasher,
				clk,
				workerCfg,
				logger.Named("worker").With(zap.Int("index", i)),
			))
		}
		dispatch := dispatcher.New(queue, workers)
		go func() {
			logger.Info("dispatcher started", zap.Int("workers", cfg.Crawler.Concurrency))
			dispatch.Run(ctx)
		}()

		coord = coordinator.NewBrokered(gate, tracker, clk, queue, hub, logger.Named("coordinator"))
	default:
		factory := func(q crawler.Queue) *worker.Worker {
			return worker.New(
				q,
				gate,
				tracker,
				fetcher,
				indexer,
				archive,
				nil,
				limiter,
				hub,
				hasher,
				clk,
				workerCfg,
				logger.Named("worker"),
			)
		}
		coord = coordinator.NewInProcess(gate, tracker, clk, factory, cfg.Crawler.QueueCapacity, hub, logger.Named("coordinator"))
	}

	apiServer := api.NewServer(coord, idGen, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
