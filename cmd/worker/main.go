// Command worker runs the analytics task dispatcher, the periodic scheduler
// and the ops HTTP endpoint in one process.
package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"estate-analytics/internal/cache"
	"estate-analytics/internal/comparable"
	"estate-analytics/internal/config"
	"estate-analytics/internal/dispatcher"
	"estate-analytics/internal/logger"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/queue"
	"estate-analytics/internal/scheduler"
	"estate-analytics/internal/storage"
	chstore "estate-analytics/internal/storage/clickhouse"
	"estate-analytics/internal/storage/migrations"
	pgstore "estate-analytics/internal/storage/postgres"
	"estate-analytics/internal/trend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(logger.Config{Level: "info"})
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	log.Info().Msg("starting analytics worker")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("estate", registry)

	// Postgres
	policy := pgstore.RetryPolicy{MaxAttempts: cfg.DBConnectAttempts, BaseDelay: cfg.DBConnectBaseDelay}
	pool, err := pgstore.ConnectPool(ctx, cfg.DatabaseURL, policy, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
		return err
	}

	connector := pgstore.NewConnector(pool, pgstore.ConnectorOptions{
		Retry:        policy,
		QueryTimeout: cfg.QueryTimeout,
		Metrics:      metrics,
		Logger:       log,
	})
	listingStore := pgstore.NewListingStore(connector)
	trendStore := pgstore.NewTrendStore(connector)

	checks := map[string]pinger{"postgres": pool.Ping}

	// ClickHouse history is optional
	var history storage.TrendHistoryStore
	if cfg.ClickHouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN, log)
		if err != nil {
			return err
		}
		defer chConn.Close()
		history = chstore.NewTrendHistoryStore(chConn)
		checks["clickhouse"] = chConn.Ping
		log.Info().Msg("trend history sink enabled")
	}

	// Redis cache
	cacheClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer cacheClient.Close()

	codec, err := cache.CodecByName(cfg.CacheCodec)
	if err != nil {
		return err
	}
	cacheStore := cache.NewRedisStore(cacheClient, cfg.QueryTimeout, metrics)
	checks["redis"] = cacheStore.Ping
	resultCache := cache.New(cacheStore, codec)

	// Redis broker
	brokerClient := cacheClient
	if cfg.BrokerURL != cfg.RedisURL {
		brokerClient, err = cache.NewRedisClient(cfg.BrokerURL)
		if err != nil {
			return err
		}
		defer brokerClient.Close()
	}
	jobQueue := queue.NewRedisQueue(brokerClient, cfg.QueryTimeout, metrics)

	// Engines
	trendEngine := trend.New(trend.Options{
		Listings: listingStore,
		Trends:   trendStore,
		History:  history,
		Cache:    resultCache,
		CacheTTL: cfg.TrendCacheTTL,
		State:    cfg.Market.State,
		Metrics:  metrics,
		Logger:   log,
	})
	reportEngine := comparable.New(comparable.Options{
		Listings: listingStore,
		Cache:    resultCache,
		CacheTTL: cfg.ReportCacheTTL,
		Metrics:  metrics,
		Logger:   log,
	})

	disp := dispatcher.New(dispatcher.Options{
		Queue:       jobQueue,
		Trends:      trendEngine,
		Reports:     reportEngine,
		Concurrency: cfg.WorkerConcurrency,
		WindowDays:  cfg.TrendWindowDays,
		TaskTimeout: cfg.TaskTimeout,
		Metrics:     metrics,
		Logger:      log,
	})

	sched := scheduler.New(scheduler.Options{
		PollInterval: cfg.Scheduler.PollInterval,
		Metrics:      metrics,
		Logger:       log,
	})
	if err := registerJobs(sched, cfg, jobQueue, cacheStore, log); err != nil {
		return err
	}

	ops := newOpsServer(cfg.MetricsAddr, registry, checks, disp, sched, log)

	// Run components
	schedCtx, stopSched := context.WithCancel(context.Background())
	dispCtx, stopDisp := context.WithCancel(context.Background())
	defer stopSched()
	defer stopDisp()

	var schedDone, dispDone sync.WaitGroup
	schedDone.Add(1)
	go func() {
		defer schedDone.Done()
		_ = sched.Run(schedCtx)
	}()
	dispDone.Add(1)
	go func() {
		defer dispDone.Done()
		_ = disp.Run(dispCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- ops.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("ops server failed")
		}
	}

	// Stop producing work before draining consumers.
	stopSched()
	schedDone.Wait()

	stopDisp()
	dispDone.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}
	return nil
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, q queue.Queue, store cache.Store, log zerolog.Logger) error {
	sweep := scheduler.NewSweepJob(q, cfg.Market.Pairs(), log)
	if err := sched.AddJob(cfg.Scheduler.Sweep, sweep); err != nil {
		return err
	}

	hygiene := scheduler.NewHygieneJob(store, []scheduler.HygieneRule{
		{Pattern: cache.TrendPattern, TTL: cfg.TrendCacheTTL},
		{Pattern: cache.ReportPattern, TTL: cfg.ReportCacheTTL},
	}, log)
	return sched.AddJob(cfg.Scheduler.Hygiene, hygiene)
}
