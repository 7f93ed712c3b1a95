package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/analytics"
	"finsight/internal/cache"
	"finsight/internal/cli"
	"finsight/internal/events"
	apphttp "finsight/internal/http"
	"finsight/internal/insight"
	"finsight/internal/log"
	"finsight/internal/view"
)

const eventQueueSize = 256

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, os.Stdout)

	client := analytics.NewClient(cfg.AnalyticsBaseURL, cfg.RequestTimeout, logger)

	// Insight text is cached by payload so reselecting a period does not
	// regenerate identical insights.
	var gen insight.Generator = client
	caches := cache.NewManager(logger)
	if cfg.InsightCacheSize > 0 {
		insights := cache.NewLRUCache[string](cfg.InsightCacheSize, cfg.InsightCacheTTL)
		caches.Register("insights", insights)
		gen = insight.NewCachedGenerator(client, insights, logger)
		logger.Info("Insight cache enabled", "size", cfg.InsightCacheSize, "ttl", cfg.InsightCacheTTL)
	}

	var (
		sink      view.InsightSink
		publisher *events.Publisher
	)
	if cfg.EventsEnabled() {
		amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = events.NewPublisher(amqpClient, eventQueueSize, logger)
		sink = publisher
		logger.Info("Insight events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Insight events disabled - no AMQP_URL provided")
	}

	insightCtx, cancelInsights := context.WithCancel(context.Background())
	defer cancelInsights()

	dashboard := view.NewDashboard(client, gen, view.DashboardConfig{
		CategoryLimit:  cfg.CategoryLimit,
		InsightTimeout: cfg.InsightTimeout,
		BaseContext:    insightCtx,
		Logger:         logger,
		Sink:           sink,
	})

	srv := apphttp.NewServer(cfg.Addr(), dashboard, logger)
	if cfg.SelectRateLimit > 0 {
		caches.Register("select-limiter", srv.LimitSelects(cfg.SelectRateLimit))
	}
	// No WriteTimeout: event streams stay open.
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancelInsights()
		dashboard.Wait()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finsight server", "addr", srv.Addr, "analytics", cfg.AnalyticsBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, cfg.CacheCleanupInterval)
	})
	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := dashboard.Start(gctx); err != nil {
			logger.Warn("Initial panel load incomplete", log.FieldError, err.Error())
		}
		srv.SetReady(true)
		logger.Info("Panels loaded, server ready")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("finsight stopped", log.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
