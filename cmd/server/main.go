// File: cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botforge/internal/cache"
	"botforge/internal/config"
	"botforge/internal/monitoring"
	"botforge/internal/notify"
	"botforge/internal/observability"
	"botforge/internal/router"

	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	logger, err := initLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Starting BotForge observability service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache_provider", cfg.Cache.Provider),
	)

	// Shared cache (metrics snapshots, alert records)
	store, err := cache.NewCache(&cache.Config{
		Provider:        cfg.Cache.Provider,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		MaxKeys:         cfg.Cache.MaxKeys,
		CleanupInterval: cfg.Cache.CleanupInterval,
		RedisURL:        cfg.Cache.RedisURL,
		RedisDB:         cfg.Cache.RedisDB,
		RedisPassword:   cfg.Cache.RedisPassword,
		PoolSize:        cfg.Cache.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer store.Close()

	// Observability pipeline: recorder, rule engine, dispatcher, stores
	pipelineCfg := observability.DefaultPipelineConfig()
	pipelineCfg.EvaluationInterval = cfg.Alerting.EvaluationInterval
	pipelineCfg.SnapshotInterval = cfg.Alerting.SnapshotInterval
	pipelineCfg.DispatchTimeout = cfg.Alerting.DispatchTimeout

	pipeline := observability.NewPipeline(pipelineCfg, store, logger)
	registerChannels(pipeline.Dispatcher(), cfg.Alerting, logger)

	pipeline.Start()
	defer pipeline.Stop()

	handlers := monitoring.NewHandler(pipeline, store, logger, version, cfg.Server.Environment)
	handler := router.SetupRouter(handlers, pipeline.Recorder(), logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Application started",
		zap.String("health_check", "/health"),
		zap.String("metrics", "/internal/metrics"),
		zap.String("alerts", "/internal/alerts"),
	)

	<-quit
	logger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server shutdown completed")
	}

	final := pipeline.Recorder().Aggregate()
	logger.Info("Final request metrics",
		zap.Int64("total_requests", final.TotalRequests),
		zap.Int64("successful_requests", final.SuccessfulRequests),
		zap.Int64("failed_requests", final.FailedRequests),
	)
}

// registerChannels wires the configured notification channels into the
// dispatcher. A channel enabled without its required settings is logged
// and skipped rather than failing startup.
func registerChannels(dispatcher *observability.Dispatcher, cfg config.AlertingConfig, logger *zap.Logger) {
	if cfg.WebhookEnabled {
		ch, err := notify.NewWebhookChannel(cfg.WebhookURL, logger)
		if err != nil {
			logger.Warn("Webhook channel disabled", zap.Error(err))
		} else {
			dispatcher.AddChannel(ch, observability.SeverityHigh)
			logger.Info("Webhook channel registered")
		}
	}

	if cfg.EmailEnabled {
		ch, err := notify.NewEmailChannel(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}, logger)
		if err != nil {
			logger.Warn("Email channel disabled", zap.Error(err))
		} else {
			dispatcher.AddChannel(ch, observability.SeverityHigh)
			logger.Info("Email channel registered")
		}
	}

	if cfg.PagerEnabled {
		ch, err := notify.NewPagerChannel(cfg.PagerEndpoint, cfg.PagerRoutingKey, logger)
		if err != nil {
			logger.Warn("Pager channel disabled", zap.Error(err))
		} else {
			// Pages only for critical alerts.
			dispatcher.AddChannel(ch, observability.SeverityCritical)
			logger.Info("Pager channel registered")
		}
	}
}

// initLogger initializes the structured logger based on environment
func initLogger() (*zap.Logger, error) {
	env := os.Getenv("GO_ENV")
	var config zap.Config

	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
