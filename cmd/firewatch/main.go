package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberline/firewatch-service/internal/adapter/demo"
	"github.com/emberline/firewatch-service/internal/adapter/firms"
	httpadapter "github.com/emberline/firewatch-service/internal/adapter/http"
	kafkaadapter "github.com/emberline/firewatch-service/internal/adapter/kafka"
	"github.com/emberline/firewatch-service/internal/adapter/worldview"
	"github.com/emberline/firewatch-service/internal/config"
	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/imagery"
	"github.com/emberline/firewatch-service/internal/observability"
	"github.com/emberline/firewatch-service/internal/pipeline"
	"github.com/emberline/firewatch-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	history, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	// Event source is a configuration choice, made once. The demo source
	// tags everything it fabricates so it can never pass as real data.
	var source domain.EventSource
	switch cfg.FeedMode {
	case "firms":
		source = firms.NewClient(cfg.FirmsMapKey, cfg.FirmsSources, cfg.FeedTimeout, logger, metrics)
		logger.Info("using FIRMS event source", "sources", cfg.FirmsSources)
	default:
		source = demo.NewSource()
		logger.Warn("using synthetic demo event source; all detections are tagged", "tag", demo.SourceTag)
	}

	wmsClient := worldview.NewClient(cfg.ImageryBaseURL, cfg.ImageryTimeout, logger)
	cache := imagery.NewLRUCache(cfg.ImageryCacheSize)
	fetcher := imagery.NewFetcher(wmsClient, cache, logger, metrics,
		imagery.WithMaxRetries(cfg.ImageryMaxRetries),
		imagery.WithAttemptTimeout(cfg.ImageryTimeout),
	)

	var publisher pipeline.AlertPublisher
	var closer interface{ Close() error }
	if cfg.KafkaEnabled {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		publisher = kp
		closer = kp
		logger.Info("alert publishing enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("alert publishing disabled")
	}

	p := pipeline.New(source, history, publisher, logger, metrics, cfg)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, history, fetcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("scan loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			logger.Error("alert publisher close error", "error", err)
		}
	}
	if err := history.Close(); err != nil {
		logger.Error("history store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
