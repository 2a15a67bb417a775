package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/quakewatch/eew-alert-service/internal/adapter/feeds"
	httpadapter "github.com/quakewatch/eew-alert-service/internal/adapter/http"
	"github.com/quakewatch/eew-alert-service/internal/adapter/stream"
	"github.com/quakewatch/eew-alert-service/internal/adapter/ws"
	"github.com/quakewatch/eew-alert-service/internal/config"
	"github.com/quakewatch/eew-alert-service/internal/observability"
	"github.com/quakewatch/eew-alert-service/internal/poller"
	"github.com/quakewatch/eew-alert-service/internal/reconcile"
	"github.com/quakewatch/eew-alert-service/internal/wave"
)

// waveDriver narrows *wave.Driver to the reconciler's launch interface.
type waveDriver struct {
	driver *wave.Driver
}

func (d waveDriver) Start(lat, lon float64) reconcile.WaveSim {
	return d.driver.Start(lat, lon)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	hub := ws.NewHub(cfg.BannerFade, logger, metrics)

	driver := wave.NewDriver(clock, hub, wave.Config{
		DisplayDuration: cfg.DisplayDuration,
		FrameInterval:   cfg.FrameInterval,
		FitInterval:     cfg.ViewFitInterval,
		FitPadding:      40,
		HomeLat:         cfg.HomeLat,
		HomeLon:         cfg.HomeLon,
		HomeZoom:        int(cfg.HomeZoom),
	}, logger, metrics)

	// Lifecycle publishing is feature-flagged via KAFKA_BROKERS.
	var publisher reconcile.EventPublisher
	var writer *stream.Writer
	if cfg.KafkaEnabled() {
		writer = stream.NewWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		publisher = writer
		logger.Info("kafka lifecycle publishing enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka lifecycle publishing disabled")
	}

	rec := reconcile.New(clock, hub, hub, waveDriver{driver: driver}, publisher, logger, metrics, reconcile.Config{
		DisplayDuration: cfg.DisplayDuration,
		HomeLat:         cfg.HomeLat,
		HomeLon:         cfg.HomeLon,
		HomeZoom:        int(cfg.HomeZoom),
	})

	sources := []poller.Source{
		feeds.NewSichuanSource(cfg.FeedSichuanURL, cfg.FetchTimeout, logger),
		feeds.NewICLSource(cfg.FeedICLURL, cfg.FetchTimeout, logger),
		feeds.NewCEASource(cfg.FeedCEAURL, cfg.FetchTimeout, logger),
		feeds.NewCENCSource(cfg.FeedCENCURL, cfg.FetchTimeout, logger),
	}

	p := poller.New(sources, rec, hub, clock, logger, metrics, cfg.PollInterval, cfg.FetchTimeout)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, rec, rec, hub.HandleWS, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the polling loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
