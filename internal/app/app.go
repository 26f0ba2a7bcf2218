// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hls-relay/pkg/appctx"
	"hls-relay/pkg/config"
	"hls-relay/pkg/handlers/api"
	"hls-relay/pkg/handlers/streams"
	"hls-relay/pkg/httpclient"
	"hls-relay/pkg/intercept"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/registry"
	"hls-relay/pkg/server"
	"hls-relay/pkg/services"
	"hls-relay/pkg/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// App is the main application container.
type App struct {
	Ctx            *appctx.Context
	Server         *server.Server
	HTTPClient     *httpclient.Client
	StreamHandlers *registry.StreamHandlerRegistry
	// Intercept serves synthetic-scheme requests for playback engines
	// embedded in the same process.
	Intercept *intercept.Adapter

	logFile           io.Closer
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes the application.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	out, logFile := logging.Output(logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	log := logging.New(cfg.LogLevel, cfg.LogJSON, out)
	log.Info("initializing hls-relay", "port", cfg.Port, "log_level", cfg.LogLevel, "version", appctx.Version)

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.OTELServiceName)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	ctx := appctx.New(cfg, log)

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics.Register(reg)
		ctx.WithMetrics(reg)
	}

	httpClient := httpclient.New(cfg, log)

	opts := streams.OptionsFromConfig(cfg)
	streamHandlers := registry.NewStreamHandlerRegistry()
	registerStreamHandlers(streamHandlers, httpClient, log, opts)

	subtitles := streams.NewSubtitleHandler(httpClient, log, opts)
	proxyService := services.NewProxyService(log, streamHandlers, subtitles, ctx.BaseURL)
	ctx.WithProxyService(proxyService)

	providers := intercept.DefaultProviders()
	adapter := intercept.New(httpClient, providers, log, cfg.DefaultUserAgent)
	log.Info("registered intercept providers", "count", len(providers.All()))

	srv := server.New(cfg, log)

	handlers := api.NewHandlers(ctx)
	handlers.RegisterRoutes(srv.Router())

	return &App{
		Ctx:               ctx,
		Server:            srv,
		HTTPClient:        httpClient,
		StreamHandlers:    streamHandlers,
		Intercept:         adapter,
		logFile:           logFile,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting hls-relay server", "port", a.Ctx.Config.Port, "base_url", a.Ctx.BaseURL)
	return a.Server.Start()
}

// Shutdown flushes traces and releases the log file.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	if err := a.shutdownTelemetry(ctx); err != nil {
		a.Ctx.Log.WithError(err).Warn("telemetry shutdown failed")
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
}

// registerStreamHandlers registers all stream handlers.
// Add new stream handlers here by:
// 1. Creating a new handler in pkg/handlers/streams/
// 2. Registering it below
func registerStreamHandlers(
	reg *registry.StreamHandlerRegistry,
	client *httpclient.Client,
	log *logging.Logger,
	opts streams.PlaylistOptions,
) {
	segments := streams.NewSegmentProxy(client, log)

	hlsHandler := streams.NewHLSHandler(client, segments, log, opts)
	reg.Register(hlsHandler)

	// Anything that is not a playlist is wrapped in a virtual one.
	progressiveHandler := streams.NewProgressiveHandler(segments, log, opts)
	reg.SetFallback(progressiveHandler)

	log.Info("registered stream handlers", "count", len(reg.All())+1) // +1 for fallback
}
