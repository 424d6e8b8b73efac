package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/neobot/internal/bot"
	"github.com/haasonsaas/neobot/internal/capability"
	"github.com/haasonsaas/neobot/internal/channels"
	"github.com/haasonsaas/neobot/internal/channels/discord"
	"github.com/haasonsaas/neobot/internal/config"
	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/internal/script"
)

const shutdownTimeout = 30 * time.Second

// runServe implements the serve command logic.
// It handles configuration loading, component wiring, and graceful shutdown.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:   level,
		Format:  cfg.Logging.Format,
		Secrets: []string{cfg.Discord.Token},
	})
	slog.SetDefault(logger)

	logger.Info("starting neobot",
		"version", version,
		"commit", commit,
		"config", configPath,
		"debug", debug,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableInsecure: cfg.Observability.Tracing.Insecure,
	})

	adapter, err := discord.NewAdapter(discord.Config{
		Token:                cfg.Discord.Token,
		Intents:              cfg.Discord.Intents,
		MaxReconnectAttempts: cfg.Discord.MaxReconnectAttempts,
		ReconnectBackoff:     cfg.Discord.ReconnectBackoff.Std(),
		RateLimit:            cfg.Discord.RateLimit,
		RateBurst:            cfg.Discord.RateBurst,
		RequestTimeout:       cfg.Discord.RequestTimeout.Std(),
		EventBuffer:          cfg.Scripts.EventBuffer,
		Logger:               logger,
		Metrics:              metrics,
		Tracer:               tracer,
	})
	if err != nil {
		return fmt.Errorf("failed to create discord adapter: %w", err)
	}

	engine := script.NewEngine(script.Options{
		Provider: capability.NewProvider(capability.Options{
			Transport:   adapter,
			CallTimeout: cfg.Scripts.CallTimeout.Std(),
			Context:     ctx,
			Logger:      logger,
		}),
		Feedback: script.NewReactionFeedback(adapter, script.Glyphs{
			Success:  cfg.Scripts.Feedback.Success,
			Failure:  cfg.Scripts.Feedback.Failure,
			Executed: cfg.Scripts.Feedback.Executed,
			Fault:    cfg.Scripts.Feedback.Fault,
		}, logger),
		Fence:             cfg.Scripts.Fence,
		AllowedPackages:   cfg.Scripts.AllowedPackages,
		EchoCompileErrors: *cfg.Scripts.EchoCompileErrors,
		Logger:            logger,
		Metrics:           metrics,
		Tracer:            tracer,
	})

	router := bot.NewRouter(engine, adapter, bot.Config{
		IgnoreBots:      *cfg.Scripts.IgnoreBots,
		DisableReaction: cfg.Scripts.Control.Disable,
		EnableReaction:  cfg.Scripts.Control.Enable,
		Logger:          logger,
		Metrics:         metrics,
		Tracer:          tracer,
	})

	httpServer, err := startMetricsServer(cfg.Observability.MetricsAddr, adapter, logger)
	if err != nil {
		return err
	}

	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start discord adapter: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx, adapter.Events())
	}()

	logger.Info("neobot started", "metrics_addr", cfg.Observability.MetricsAddr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := adapter.Stop(shutdownCtx); err != nil {
		logger.Warn("failed to stop discord adapter", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to stop metrics server", "error", err)
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("neobot stopped gracefully", "scripts", engine.Len())
	return nil
}

// healthChecker is the part of the adapter /healthz reports on.
type healthChecker interface {
	HealthCheck(ctx context.Context) channels.HealthStatus
}

// startMetricsServer serves /metrics and /healthz on addr. An empty addr
// disables the endpoint and returns a nil server.
func startMetricsServer(addr string, health healthChecker, logger *slog.Logger) (*http.Server, error) {
	if addr == "" {
		return nil, nil
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(health),
		ReadHeaderTimeout: 5 * time.Second,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("starting metrics server", "addr", listener.Addr().String())
	return server, nil
}

func newMetricsMux(health healthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := health.HealthCheck(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy":  status.Healthy,
			"degraded": status.Degraded,
			"message":  status.Message,
		})
	})
	return mux
}
