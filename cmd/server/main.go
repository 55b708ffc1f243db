package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vatguard/internal/exemption/handler"
	exemptionmetrics "vatguard/internal/exemption/metrics"
	"vatguard/internal/exemption/reconcile"
	"vatguard/internal/platform/config"
	"vatguard/internal/platform/httpserver"
	"vatguard/internal/platform/logger"
	"vatguard/internal/platform/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/exemption.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exMetrics := exemptionmetrics.New(reg)
	httpMetrics := metrics.New(reg)

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	validator := buildValidator(cfg, deps, log, exMetrics)
	store := buildStore(ctx, cfg, deps, log)
	publisher := buildPublisher(cfg, deps, log)

	controller := reconcile.New(validator, store, settingsFrom(cfg.Exemption),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(exMetrics),
		reconcile.WithPublisher(publisher),
	)

	router := chi.NewRouter()
	handler.New(controller, log, httpMetrics, cfg.Server.HostToken).Register(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Get("/healthz", deps.healthz)

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting vatguard",
		"addr", cfg.Server.Addr,
		"feature_enabled", cfg.Exemption.Enabled,
		"home_country", cfg.Exemption.HomeCountry,
		"redis", deps.redis != nil,
		"postgres", deps.db != nil,
		"kafka", deps.kafka != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func settingsFrom(cfg config.Exemption) reconcile.StaticSettings {
	return reconcile.StaticSettings{
		FeatureEnabled:              cfg.Enabled,
		IdentifierRequired:          cfg.IdentifierRequired,
		RegistryCheckEnabled:        cfg.RegistryCheck,
		OverrideCompetingExtensions: cfg.OverrideCompetingExtensions,
		HomeCountry:                 cfg.HomeCountry,
		PickupMethods:               cfg.PickupMethods,
	}
}
