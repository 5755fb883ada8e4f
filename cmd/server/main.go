package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"expat-market.storefront/internal/config"
	"expat-market.storefront/internal/infrastructure/analytics"
	"expat-market.storefront/internal/infrastructure/backend"
	"expat-market.storefront/internal/interfaces/http/handlers"
	"expat-market.storefront/internal/interfaces/http/middleware"
	"expat-market.storefront/pkg/logger"
)

const shutdownGrace = 10 * time.Second

var (
	loadDotenv       = godotenv.Load
	loadCfg          = config.Load
	initLog          = logger.Init
	newBackendClient = func(baseURL string, timeout time.Duration) (*backend.Client, error) {
		return backend.NewClient(baseURL, timeout)
	}
	runServer = func(ctx context.Context, h http.Handler, port string) error {
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	defer logger.Sync()
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := buildRouter(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Storefront proxy starting",
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.URL),
		zap.Bool("analytics", cfg.Matomo.Enabled()),
	)

	if err := runServer(ctx, r, cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}

// buildRouter wires handlers onto a fresh engine.
func buildRouter(cfg *config.Config, reg *prometheus.Registry) (*gin.Engine, error) {
	// API client for short calls
	apiClient, err := newBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}
	// Uploads get their own client so the long product timeout governs them
	uploadClient, err := newBackendClient(cfg.Backend.URL, cfg.Proxy.ProductUpdateTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload client: %w", err)
	}

	matomo := analytics.NewMatomoClient(cfg.Matomo.URL, cfg.Matomo.Token, cfg.Matomo.SiteID, cfg.Backend.Timeout)
	if !cfg.Matomo.Enabled() {
		logger.Warn(context.Background(), "Analytics proxy disabled: NEXT_PUBLIC_MATOMO_URL or MATOMO_TOKEN missing")
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(reg)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.Server.Env, cfg.Server.Version)
	productProxyHandler := handlers.NewProductProxyHandler(uploadClient, handlers.ProductProxyLimits{
		Timeout:       cfg.Proxy.ProductUpdateTimeout,
		MaxImageBytes: cfg.Proxy.MaxImageBytes,
		MaxTotalBytes: cfg.Proxy.MaxTotalBytes,
	})
	oauthHandler := handlers.NewOAuthHandler(apiClient)
	analyticsHandler := handlers.NewAnalyticsHandler(matomo)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(metrics))

	applyCORSMiddleware(r, cfg.Server.AllowedOrigins)
	registerAPIRoutes(r, routeDeps{
		healthHandler:       healthHandler,
		productProxyHandler: productProxyHandler,
		oauthHandler:        oauthHandler,
		analyticsHandler:    analyticsHandler,
		metricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		bearerMiddleware:    middleware.BearerMiddleware(),
	})

	for _, route := range r.Routes() {
		logger.Debug(context.Background(), "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}
	return r, nil
}
