package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rillscope/internal/core/services"
	httphandlers "rillscope/internal/handlers/http"
	"rillscope/internal/infrastructure/distributed"
	"rillscope/internal/infrastructure/live"
	"rillscope/internal/infrastructure/middleware"
	"rillscope/internal/infrastructure/monitoring"
	"rillscope/internal/infrastructure/repositories"
	"rillscope/pkg/config"
	"rillscope/pkg/logger"
	"rillscope/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API and live feed",
		Long: `Start polling the configured room and serve the dashboard over HTTP.

Examples:
  rillscope serve
  rillscope serve --config configs/config.yaml --room standup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	startTime := time.Now()

	zapLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parentOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := buildStats(cfg, log)
	if err != nil {
		return err
	}

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	defer repoFactory.Close()

	opts, err := exportOptions(cfg, repoFactory, log)
	if err != nil {
		return err
	}
	opts = append(opts, services.WithModerator(stats.client))

	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer, cfg.Dashboard.RoomID)
		opts = append(opts, services.WithMetricsRecorder(collector))
	}

	var eventBus *distributed.EventBus
	if client := repoFactory.RedisClient(); client != nil {
		eventBus = distributed.NewEventBus(client, uuid.New().String(), log)
		opts = append(opts, services.WithAlertPublisher(eventBus))
		go func() {
			err := eventBus.Subscribe(ctx, func(e *distributed.Event) error {
				log.Infow("alert event from peer instance",
					"type", e.Type,
					"instance_id", e.InstanceID,
					"room_id", e.RoomID,
					"alert_id", e.Alert.ID,
				)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("event bus subscription ended", "error", err)
			}
		}()
	}

	controller, err := services.NewDashboardController(controllerConfig(cfg), stats.provider, log, opts...)
	if err != nil {
		return err
	}
	if err := controller.Mount(ctx); err != nil {
		return err
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddBreakerCheck(stats.wrapper.GetCircuitBreakerStats, 0)
	healthChecker.AddFreshnessCheck(func() time.Time {
		return controller.State().UpdatedAt
	}, 3*cfg.Dashboard.PollInterval, time.Now)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	healthChecker.StartBackgroundChecks(ctx)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.AdminRole)
	wsServer := live.NewWebSocketServer(controller, log,
		live.WithAllowedOrigins(cfg.Auth.AllowedOrigins),
		live.WithMaxConnections(cfg.RateLimiting.WebSocket.MaxConcurrent),
	)

	router := newRouter(cfg, zapLogger, log)
	mountRoutes(router, cfg, routes{
		health:    httphandlers.NewHealthHandler(healthChecker, startTime),
		auth:      authService,
		dashboard: controller,
		live:      wsServer,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting rillscope server",
			"address", cfg.Server.Address,
			"room_id", cfg.Dashboard.RoomID,
			"version", version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("Server failed", "error", runErr)
	case <-ctx.Done():
		log.Infow("Received shutdown signal")
	}

	log.Info("Shutting down rillscope server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	wsServer.Shutdown()
	controller.Unmount()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Warnw("Error closing event bus", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Error shutting down tracer provider", "error", err)
	}

	log.Info("rillscope server stopped")
	if runErr != nil {
		return fmt.Errorf("server: %w", runErr)
	}
	return nil
}

func newRouter(cfg *config.Config, zapLogger *zap.Logger, log *zap.SugaredLogger) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log, httphandlers.ErrorRules...),
	)
	return router
}

type routes struct {
	health    *httphandlers.HealthHandler
	auth      services.AuthService
	dashboard httphandlers.Dashboard
	live      httphandlers.WebSocketHandler
}

// mountRoutes attaches probes, auth, metrics and the room API under /api/v1.
func mountRoutes(router *gin.Engine, cfg *config.Config, r routes, log *zap.SugaredLogger) {
	r.health.SetupRoutes(router)
	httphandlers.NewAuthHandler(r.auth, cfg.Auth.AccessTokenTTL).SetupRoutes(router)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Infow("Prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	api := router.Group("/api/v1", middleware.OptionalAuthMiddleware(r.auth, cfg.Dashboard.IsAdmin))
	httphandlers.NewDashboardHandler(r.dashboard, r.live).SetupRoutes(api)
}

func parentOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
