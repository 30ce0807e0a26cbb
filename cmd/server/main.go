package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"agorahub.app/backbone/common/id"
	"agorahub.app/backbone/common/logger"
	"agorahub.app/backbone/common/otel"
	"agorahub.app/backbone/core/config"
	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/cache"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/http/handler"
	"agorahub.app/backbone/internal/http/middleware"
	httprouter "agorahub.app/backbone/internal/http/router"
	"agorahub.app/backbone/internal/policy"
	"agorahub.app/backbone/internal/queue"
	"agorahub.app/backbone/internal/relay"
	"agorahub.app/backbone/internal/service"
	"agorahub.app/backbone/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet, OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "api server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Relay.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Relay.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Relay.RedisStream, nil)

	stores := store.NewStores(database.Querier())
	txRunner := service.NewTxRunner(database)

	feedCache := cache.NewFeedCache(redisClient, 30*time.Second)
	lbCache := cache.NewLeaderboardCache(256, time.Minute)

	bus := execution.NewBus(txRunner, stores, producer)
	service.RegisterAll(bus, feedCache, lbCache)

	// The server carries a dispatcher only for operator-driven dead letter
	// replay; the continuous relay loop lives in cmd/relay.
	notifier := queue.NewStreamNotifier(redisClient, "notifications")
	registry, err := policy.DefaultRegistry(bus, feedCache, lbCache, notifier)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build policy registry", "error", err)
		os.Exit(1)
	}
	dispatcher := relay.NewDispatcher(registry, txRunner, stores,
		cfg.Relay.PolicyTimeout, cfg.Relay.MaxAttempts,
		relay.Schedule{Base: cfg.Relay.RetryBase, Max: cfg.Relay.RetryMax})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Invoke: handler.NewInvokeHandler(bus),
		Admin:  handler.NewAdminHandler(bus, dispatcher, stores),
		Health: handler.NewHealthHandler(database, redisClient),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, handlers httprouter.Handlers) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span, Recovery catches panics, Logger logs
	// with trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handlers, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}

const banner = `
 █████╗  ██████╗  ██████╗ ██████╗  █████╗ ██╗  ██╗██╗   ██╗██████╗
██╔══██╗██╔════╝ ██╔═══██╗██╔══██╗██╔══██╗██║  ██║██║   ██║██╔══██╗
███████║██║  ███╗██║   ██║██████╔╝███████║███████║██║   ██║██████╔╝
██╔══██║██║   ██║██║   ██║██╔══██╗██╔══██║██╔══██║██║   ██║██╔══██╗
██║  ██║╚██████╔╝╚██████╔╝██║  ██║██║  ██║██║  ██║╚██████╔╝██████╔╝
╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝ ╚═════╝
`
