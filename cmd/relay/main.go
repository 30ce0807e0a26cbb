package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"agorahub.app/backbone/common/id"
	"agorahub.app/backbone/common/logger"
	"agorahub.app/backbone/common/otel"
	"agorahub.app/backbone/core/config"
	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/cache"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/policy"
	"agorahub.app/backbone/internal/queue"
	"agorahub.app/backbone/internal/relay"
	"agorahub.app/backbone/internal/service"
	"agorahub.app/backbone/internal/store"
	"agorahub.app/backbone/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeRelay)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "relay worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Relay.RedisGroup,
		"consumer_name", cfg.Relay.RedisConsumer)

	// Different node id than the server so snowflakes never collide.
	if err := id.Init(2); err != nil {
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

	stores := store.NewStores(database.Querier())
	txRunner := service.NewTxRunner(database)

	feedCache := cache.NewFeedCache(redisClient, 30*time.Second)
	lbCache := cache.NewLeaderboardCache(256, time.Minute)

	// The bus exists here so the contest policy can submit follow-up
	// commands through the same validated path the API uses. Its events
	// wake the stream like any other command's.
	producer := queue.NewRedisProducer(redisClient, cfg.Relay.RedisStream, nil)
	bus := execution.NewBus(txRunner, stores, producer)
	service.RegisterAll(bus, feedCache, lbCache)

	notifier := queue.NewStreamNotifier(redisClient, "notifications")
	registry, err := policy.DefaultRegistry(bus, feedCache, lbCache, notifier)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build policy registry", "error", err)
		os.Exit(1)
	}

	dispatcher := relay.NewDispatcher(registry, txRunner, stores,
		cfg.Relay.PolicyTimeout, cfg.Relay.MaxAttempts,
		relay.Schedule{Base: cfg.Relay.RetryBase, Max: cfg.Relay.RetryMax})

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Relay.RedisStream,
		Group:     cfg.Relay.RedisGroup,
		Consumer:  cfg.Relay.RedisConsumer,
		BatchSize: 10,
		Block:     5 * time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, dispatcher, worker.Config{
		MaxWakeAttempts: 10,
	})

	sweeper := worker.NewSweeper(stores, dispatcher, worker.SweeperConfig{
		Interval:  cfg.Relay.SweepInterval,
		BatchSize: cfg.Relay.SweepBatch,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Relay.RedisStream,
		Group:     cfg.Relay.RedisGroup,
		Consumer:  cfg.Relay.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	errCh := make(chan error, 3)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		sweeper.Run(ctx)
		errCh <- nil
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "relay initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()
	sweeper.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "relay shutdown complete")
}

const banner = `
 █████╗  ██████╗  ██████╗ ██████╗  █████╗ ██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔══██╗██╔════╝ ██╔═══██╗██╔══██╗██╔══██╗██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
███████║██║  ███╗██║   ██║██████╔╝███████║██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██╔══██║██║   ██║██║   ██║██╔══██╗██╔══██║██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
██║  ██║╚██████╔╝╚██████╔╝██║  ██║██║  ██║██║  ██║███████╗███████╗██║  ██║   ██║
╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`
