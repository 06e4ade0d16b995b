// Command consumer runs the slop-farmer event consumers against Redis streams:
// report notifications and the verification mail queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/slop-farmer/internal/container"
	"github.com/serroba/slop-farmer/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	opts := &container.Options{
		RedisAddr: envOr("SERVICE_REDIS_ADDR", envOr("REDIS_ADDR", "localhost:6379")),
		LogFormat: envOr("SERVICE_LOG_FORMAT", "console"),
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start slop consumers", zap.String("redis", opts.RedisAddr), zap.Error(err))
	}

	logger.Info("slop consumers running",
		zap.String("redis", opts.RedisAddr),
		zap.Strings("topics", group.Topics()),
	)

	<-ctx.Done()
	logger.Info("stopping slop consumers")

	// Shuts down the consumer group, then the Redis client
	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("slop consumers stopped")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}
