package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sr22fit/checkout-web/internal/checkout"
	appconfig "github.com/sr22fit/checkout-web/internal/config"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSnapshotStore returns the Redis snapshot store when a client is
// available and the in-memory store otherwise.
func BuildSnapshotStore(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) checkout.SnapshotStore {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("session snapshots kept in memory")
		return checkout.NewMemorySnapshotStore(ttl)
	}
	logger.Info("session snapshots kept in redis")
	return checkout.NewRedisSnapshotStore(redisClient, ttl)
}
