package database

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/triagex/platform/pkg/common/config"
	"github.com/triagex/platform/pkg/common/logger"
)

const redisPingTimeout = 5 * time.Second

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

func RedisAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.RedisHost, cfg.RedisPort)
}

// GetRedis returns the shared client. The first call pings once; an
// unreachable server is only logged because the vitals cache falls back
// to the record store.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     RedisAddr(cfg),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()

		if err := PingRedis(ctx); err != nil {
			logger.Log.WithError(err).WithField("addr", RedisAddr(cfg)).Warn("Redis unreachable, vitals cache degraded")
			return
		}
		logger.Log.WithField("addr", RedisAddr(cfg)).Info("Connected to Redis")
	})

	return redisClient
}

// PingRedis reports whether the shared client can reach the server. It is
// a no-op before GetRedis has run.
func PingRedis(ctx context.Context) error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Ping(ctx).Err()
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
