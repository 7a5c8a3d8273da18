package config

// Redis backs the response cache for admin user reads.  When the server is
// unreachable at startup NewRedisClient returns nil and the cache middleware
// turns itself into a pass-through.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	TLS      bool
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TLS", false)
}

// REDIS_HOST and REDIS_PORT take precedence over REDIS_ADDR when both are set.
func loadRedis(v *viper.Viper) RedisConfig {
	addr := v.GetString("REDIS_ADDR")
	if host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TLS:      v.GetBool("REDIS_TLS"),
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.  The
// returned client is nil if the server cannot be reached.
func NewRedisClient(rc RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
