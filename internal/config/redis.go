package config

// Redis backs the API rate limiter, the listing response cache and the
// competing-price cache of the listener.  Every user degrades gracefully
// when the client is nil.

import (
    "context"
    "crypto/tls"
    "log/slog"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig is read from REDIS_* variables:
//   REDIS_ADDR      host:port (REDIS_HOST + REDIS_PORT take precedence)
//   REDIS_PASSWORD  optional password
//   REDIS_DB        database number (default 0)
//   REDIS_TLS       "true" or "1" enables TLS
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads the REDIS_* group.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    t := envStr("REDIS_TLS", "")
    return RedisConfig{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        TLS:      strings.EqualFold(t, "true") || t == "1",
    }
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when the server cannot be reached.
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        logger.Warn("redis: unavailable; caches and rate limiting disabled", "addr", cfg.Addr, "err", err)
        _ = client.Close()
        return nil
    }
    return client
}
