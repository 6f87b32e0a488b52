package config

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

// NewRedisClient builds a client from REDIS_ADDR or REDIS_HOST/REDIS_PORT,
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS.  It returns nil when the server
// does not answer a ping; callers then run without caching, rate limiting
// and live push.
func NewRedisClient(logger *zap.Logger) *redis.Client {
    addr := os.Getenv("REDIS_ADDR")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    var tlsConf *tls.Config
    if envBool("REDIS_TLS", false) {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  os.Getenv("REDIS_PASSWORD"),
        DB:        envInt("REDIS_DB", 0),
        TLSConfig: tlsConf,
    })

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        if logger != nil {
            logger.Warn("redis unavailable, continuing without it", zap.String("addr", addr), zap.Error(err))
        }
        _ = client.Close()
        return nil
    }
    return client
}
