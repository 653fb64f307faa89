package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/ticket-autobuy/internal/config"
)

// ResponseCache keeps successful read responses in Redis.  Listing reads
// are served from it until a mutating request through Invalidate succeeds.
// A nil client or a disabled config turns both middlewares into no-ops.
type ResponseCache struct {
    cfg    config.CacheConfig
    rdb    *redis.Client
    logger *slog.Logger
}

// NewResponseCache builds a ResponseCache.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, logger *slog.Logger) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    if logger == nil {
        logger = slog.Default()
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, logger: logger}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

// captureWriter copies up to limit bytes of the response body while
// forwarding everything to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 {
        cw.buf.Write(b)
    } else if remain := cw.limit - cw.size; remain > 0 {
        if int64(len(b)) <= remain {
            cw.buf.Write(b)
        } else {
            cw.buf.Write(b[:remain])
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// truncated reports whether the body outgrew the capture limit.
func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// cacheKey builds a stable key honoring prefix and strategy.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    default: // "route_query"
        parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    // the resolved path keeps /v1/listings/1 and /v1/listings/2 apart
    parts = append(parts, "p", r.URL.Path)
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes headerLen][headerJSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// Middleware serves cached responses for the configured methods and
// stores 200 responses on a miss.  X-Cache tells HIT from MISS.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if !rc.enabled() {
            return next
        }
        return func(c echo.Context) error {
            if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(rc.cfg, c)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated() {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rc.rdb.SetEx(context.Background(), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.logger.Debug("cache: store failed", "key", key, "err", err)
            }
            return nil
        }
    }
}

// Invalidate purges every cached response after a mutating request
// finishes with a 2xx status.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if !rc.enabled() {
            return next
        }
        return func(c echo.Context) error {
            err := next(c)
            if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
                if perr := rc.Purge(context.Background()); perr != nil {
                    rc.logger.Warn("cache: purge failed", "err", perr)
                }
            }
            return err
        }
    }
}

// Purge deletes every key under the cache prefix.
func (rc *ResponseCache) Purge(ctx context.Context) error {
    if rc.rdb == nil {
        return nil
    }
    iter := rc.rdb.Scan(ctx, 0, rc.cfg.Prefix+":*", 200).Iterator()
    var batch []string
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == 200 {
            if err := rc.rdb.Del(ctx, batch...).Err(); err != nil {
                return err
            }
            batch = batch[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(batch) > 0 {
        return rc.rdb.Del(ctx, batch...).Err()
    }
    return nil
}
