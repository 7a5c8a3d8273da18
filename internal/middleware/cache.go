package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/config"
)

// CacheObserver is told about hits and misses; *metrics.Metrics implements it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// RedisCache caches successful responses per caller.  Entries are keyed by
// a generation counter that every successful write request bumps, so a
// mutation anywhere makes all earlier entries unreachable; they then age
// out by TTL.
type RedisCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	obs CacheObserver
	log *logrus.Logger
}

// NewRedisCache returns a cache.  A nil client or a disabled config yields a
// cache whose middlewares pass requests straight through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, obs CacheObserver, log *logrus.Logger) *RedisCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisCache{cfg: cfg, rdb: rdb, obs: obs, log: log}
}

func (rc *RedisCache) active() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

func (rc *RedisCache) genKey() string { return rc.cfg.Prefix + ":gen" }

func (rc *RedisCache) generation(ctx context.Context) (int64, error) {
	n, err := rc.rdb.Get(ctx, rc.genKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// cacheKey covers the caller, method, concrete path and query.
func (rc *RedisCache) cacheKey(c echo.Context, gen int64) string {
	r := c.Request()
	tail := strings.Join([]string{userID(c), r.Method, r.URL.Path, r.URL.RawQuery}, ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%d:%x", rc.cfg.Prefix, gen, sum[:])
}

// Serve answers cacheable requests from redis and stores 200 responses.
// Redis errors degrade to an uncached request.
func (rc *RedisCache) Serve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rc.active() {
			return next
		}
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			gen, err := rc.generation(ctx)
			if err != nil {
				return next(c)
			}
			key := rc.cacheKey(c, gen)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, echo.HeaderXRequestID) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					if rc.obs != nil {
						rc.obs.CacheHit()
					}
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			if rc.obs != nil {
				rc.obs.CacheMiss()
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

			hdr := make(http.Header, len(c.Response().Header()))
			for k, vals := range c.Response().Header() {
				if k == "X-Cache" {
					continue
				}
				hdr[k] = append([]string(nil), vals...)
			}
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				_ = rc.rdb.Set(context.Background(), key, payload, rc.cfg.TTL).Err()
			}
			return nil
		}
	}
}

// Invalidate bumps the generation after any successful request whose
// method is not cacheable.
func (rc *RedisCache) Invalidate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rc.active() {
			return next
		}
		return func(c echo.Context) error {
			err := next(c)
			if rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return err
			}
			if err == nil && c.Response().Status < http.StatusBadRequest {
				if ierr := rc.rdb.Incr(context.Background(), rc.genKey()).Err(); ierr != nil {
					rc.log.WithError(ierr).Warn("cache generation bump failed")
				}
			}
			return err
		}
	}
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
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
