package httpserver

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/identity"
	"github.com/and161185/plant-keeper/internal/limiter"
)

// RequestLogger logs one line per request. Bodies are never logged.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", strings.ToUpper(c.Request.Method)),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
		}
		if id, ok := identity.UserIDFromCtx(c.Request.Context()); ok {
			fields = append(fields, zap.String("user_id", id.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}

		switch {
		case status >= 500:
			log.Error("http", fields...)
		case status >= 400:
			log.Warn("http", fields...)
		default:
			log.Info("http", fields...)
		}
	}
}

// Auth verifies the bearer token and stores the user id in the request
// context. Clients that keep failing are blocked by lim; a nil lim disables
// throttling and a failing lim lets requests through.
func Auth(v *identity.Verifier, lim limiter.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := limiter.HashIP(c.ClientIP())

		if lim != nil {
			ok, retry, err := lim.Allow(ctx, key)
			switch {
			case err != nil:
				log.Warn("limiter unavailable", zap.Error(err))
			case !ok:
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				RespondError(c, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry.Round(time.Second)))
				return
			}
		}

		tok, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var id uuid.UUID
			if id, err = v.Verify(tok); err == nil {
				c.Request = c.Request.WithContext(identity.WithUserID(ctx, id))
				c.Next()
				return
			}
		}

		if lim != nil {
			if blocked, _, ferr := lim.Failure(ctx, key); ferr != nil {
				log.Warn("limiter unavailable", zap.Error(ferr))
			} else if blocked {
				log.Warn("client blocked after repeated auth failures", zap.String("path", c.FullPath()))
			}
		}
		RespondError(c, err)
	}
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// Throttle limits each authenticated user to rps requests per second with
// the given burst. Entries idle for ten minutes are dropped. rps <= 0
// disables it.
func Throttle(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
		swept    time.Time
	)
	get := func(k string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(swept) > time.Minute {
			for key, v := range visitors {
				if now.Sub(v.seen) > 10*time.Minute {
					delete(visitors, key)
				}
			}
			swept = now
		}
		v, ok := visitors[k]
		if !ok {
			v = &visitor{lim: rate.NewLimiter(rate.Limit(rps), burst)}
			visitors[k] = v
		}
		v.seen = now
		return v.lim
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := identity.UserIDFromCtx(c.Request.Context()); ok {
			key = id.String()
		}
		if !get(key, time.Now()).Allow() {
			c.Header("Retry-After", "1")
			RespondError(c, fmt.Errorf("%w: too many requests", errs.ErrRateLimited))
			return
		}
		c.Next()
	}
}
