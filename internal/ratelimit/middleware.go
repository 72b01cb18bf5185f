package ratelimit

import (
	"net/http"
	"strconv"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/funroad-api/internal/common"
)

// New builds a limiter from a formatted rate like "10-M" backed by Redis.
func New(rdb *redis.Client, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// Middleware enforces a rate limit keyed by Key before delegating to the
// next handler. Limiter store failures fail open.
type Middleware struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// Handle implements the http.Handler middleware interface.
func (m Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Limiter == nil || m.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := m.Key(r)
		if key == "" {
			key = common.ClientIP(r)
		}
		limiterCtx, err := m.Limiter.Get(r.Context(), key)
		if err != nil {
			if m.OnError != nil {
				m.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(limiterCtx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(limiterCtx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(limiterCtx.Reset, 10))

		if limiterCtx.Reached {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
