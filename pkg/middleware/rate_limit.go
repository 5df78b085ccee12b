package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/loadwise/loadwise/pkg/configuration"
)

type RateLimitConfig struct {
	// Requests allowed per Period. Defaults to 100.
	RequestsPerPeriod int
	// Window the counter covers. Defaults to one second.
	Period time.Duration
	// Counter storage. Defaults to an in-process memory store.
	Store limiter.Store
	// KeyFunc extracts the identity a request is counted under. Defaults to
	// the client IP.
	KeyFunc func(r *http.Request) string
	// OnRateLimited replaces the default 429 response when set.
	OnRateLimited func(w http.ResponseWriter, r *http.Request)
}

// NewMemoryStore returns an in-process limiter store.
func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// NewRedisStore returns a limiter store backed by the given redis URL.
// Both redis:// URLs and bare host:port addresses are accepted.
func NewRedisStore(redisURL string) (limiter.Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "loadwise:ratelimit",
	})
}

// RateLimit counts requests per identity and rejects the overflow with 429.
// Standard X-RateLimit headers are set on every response.
func RateLimit(config RateLimitConfig) mux.MiddlewareFunc {
	if config.RequestsPerPeriod <= 0 {
		config.RequestsPerPeriod = 100
	}
	if config.Period <= 0 {
		config.Period = time.Second
	}
	if config.Store == nil {
		config.Store = NewMemoryStore()
	}
	if config.KeyFunc == nil {
		conf := configuration.Use()
		config.KeyFunc = func(r *http.Request) string {
			return getRealIP(r, conf)
		}
	}

	instance := limiter.New(config.Store, limiter.Rate{
		Period: config.Period,
		Limit:  int64(config.RequestsPerPeriod),
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lctx, err := instance.Get(r.Context(), config.KeyFunc(r))
			if err != nil {
				http.Error(w, "rate limiter unavailable", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				if config.OnRateLimited != nil {
					config.OnRateLimited(w, r)
					return
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
