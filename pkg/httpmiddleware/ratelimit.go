package httpmiddleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimitConfig configures the fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max    int
	Window time.Duration
	// Store keeps the counters. Defaults to an in-process store; pass a
	// Redis store to share limits between replicas.
	Store limiter.Store
	// KeyFunc extracts the rate limit key. Defaults to the client IP,
	// honoring X-Forwarded-For and X-Real-IP.
	KeyFunc func(*http.Request) string
}

// RateLimit rejects requests over the configured rate with 429. Every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Store failures let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	store := cfg.Store
	if store == nil {
		store = memory.NewStore()
	}
	lim := limiter.New(store,
		limiter.Rate{Period: cfg.Window, Limit: int64(cfg.Max)},
		limiter.WithTrustForwardHeader(true),
	)
	key := cfg.KeyFunc
	if key == nil {
		key = lim.GetIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lc, err := lim.Get(r.Context(), key(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

			if lc.Reached {
				retry := max(time.Until(time.Unix(lc.Reset, 0)), 0)
				h.Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
