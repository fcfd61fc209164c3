package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"rillscope/pkg/cache"
	"rillscope/pkg/config"
	apperrors "rillscope/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// bucketIdleTTL is how long a client's bucket survives without requests.
const bucketIdleTTL = 10 * time.Minute

// clientBuckets holds one token bucket per client address.
type clientBuckets struct {
	buckets   *cache.Cache[*rate.Limiter]
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep atomic.Int64
}

func newClientBuckets(limit rate.Limit, burst int, now func() time.Time) *clientBuckets {
	return &clientBuckets{
		buckets: cache.New[*rate.Limiter](bucketIdleTTL, cache.WithClock[*rate.Limiter](now)),
		limit:   limit,
		burst:   burst,
		now:     now,
	}
}

// get returns the bucket for key and pushes its idle expiry forward.
// Expired buckets are swept at most once per idle period.
func (b *clientBuckets) get(key string) *rate.Limiter {
	now := b.now()
	if last := b.lastSweep.Load(); now.Sub(time.Unix(0, last)) > bucketIdleTTL &&
		b.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		b.buckets.Invalidate("")
	}

	limiter, _, _ := b.buckets.GetOrLoad(context.Background(), key, func(context.Context) (*rate.Limiter, error) {
		return rate.NewLimiter(b.limit, b.burst), nil
	})
	b.buckets.Set(key, limiter)
	return limiter
}

// clientIP prefers the left-most X-Forwarded-For entry, then the peer
// address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware limits requests per client address and,
// optionally, the number of requests in flight. Health probes and the
// metrics endpoint are never limited.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	return newHTTPRateLimitMiddleware(cfg, time.Now)
}

func newHTTPRateLimitMiddleware(cfg *config.Config, now func() time.Time) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	exempt := map[string]bool{
		"/health": true,
		"/ready":  true,
	}
	if cfg.Monitoring.PrometheusEnabled {
		exempt[cfg.Monitoring.MetricsPath] = true
	}

	buckets := newClientBuckets(rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst, now)

	var inflight chan struct{}
	if n := cfg.RateLimiting.HTTP.MaxConcurrent; n > 0 {
		inflight = make(chan struct{}, n)
	}

	return func(c *gin.Context) {
		if exempt[c.Request.URL.Path] {
			c.Next()
			return
		}

		if inflight != nil {
			select {
			case inflight <- struct{}{}:
				defer func() { <-inflight }()
			default:
				abortWithError(c, apperrors.NewServiceUnavailableError("too many concurrent requests"))
				return
			}
		}

		limiter := buckets.get(clientIP(c.Request))
		if !limiter.AllowN(now(), 1) {
			wait := retryAfter(limiter, now())
			c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			abortWithError(c, apperrors.NewRateLimitError().WithContext("retry_after", wait.Seconds()))
			return
		}
		c.Next()
	}
}

// retryAfter is how long until the limiter admits the next request.
func retryAfter(l *rate.Limiter, now time.Time) time.Duration {
	r := l.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}
