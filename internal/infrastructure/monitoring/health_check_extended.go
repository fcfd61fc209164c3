package monitoring

import (
	"context"
	"fmt"
	"time"

	"rillscope/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddBreakerCheck reports the stats provider as unhealthy while its
// circuit breaker is open. stats returns false when no breaker is in use.
func (h *HealthChecker) AddBreakerCheck(stats func() (circuitbreaker.Stats, bool), interval time.Duration) {
	h.AddCheck("stats_provider", func(ctx context.Context) (bool, error) {
		s, ok := stats()
		if !ok || s.State != circuitbreaker.StateOpen {
			return true, nil
		}
		return false, fmt.Errorf("circuit breaker open since %s", s.StateChangeTime.Format(time.RFC3339))
	}, interval, 0)
}

// AddFreshnessCheck fails when the last successful snapshot is older than
// maxAge. A zero time means nothing has been collected yet.
func (h *HealthChecker) AddFreshnessCheck(lastUpdate func() time.Time, maxAge time.Duration, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	h.AddCheck("snapshot_freshness", func(ctx context.Context) (bool, error) {
		last := lastUpdate()
		if last.IsZero() {
			return false, fmt.Errorf("no snapshot collected yet")
		}
		if age := now().Sub(last); age > maxAge {
			return false, fmt.Errorf("last snapshot is %s old", age.Round(time.Second))
		}
		return true, nil
	}, 0, 0)
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.CheckAll(ctx)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
