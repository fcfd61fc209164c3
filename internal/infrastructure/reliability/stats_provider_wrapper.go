package reliability

import (
	"context"
	"errors"
	"fmt"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/circuitbreaker"
	"rillscope/pkg/logger"
	"rillscope/pkg/retry"

	"go.uber.org/zap"
)

// errPermanent marks provider errors that retrying cannot fix.
var errPermanent = errors.New("permanent provider error")

// temporary is implemented by transport errors that know whether a retry
// may succeed (statsclient.StatusError).
type temporary interface {
	Temporary() bool
}

// WrapperOption configures a StatsProviderWrapper.
type WrapperOption func(*StatsProviderWrapper)

// WithCircuitBreaker guards every provider call with a shared breaker.
func WithCircuitBreaker(cfg circuitbreaker.Config) WrapperOption {
	return func(w *StatsProviderWrapper) {
		w.circuitBreaker = circuitbreaker.New(cfg)
	}
}

// StatsProviderWrapper wraps a StatsProvider with retry logic and an
// optional circuit breaker. An open breaker surfaces as
// domain.ErrProviderUnavailable.
type StatsProviderWrapper struct {
	provider ports.StatsProvider
	logger   *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewStatsProviderWrapper wraps provider with retries and an optional breaker.
func NewStatsProviderWrapper(
	provider ports.StatsProvider,
	retryConfig retry.Config,
	log *zap.SugaredLogger,
	opts ...WrapperOption,
) *StatsProviderWrapper {
	retryConfig.NonRetryable = append(retryConfig.NonRetryable, errPermanent, domain.ErrProviderUnavailable)

	w := &StatsProviderWrapper{
		provider:    provider,
		logger:      logger.OrNop(log),
		retryConfig: retryConfig,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.circuitBreaker != nil {
		w.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
			w.logger.Infow("stats provider circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		})
	}
	return w
}

// GetDetailedStats calls the wrapped provider with retry and breaker.
func (w *StatsProviderWrapper) GetDetailedStats(ctx context.Context) (*domain.Snapshot, error) {
	return call(ctx, w, func() (*domain.Snapshot, error) {
		return w.provider.GetDetailedStats(ctx)
	})
}

// GetRoomStats calls the wrapped provider with retry and breaker.
func (w *StatsProviderWrapper) GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error) {
	return call(ctx, w, func() (*domain.ParticipantSnapshot, error) {
		return w.provider.GetRoomStats(ctx, roomID)
	})
}

// GetHistoricalAnalytics calls the wrapped provider with retry and breaker.
func (w *StatsProviderWrapper) GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error) {
	return call(ctx, w, func() (*domain.HistoricalSnapshot, error) {
		return w.provider.GetHistoricalAnalytics(ctx, roomID, rng)
	})
}

// GetCircuitBreakerStats returns circuit breaker statistics. ok is false
// when no breaker is configured.
func (w *StatsProviderWrapper) GetCircuitBreakerStats() (stats circuitbreaker.Stats, ok bool) {
	if w.circuitBreaker == nil {
		return circuitbreaker.Stats{}, false
	}
	return w.circuitBreaker.GetStats(), true
}

func call[T any](ctx context.Context, w *StatsProviderWrapper, fn func() (T, error)) (T, error) {
	guarded := func() (T, error) {
		var (
			result T
			err    error
		)
		if w.circuitBreaker != nil {
			result, err = circuitbreaker.Call(ctx, w.circuitBreaker, fn)
		} else {
			result, err = fn()
		}
		return result, classify(err)
	}

	result, err := retry.Do(ctx, w.retryConfig, guarded)
	if err != nil {
		var zero T
		return zero, unwrapPermanent(err)
	}
	return result, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	var t temporary
	if errors.As(err, &t) && !t.Temporary() {
		return fmt.Errorf("%w: %w", errPermanent, err)
	}
	return err
}

// unwrapPermanent strips the internal marker while keeping the cause
// reachable with errors.Is / errors.As.
func unwrapPermanent(err error) error {
	if !errors.Is(err, errPermanent) {
		return err
	}
	var t temporary
	if errors.As(err, &t) {
		if cause, ok := t.(error); ok {
			return cause
		}
	}
	return err
}
