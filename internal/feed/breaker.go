package feed

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker functionality
// so a misbehaving feed cannot stall every dashboard request behind timeouts.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

var _ Provider = (*CircuitBreakerProvider)(nil)

// exec is a generic helper for circuit breaker wrapper methods
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	provider Provider,
	fn func(Provider) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(provider) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with sensible defaults.
func NewCircuitBreakerProvider(provider Provider) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(provider, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider with custom settings.
func NewCircuitBreakerProviderWithSettings(provider Provider, settings CircuitBreakerSettings) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "FeedCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}
	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetQuote wraps the underlying provider call with circuit breaker protection.
func (c *CircuitBreakerProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*Quote, error) {
		return p.GetQuote(ctx, symbol)
	})
}

// GetExpirations wraps the underlying provider call with circuit breaker protection.
func (c *CircuitBreakerProvider) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]string, error) {
		return p.GetExpirations(ctx, symbol)
	})
}

// GetOptionChain wraps the underlying provider call with circuit breaker protection.
func (c *CircuitBreakerProvider) GetOptionChain(ctx context.Context, symbol, expiration string, greeks bool) ([]Option, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]Option, error) {
		return p.GetOptionChain(ctx, symbol, expiration, greeks)
	})
}

// GetHistory wraps the underlying provider call with circuit breaker protection.
func (c *CircuitBreakerProvider) GetHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]Candle, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]Candle, error) {
		return p.GetHistory(ctx, symbol, interval, start, end)
	})
}
