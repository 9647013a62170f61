// Package retry wraps a market data provider with bounded retries and
// jittered backoff for transient feed failures.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jcallahan4/optiondesk/internal/feed"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// Provider retries the wrapped provider's calls on transient errors.
type Provider struct {
	provider feed.Provider
	logger   *logrus.Logger
	config   Config
}

var _ feed.Provider = (*Provider)(nil)

func NewProvider(provider feed.Provider, logger *logrus.Logger, config ...Config) *Provider {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Provider{
		provider: provider,
		logger:   logger,
		config:   cfg,
	}
}

// execRetry runs fn with backoff between transient failures.
func execRetry[T any](ctx context.Context, p *Provider, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s canceled: %w", op, ctx.Err())
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == p.config.MaxRetries {
			break
		}
		p.logger.WithError(err).Warnf("%s attempt %d/%d failed, retrying in %v",
			op, attempt+1, p.config.MaxRetries+1, backoff)

		select {
		case <-time.After(backoff):
			backoff = p.nextBackoff(backoff)
		case <-ctx.Done():
			return zero, fmt.Errorf("%s canceled during backoff: %w", op, ctx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, p.config.MaxRetries+1, lastErr)
}

func (p *Provider) nextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > p.config.MaxBackoff {
		backoff = p.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			p.logger.WithError(err).Warn("Failed to generate jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *feed.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func (p *Provider) GetQuote(ctx context.Context, symbol string) (*feed.Quote, error) {
	return execRetry(ctx, p, "quote fetch", func() (*feed.Quote, error) {
		return p.provider.GetQuote(ctx, symbol)
	})
}

func (p *Provider) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	return execRetry(ctx, p, "expirations fetch", func() ([]string, error) {
		return p.provider.GetExpirations(ctx, symbol)
	})
}

func (p *Provider) GetOptionChain(ctx context.Context, symbol, expiration string, greeks bool) ([]feed.Option, error) {
	return execRetry(ctx, p, "option chain fetch", func() ([]feed.Option, error) {
		return p.provider.GetOptionChain(ctx, symbol, expiration, greeks)
	})
}

func (p *Provider) GetHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]feed.Candle, error) {
	return execRetry(ctx, p, "history fetch", func() ([]feed.Candle, error) {
		return p.provider.GetHistory(ctx, symbol, interval, start, end)
	})
}
