package registry

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"vatguard/internal/exemption/metrics"
	"vatguard/pkg/platform/sentinel"
)

// Cache stores definitive registry answers.
type Cache interface {
	Find(ctx context.Context, countryCode, number string) (Status, error)
	Save(ctx context.Context, countryCode, number string, status Status) error
}

// CachingChecker serves definitive answers from a Cache and collapses
// concurrent lookups for the same identifier into one upstream call.
type CachingChecker struct {
	next    Checker
	cache   Cache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CachingOption configures a CachingChecker.
type CachingOption func(*CachingChecker)

// WithCacheLogger sets the logger used for cache failures.
func WithCacheLogger(logger *slog.Logger) CachingOption {
	return func(c *CachingChecker) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the metrics collector.
func WithCacheMetrics(m *metrics.Metrics) CachingOption {
	return func(c *CachingChecker) {
		c.metrics = m
	}
}

// NewCachingChecker wraps next with cache.
func NewCachingChecker(next Checker, cache Cache, opts ...CachingOption) *CachingChecker {
	c := &CachingChecker{next: next, cache: cache}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupResult struct {
	status Status
}

// Lookup implements Checker.
func (c *CachingChecker) Lookup(ctx context.Context, countryCode, number string) (Status, error) {
	status, err := c.cache.Find(ctx, countryCode, number)
	switch {
	case err == nil:
		c.metrics.RecordCacheHit()
		return status, nil
	case errors.Is(err, sentinel.ErrNotFound):
		c.metrics.RecordCacheMiss()
	default:
		c.metrics.RecordCacheMiss()
		if c.logger != nil {
			c.logger.WarnContext(ctx, "registry cache read failed", "error", err)
		}
	}

	v, err, _ := c.group.Do(countryCode+number, func() (any, error) {
		status, err := c.next.Lookup(ctx, countryCode, number)
		if err != nil {
			return lookupResult{status: status}, err
		}
		if status.Definitive() {
			if saveErr := c.cache.Save(ctx, countryCode, number, status); saveErr != nil && c.logger != nil {
				c.logger.WarnContext(ctx, "registry cache write failed", "error", saveErr)
			}
		}
		return lookupResult{status: status}, nil
	})
	res, _ := v.(lookupResult)
	return res.status, err
}
