package geocache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/docfinder/internal/domain/geo"
)

// geocoder is the consumer interface for the wrapped lookup (ISP).
type geocoder interface {
	Geocode(ctx context.Context, address string) geo.Result
}

// CachedGeocoder keeps successful lookups in a bounded LRU. Failures are not cached.
type CachedGeocoder struct {
	inner      geocoder
	cache      *lru.Cache[string, geo.Point]
	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner geocoder, size int, cacheTotal *prometheus.CounterVec) (*CachedGeocoder, error) {
	cache, err := lru.New[string, geo.Point](size)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, cacheTotal: cacheTotal}, nil
}

// Geocode returns a cached point or calls the inner geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) geo.Result {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))

	if p, ok := c.cache.Get(key); ok {
		c.incCache("hit")
		return geo.Found(p)
	}
	c.incCache("miss")

	res := c.inner.Geocode(ctx, address)
	if p, ok := res.Point(); ok {
		c.cache.Add(key, p)
	}
	return res
}

func (c *CachedGeocoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
