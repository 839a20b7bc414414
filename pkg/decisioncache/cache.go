package decisioncache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/observability"
)

// Config tunes the decision cache.
type Config struct {
	// Size is the maximum number of cached decisions.
	Size int

	// TTL bounds how long a decision may be served from cache.
	TTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Size: 10000,
		TTL:  5 * time.Minute,
	}
}

// Cache is a bounded, TTL-expiring decision memo with request collapsing.
type Cache struct {
	lru     *expirable.LRU[string, attributes.Decision]
	group   singleflight.Group
	metrics *observability.Metrics
}

// New creates a decision cache. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	c := &Cache{metrics: metrics}
	c.lru = expirable.NewLRU[string, attributes.Decision](cfg.Size, func(string, attributes.Decision) {
		if c.metrics != nil {
			c.metrics.CacheEvictionsTotal.Inc()
		}
	}, cfg.TTL)
	return c
}

// GetOrEvaluate returns the cached decision for the request, evaluating at
// most once per key no matter how many goroutines ask concurrently. The
// returned decision carries CacheHit for served-from-cache results.
func (c *Cache) GetOrEvaluate(subject attributes.Subject, resource attributes.Resource,
	bundleVersion string, now time.Time, evaluate func() attributes.Decision) attributes.Decision {

	key := Key(subject, resource, bundleVersion, now)

	if d, ok := c.lru.Get(key); ok {
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		d.CacheHit = true
		return d
	}

	v, _, shared := c.group.Do(key, func() (interface{}, error) {
		// Losing the race between Get and Do is possible; recheck before
		// paying for an evaluation.
		if d, ok := c.lru.Get(key); ok {
			return d, nil
		}
		d := evaluate()
		c.lru.Add(key, d)
		if c.metrics != nil {
			c.metrics.CacheEntries.Set(float64(c.lru.Len()))
		}
		return d, nil
	})

	d := v.(attributes.Decision)
	if shared {
		// Collapsed onto another goroutine's evaluation.
		d.CacheHit = true
	} else if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return d
}

// Purge drops every cached decision. Wired to bundle activation so entries
// keyed on a superseded version stop occupying space.
func (c *Cache) Purge() {
	c.lru.Purge()
	if c.metrics != nil {
		c.metrics.CachePurgesTotal.Inc()
		c.metrics.CacheEntries.Set(0)
	}
}

// Len returns the number of cached decisions.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Key derives the cache key for one request. Everything that can change the
// outcome is folded in; now is bucketed by UTC date so embargo checks roll
// over at midnight without per-second churn.
func Key(subject attributes.Subject, resource attributes.Resource, bundleVersion string, now time.Time) string {
	coi := append([]string(nil), subject.ACPCOI...)
	sort.Strings(coi)

	h := sha256.New()
	parts := []string{
		subject.UniqueID,
		string(subject.Clearance),
		subject.CountryOfAffiliation,
		strings.Join(coi, ","),
		strconv.FormatBool(subject.Authenticated),
		subject.SourceIdP,
		resource.ResourceID,
		strconv.FormatInt(resource.AttributeVersion, 10),
		bundleVersion,
		now.UTC().Format("2006-01-02"),
	}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
