package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	ical "github.com/arran4/golang-ical"
	"golang.org/x/sync/singleflight"

	appLog "neucal/internal/log"
	"neucal/internal/metrics"
)

// DefaultTTL is how long a fetched document is served without asking the
// network again.
const DefaultTTL = time.Hour

// Snapshot is the cached calendar document and the time it was fetched.
// A stored Snapshot is never modified; refreshes replace it.
type Snapshot struct {
	Document  *ical.Calendar
	FetchedAt time.Time

	validators Validators
}

// Fresh reports whether the snapshot may be served without a refresh.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return s != nil && !s.FetchedAt.IsZero() && now.Sub(s.FetchedAt) <= ttl
}

// Cache holds the single calendar snapshot for the process and refreshes
// it on demand once it expires.
type Cache struct {
	fetcher      Fetcher
	source       string
	ttl          time.Duration
	maxStaleness time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window. Zero or negative keeps DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithMaxStaleness bounds how old a snapshot may be when served as a
// fallback after a failed refresh. Zero means no bound.
func WithMaxStaleness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxStaleness = d
		}
	}
}

// WithFetchTimeout bounds a refresh. The refresh is detached from the
// caller's cancellation because other callers may be waiting on it.
// Zero or negative keeps DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records fetch and cache outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithSource sets the label used for the feed in log lines.
func WithSource(feedURL string) Option {
	return func(c *Cache) {
		c.source = redactURL(feedURL)
	}
}

// NewCache creates an empty cache backed by f.
func NewCache(f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:      f,
		source:       "feed",
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	if hf, ok := f.(*HTTPFetcher); ok {
		c.source = redactURL(hf.URL())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current snapshot, or false if no fetch has ever
// succeeded.
func (c *Cache) Snapshot() (Snapshot, bool) {
	s := c.snap.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Stats describes the current snapshot for health reporting.
type Stats struct {
	Loaded    bool
	FetchedAt time.Time
	Age       time.Duration
	Fresh     bool
	TTL       time.Duration
}

// Stats reports the age and freshness of the current snapshot.
func (c *Cache) Stats() Stats {
	st := Stats{TTL: c.ttl}
	snap, ok := c.Snapshot()
	if !ok {
		return st
	}
	now := c.now()
	st.Loaded = true
	st.FetchedAt = snap.FetchedAt
	st.Age = now.Sub(snap.FetchedAt)
	st.Fresh = snap.Fresh(now, c.ttl)
	return st
}

// Document returns the current calendar document, refreshing it from the
// network when the snapshot is missing or expired. When the refresh fails
// the previous document is returned; a *FetchError is returned only when
// there is nothing to fall back to.
func (c *Cache) Document(ctx context.Context) (*ical.Calendar, error) {
	now := c.now()
	if s := c.snap.Load(); s.Fresh(now, c.ttl) {
		c.observe(metrics.CacheHit, now, s)
		return s.Document, nil
	}

	// Concurrent callers share one in-flight refresh.
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ical.Calendar), nil
}

func (c *Cache) refresh(ctx context.Context) (*ical.Calendar, error) {
	now := c.now()
	prev := c.snap.Load()
	// Another caller may have refreshed while we waited to get here.
	if prev.Fresh(now, c.ttl) {
		c.observe(metrics.CacheHit, now, prev)
		return prev.Document, nil
	}

	var v Validators
	if prev != nil {
		v = prev.validators
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.fetcher.Fetch(fetchCtx, v)
	if c.metrics != nil {
		c.metrics.FeedFetchLatency.Observe(time.Since(start).Seconds())
	}

	var next *Snapshot
	if err == nil {
		next, err = c.accept(prev, resp, now)
	}
	if err != nil {
		c.countFetch(metrics.FetchError)
		return c.fallback(prev, now, err)
	}

	c.snap.Store(next)
	c.observe(metrics.CacheRefresh, now, next)
	appLog.Info("calendar refreshed",
		"source", c.source,
		"not_modified", resp.NotModified,
		"events", len(next.Document.Events()),
	)
	return next.Document, nil
}

// accept turns a successful response into the next snapshot.
func (c *Cache) accept(prev *Snapshot, resp Response, now time.Time) (*Snapshot, error) {
	if resp.NotModified {
		if prev == nil {
			return nil, errors.New("received 304 Not Modified but no cached document available")
		}
		c.countFetch(metrics.FetchNotModified)
		return &Snapshot{Document: prev.Document, FetchedAt: now, validators: resp.Validators}, nil
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	c.countFetch(metrics.FetchOK)
	return &Snapshot{Document: cal, FetchedAt: now, validators: resp.Validators}, nil
}

// fallback serves the previous snapshot after a failed refresh. FetchedAt
// is left alone so the next call tries the network again.
func (c *Cache) fallback(prev *Snapshot, now time.Time, cause error) (*ical.Calendar, error) {
	if prev == nil {
		appLog.Error("calendar fetch failed, no cached data", cause, "source", c.source)
		c.observe(metrics.CacheMiss, now, nil)
		return nil, &FetchError{Err: cause}
	}

	age := now.Sub(prev.FetchedAt)
	if c.maxStaleness > 0 && age > c.maxStaleness {
		appLog.Error("calendar fetch failed, cached data too old", cause,
			"source", c.source,
			"age", age.Round(time.Second).String(),
			"max_staleness", c.maxStaleness.String(),
		)
		c.observe(metrics.CacheMiss, now, nil)
		return nil, &FetchError{Err: fmt.Errorf("cached calendar is %s old (limit %s): %w",
			age.Round(time.Second), c.maxStaleness, cause)}
	}

	appLog.Warn("calendar fetch failed, serving stale data",
		"err", cause,
		"source", c.source,
		"age", age.Round(time.Second).String(),
	)
	c.observe(metrics.CacheStale, now, prev)
	return prev.Document, nil
}

func (c *Cache) countFetch(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.FeedFetches.WithLabelValues(result).Inc()
}

func (c *Cache) observe(outcome string, now time.Time, s *Snapshot) {
	if c.metrics == nil {
		return
	}
	c.metrics.CacheOutcomes.WithLabelValues(outcome).Inc()
	if s != nil {
		c.metrics.SnapshotAge.Set(now.Sub(s.FetchedAt).Seconds())
	}
}
