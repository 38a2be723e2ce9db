// Package cache keeps recently produced diagnostics bundles close to the
// API so repeated lookups do not hit the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
)

const (
	defaultMaxItems = 1000
	defaultTTL      = 24 * time.Hour
)

// Remote is the optional shared tier behind the in-memory cache.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// Loader fetches a bundle on a miss in both tiers.
type Loader func(ctx context.Context, documentID string) (*domain.Diagnostics, error)

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RemoteHits   int64     `json:"remote_hits"`
	RemoteMisses int64     `json:"remote_misses"`
	Loads        int64     `json:"loads"`
	Errors       int64     `json:"errors"`
	Size         int       `json:"size"`
	LastReset    time.Time `json:"last_reset"`
}

// DiagnosticsCache is a two-tier read-through cache keyed by document id.
type DiagnosticsCache struct {
	memory *expirable.LRU[string, *domain.Diagnostics]
	remote Remote
	ttl    time.Duration
	logger *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// New creates a cache holding up to maxItems bundles for ttl each. remote
// may be nil.
func New(maxItems int, ttl time.Duration, remote Remote, logger *logrus.Logger) *DiagnosticsCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &DiagnosticsCache{
		memory: expirable.NewLRU[string, *domain.Diagnostics](maxItems, nil, ttl),
		remote: remote,
		ttl:    ttl,
		logger: logger,
		stats:  Stats{LastReset: time.Now()},
	}
}

// NewFromConfig builds the cache from the cache section, connecting to
// Redis when a URL is configured.
func NewFromConfig(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (*DiagnosticsCache, error) {
	var remote Remote
	if cfg.RedisURL != "" {
		r, err := NewRedisTier(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		remote = r
		logger.Info("Redis diagnostics cache tier enabled")
	}
	return New(cfg.MaxItems, cfg.DefaultTTL, remote, logger), nil
}

// Put stores a bundle in both tiers. A failing remote tier is logged only.
func (c *DiagnosticsCache) Put(ctx context.Context, d *domain.Diagnostics) {
	if d == nil || d.DocumentID == "" {
		return
	}
	c.memory.Add(d.DocumentID, d)

	if c.remote == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		c.recordError()
		return
	}
	if err := c.remote.Set(ctx, key(d.DocumentID), payload, c.ttl); err != nil {
		c.recordError()
		c.logger.WithError(err).WithField("document_id", d.DocumentID).Warn("Failed to write diagnostics to remote cache")
	}
}

// Get looks the bundle up in memory, then the remote tier, then load.
// load may be nil, in which case a miss returns domain.ErrNotFound.
func (c *DiagnosticsCache) Get(ctx context.Context, documentID string, load Loader) (*domain.Diagnostics, error) {
	if d, ok := c.memory.Get(documentID); ok {
		c.record(func(s *Stats) { s.MemoryHits++ })
		return d, nil
	}
	c.record(func(s *Stats) { s.MemoryMisses++ })

	if d := c.getRemote(ctx, documentID); d != nil {
		c.record(func(s *Stats) { s.RemoteHits++ })
		c.memory.Add(documentID, d)
		return d, nil
	}

	if load == nil {
		return nil, fmt.Errorf("diagnostics %q: %w", documentID, domain.ErrNotFound)
	}

	c.record(func(s *Stats) { s.Loads++ })
	d, err := load(ctx, documentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.recordError()
		}
		return nil, err
	}

	c.Put(ctx, d)
	return d, nil
}

func (c *DiagnosticsCache) getRemote(ctx context.Context, documentID string) *domain.Diagnostics {
	if c.remote == nil {
		return nil
	}

	payload, ok, err := c.remote.Get(ctx, key(documentID))
	if err != nil {
		c.recordError()
		c.logger.WithError(err).WithField("document_id", documentID).Warn("Remote cache lookup failed")
		return nil
	}
	if !ok {
		c.record(func(s *Stats) { s.RemoteMisses++ })
		return nil
	}

	d := &domain.Diagnostics{}
	if err := json.Unmarshal(payload, d); err != nil {
		// Corrupted entry
		_ = c.remote.Del(ctx, key(documentID))
		c.record(func(s *Stats) { s.RemoteMisses++ })
		return nil
	}
	return d
}

// Invalidate removes a bundle from both tiers.
func (c *DiagnosticsCache) Invalidate(ctx context.Context, documentID string) {
	c.memory.Remove(documentID)
	if c.remote != nil {
		if err := c.remote.Del(ctx, key(documentID)); err != nil {
			c.recordError()
		}
	}
}

// Len returns the number of bundles held in memory.
func (c *DiagnosticsCache) Len() int {
	return c.memory.Len()
}

// Stats returns a snapshot of the counters.
func (c *DiagnosticsCache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	s := c.stats
	s.Size = c.memory.Len()
	return s
}

// Close releases the remote tier.
func (c *DiagnosticsCache) Close() error {
	c.memory.Purge()
	if c.remote != nil {
		return c.remote.Close()
	}
	return nil
}

func (c *DiagnosticsCache) record(f func(*Stats)) {
	c.statsMu.Lock()
	f(&c.stats)
	c.statsMu.Unlock()
}

func (c *DiagnosticsCache) recordError() {
	c.record(func(s *Stats) { s.Errors++ })
}

func key(documentID string) string {
	return "labqc:diagnostics:" + documentID
}
