// File: internal/cache/cache.go
// Description: File-backed analysis result cache keyed by error fingerprint.
// The cache is strictly best-effort: every IO or decode problem degrades to a
// miss so a corrupt cache directory can never fail an analysis.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/config"
)

const entrySuffix = ".json"

// fingerprintRe rejects anything that is not a bare hex digest before it is
// used as a file name.
var fingerprintRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// envelope is the on-disk shape of an entry. CreatedAt travels with the
// payload so TTL survives file copies and mtime changes.
type envelope struct {
	CreatedAt time.Time              `json:"created_at"`
	Result    schemas.AnalysisResult `json:"result"`
}

// Cache stores analysis results under one file per fingerprint. All methods
// are safe for concurrent use; writers go through a temp file and rename so a
// reader never observes a partial entry.
type Cache struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	enabled    bool
	logger     *zap.Logger

	// mu serializes writers within this process; cross-process safety comes
	// from the rename-based write.
	mu     sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
}

// New prepares the cache directory. A directory that cannot be created
// disables the cache rather than failing the caller.
func New(cfg config.CacheConfig, logger *zap.Logger) *Cache {
	c := &Cache{
		dir:        cfg.Dir,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		enabled:    cfg.Enabled,
		logger:     logger.Named("cache"),
	}
	if !c.enabled {
		return c
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		c.logger.Warn("Cache directory unavailable; caching disabled",
			zap.String("dir", c.dir), zap.Error(err))
		c.enabled = false
	}
	return c
}

// Get returns the cached result for a fingerprint, or a miss. The returned
// result is a copy with Cached set; callers may mutate it freely. Expired and
// unreadable entries are removed on the way out.
func (c *Cache) Get(fp schemas.Fingerprint) (*schemas.AnalysisResult, bool) {
	if !c.enabled || !fingerprintRe.MatchString(string(fp)) {
		c.misses.Add(1)
		return nil, false
	}

	path := c.entryPath(fp)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Cache read failed; treating as miss", zap.String("path", path), zap.Error(err))
		}
		c.misses.Add(1)
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("Corrupt cache entry; removing", zap.String("path", path), zap.Error(err))
		_ = os.Remove(path)
		c.misses.Add(1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(env.CreatedAt) > c.ttl {
		_ = os.Remove(path)
		c.misses.Add(1)
		return nil, false
	}

	result := env.Result
	result.Cached = true
	c.hits.Add(1)
	return &result, true
}

// Put stores a result under its fingerprint. Failures are logged and
// swallowed. A successful put may evict the oldest entries to stay within the
// configured bound.
func (c *Cache) Put(fp schemas.Fingerprint, result *schemas.AnalysisResult) {
	if !c.enabled || result == nil || !fingerprintRe.MatchString(string(fp)) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *result
	stored.Cached = false
	data, err := json.Marshal(envelope{CreatedAt: time.Now().UTC(), Result: stored})
	if err != nil {
		c.logger.Warn("Cache encode failed", zap.Error(err))
		return
	}

	tmp, err := os.CreateTemp(c.dir, string(fp)+".tmp-")
	if err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		c.logger.Warn("Cache write failed", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		c.logger.Warn("Cache write failed", zap.Error(err))
		return
	}
	if err := os.Rename(tmpName, c.entryPath(fp)); err != nil {
		_ = os.Remove(tmpName)
		c.logger.Warn("Cache write failed", zap.Error(err))
		return
	}

	if c.maxEntries > 0 {
		c.sweep()
	}
}

// Sweep removes expired entries and, when a bound is configured, evicts the
// oldest entries until the count fits. It returns the number of files
// removed.
func (c *Cache) Sweep() int {
	if !c.enabled {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep()
}

func (c *Cache) sweep() int {
	entries, err := c.listEntries()
	if err != nil {
		c.logger.Warn("Cache sweep failed", zap.Error(err))
		return 0
	}

	removed := 0
	kept := entries[:0]
	for _, e := range entries {
		if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
			if os.Remove(e.path) == nil {
				removed++
			}
			continue
		}
		kept = append(kept, e)
	}

	if c.maxEntries > 0 && len(kept) > c.maxEntries {
		sort.Slice(kept, func(i, j int) bool { return kept[i].createdAt.Before(kept[j].createdAt) })
		for _, e := range kept[:len(kept)-c.maxEntries] {
			if os.Remove(e.path) == nil {
				removed++
			}
		}
	}
	return removed
}

// Clear removes every entry. Unlike reads and writes it reports the error;
// an operator invoking clear wants to know it did not happen.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.listEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Stats reports entry count and the hit/miss counters for this process.
func (c *Cache) Stats() schemas.CacheStats {
	stats := schemas.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if !c.enabled {
		return stats
	}
	if entries, err := c.listEntries(); err == nil {
		stats.Entries = len(entries)
	}
	return stats
}

// Enabled reports whether the cache is operational.
func (c *Cache) Enabled() bool { return c.enabled }

// Dir returns the directory entries live in.
func (c *Cache) Dir() string { return c.dir }

type entryInfo struct {
	path      string
	createdAt time.Time
}

func (c *Cache) entryPath(fp schemas.Fingerprint) string {
	return filepath.Join(c.dir, string(fp)+entrySuffix)
}

func (c *Cache) listEntries() ([]entryInfo, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	entries := make([]entryInfo, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		if !fingerprintRe.MatchString(strings.TrimSuffix(name, entrySuffix)) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entryInfo{
			path:      filepath.Join(c.dir, name),
			createdAt: info.ModTime(),
		})
	}
	return entries, nil
}
