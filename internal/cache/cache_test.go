// File: internal/cache/cache_test.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/api/schemas"
	"github.com/buildmedic/buildmedic-cli/internal/config"
)

func newTestCache(t *testing.T, cfg config.CacheConfig) *Cache {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	cfg.Enabled = true
	return New(cfg, zap.NewNop())
}

func fp(seed string) schemas.Fingerprint {
	sum := sha256.Sum256([]byte(seed))
	return schemas.Fingerprint(hex.EncodeToString(sum[:]))
}

func sampleResult() *schemas.AnalysisResult {
	return &schemas.AnalysisResult{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		RootCause:  "connection refused during integration tests",
		Confidence: 80,
		Severity:   schemas.SeverityMedium,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, config.CacheConfig{TTL: time.Hour})

	key := fp("roundtrip")
	_, ok := c.Get(key)
	require.False(t, ok)

	c.Put(key, sampleResult())

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.True(t, got.Cached)
	assert.Equal(t, "connection refused during integration tests", got.RootCause)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestCacheGetReturnsACopy(t *testing.T) {
	c := newTestCache(t, config.CacheConfig{TTL: time.Hour})
	key := fp("copy")
	c.Put(key, sampleResult())

	first, ok := c.Get(key)
	require.True(t, ok)
	first.RootCause = "mutated by caller"

	second, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "connection refused during integration tests", second.RootCause)
}

func TestCacheExpiredEntryIsRemoved(t *testing.T) {
	c := newTestCache(t, config.CacheConfig{TTL: time.Millisecond})
	key := fp("expired")
	c.Put(key, sampleResult())

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.EqualValues(t, 0, c.Stats().Entries)
}

func TestCacheCorruptEntryDegradesToMiss(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, config.CacheConfig{Dir: dir, TTL: time.Hour})
	key := fp("corrupt")

	path := filepath.Join(dir, string(key)+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, ok := c.Get(key)
	assert.False(t, ok)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt entry should be deleted")
}

func TestCacheRejectsNonHexFingerprints(t *testing.T) {
	c := newTestCache(t, config.CacheConfig{TTL: time.Hour})

	c.Put(schemas.Fingerprint("../escape"), sampleResult())
	_, ok := c.Get(schemas.Fingerprint("../escape"))

	assert.False(t, ok)
	assert.EqualValues(t, 0, c.Stats().Entries)
}

func TestCacheSweepEvictsOldestPastBound(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, config.CacheConfig{Dir: dir, TTL: time.Hour, MaxEntries: 3})

	for i := 0; i < 5; i++ {
		key := fp(fmt.Sprintf("entry-%d", i))
		c.Put(key, sampleResult())
		// Spread mod times so eviction order is deterministic.
		old := time.Now().Add(time.Duration(i-10) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, string(key)+".json"), old, old))
	}

	c.Sweep()
	assert.EqualValues(t, 3, c.Stats().Entries)

	// The two oldest are gone, the newest survives.
	_, ok := c.Get(fp("entry-0"))
	assert.False(t, ok)
	_, ok = c.Get(fp("entry-4"))
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(t, config.CacheConfig{TTL: time.Hour})
	c.Put(fp("one"), sampleResult())
	c.Put(fp("two"), sampleResult())

	require.NoError(t, c.Clear())
	assert.EqualValues(t, 0, c.Stats().Entries)
}

func TestCacheDisabledDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	// Using a regular file as the cache dir cannot work; the cache must
	// disable itself instead of erroring later.
	c := New(config.CacheConfig{Enabled: true, Dir: filepath.Join(file, "sub"), TTL: time.Hour}, zap.NewNop())
	assert.False(t, c.Enabled())

	c.Put(fp("ignored"), sampleResult())
	_, ok := c.Get(fp("ignored"))
	assert.False(t, ok)
}
