// Package cache provides caching for rendered heatmaps and search results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	QueryCacheSize   int
}

// Manager manages image and search caches.
type Manager struct {
	imageCache *bigcache.BigCache
	queryCache *lru.Cache[string, []string]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	// Heatmap PNGs can be large; keep shards few so each holds several entries.
	imageCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 4096,
		MaxEntrySize:       512 * 1024,
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	queryCache, err := lru.New[string, []string](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		imageCache: imageCache,
		queryCache: queryCache,
	}, nil
}

// GetImage retrieves a rendered image from cache.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered image in cache.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetSearch retrieves search results from cache. The returned slice is
// shared and must not be modified.
func (m *Manager) GetSearch(key string) ([]string, bool) {
	return m.queryCache.Get(key)
}

// SetSearch stores search results in cache.
func (m *Manager) SetSearch(key string, ids []string) {
	m.queryCache.Add(key, ids)
}

// ImageKey generates a cache key for an image rendered from params.
// Parameter order does not affect the key.
func ImageKey(kind string, params map[string]string) string {
	if len(params) == 0 {
		return kind
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, k := range names {
		fmt.Fprintf(h, "%s=%s\x00", k, params[k])
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// IDsDigest hashes an id list for use as an ImageKey parameter. Nil and
// empty lists hash differently.
func IDsDigest(ids []string) string {
	if ids == nil {
		return "all"
	}
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SearchKey generates a cache key for a search query. Queries that split
// into the same terms share a key.
func SearchKey(query string) string {
	return "search:" + strings.Join(strings.Fields(query), " ")
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len": m.imageCache.Len(),
		"image_cache_cap": m.imageCache.Capacity(),
		"query_cache_len": m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}
