package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"frame-sampler/config"
)

// MetadataCache holds encoded metadata responses keyed by file identity.
type MetadataCache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

func NewMetadataCache(cfg *config.Config) (*MetadataCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.CacheNumCounters,
		MaxCost:     cfg.CacheMaxCost,
		BufferItems: cfg.CacheBufferItems,
		// MaxCost counts entries.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &MetadataCache{cache: cache, ttl: time.Duration(cfg.CacheTTL) * time.Second}, nil
}

// Key identifies path by its size and modification time, so a rewritten file misses.
func Key(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s;size=%d;mtime=%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

func (m *MetadataCache) Get(key string) ([]byte, bool) {
	return m.cache.Get(key)
}

func (m *MetadataCache) Set(key string, val []byte) {
	m.cache.SetWithTTL(key, val, 1, m.ttl)
}

// Wait blocks until pending writes are visible to Get.
func (m *MetadataCache) Wait() {
	m.cache.Wait()
}

func (m *MetadataCache) Close() {
	m.cache.Close()
}
