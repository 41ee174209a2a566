package cache

import (
	"os"
	"path/filepath"
	"time"
)

// FileCache stores one file per key under a directory. Entries older than
// the TTL (by mtime) are misses; a zero TTL disables expiry. Unreadable or
// corrupt entries are treated as misses so a damaged cache never breaks an
// invocation.
type FileCache struct {
	dir string
	ttl time.Duration
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, ttl: ttl}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".cache")
}

// Get reads the cached value for key.
func (c *FileCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		_ = os.Remove(path)
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Set writes the value for key. Write failures are ignored: the cache is an
// optimization, not a store of record.
func (c *FileCache) Set(key string, value []byte) {
	_ = os.WriteFile(c.path(key), value, 0o644)
}
