// Package cache memoizes per-file analysis results by content hash.
package cache

import (
	"crypto/md5"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnolang/minver/internal/types"
)

const DefaultSize = 4096

// Cache is a bounded LRU of file results keyed by the hash of the
// analyzed source. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, types.FileResult]
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, types.FileResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Key returns the cache key of src.
func Key(src []byte) string {
	return fmt.Sprintf("%x", md5.Sum(src))
}

// Get returns the cached result for src. The path of the returned result
// is rewritten to path, since identical sources may live in many files.
func (c *Cache) Get(path string, src []byte) (types.FileResult, bool) {
	r, ok := c.entries.Get(Key(src))
	if !ok {
		return types.FileResult{}, false
	}
	r.Path = path
	return r, true
}

// Set stores r for src. Results carrying an error are not cached.
func (c *Cache) Set(src []byte, r types.FileResult) {
	if r.Err != nil {
		return
	}
	c.entries.Add(Key(src), r)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}
