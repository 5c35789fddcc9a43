package resolver

import (
	"context"
	"os"
	"sync"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/parser"
)

// FileCache caches parsed Huff files keyed by canonical path. A path is read
// and parsed at most once regardless of how many files include it, and the
// cache may be shared by concurrent compilations of independent targets.
type FileCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	hits   int64
	misses int64
}

// cacheEntry guarantees a single writer per key: the first caller to reach a
// path performs the read and parse inside the Once while later callers wait
// on it.
type cacheEntry struct {
	once sync.Once
	file *ast.File
	err  error
}

// NewFileCache creates an empty file cache.
func NewFileCache() *FileCache {
	return &FileCache{entries: map[string]*cacheEntry{}}
}

// Preload registers in-memory source text under the given path, bypassing
// the filesystem. Used for tests and for callers that hold sources in
// memory. Preloading a path that was already loaded is a no-op.
func (c *FileCache) Preload(path, source string) {
	entry := c.entry(path)
	entry.once.Do(func() {
		entry.file, entry.err = parser.Parse(context.Background(), source,
			parser.WithFilename(path))
	})
}

// Load returns the parsed AST for the given canonical path, reading and
// parsing it on first use.
func (c *FileCache) Load(ctx context.Context, path string) (*ast.File, error) {
	entry := c.entry(path)
	entry.once.Do(func() {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		data, err := os.ReadFile(path)
		if err != nil {
			entry.err = err
			return
		}
		entry.file, entry.err = parser.Parse(ctx, string(data),
			parser.WithFilename(path))
	})
	return entry.file, entry.err
}

// Contains reports whether the path has an entry, populated or in flight.
func (c *FileCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

// Size returns the number of cached paths.
func (c *FileCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the cache counters: hits are lookups that found an existing
// entry, misses are paths that were read from disk and parsed.
func (c *FileCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *FileCache) entry(path string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	if !ok {
		entry = &cacheEntry{}
		c.entries[path] = entry
	} else {
		c.hits++
	}
	return entry
}
