package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Cache provides storage and retrieval of compiled artifacts.
//
// Entries are keyed by the pair (unit name, IdentityHash). The hash alone is
// not a key: two units with identical source and dependencies share a hash
// but must keep separate artifacts.
//
// There is no eviction. Once stored, an artifact is retained indefinitely.
//
// Writes for a key are idempotent. Concurrent writers racing on the same key
// resolve last-writer-wins without corrupting storage.
type Cache interface {
	// Lookup returns the artifact stored under (name, hash).
	// Returns nil, nil when there is no entry.
	Lookup(name string, hash IdentityHash) (*Artifact, error)

	// Store records the artifact under (name, hash).
	Store(name string, hash IdentityHash, artifact *Artifact) error
}

// cacheEntry is the on-disk record of one cached artifact.
type cacheEntry struct {
	Unit     string       `json:"unit"`
	Hash     IdentityHash `json:"hash"`
	Artifact *Artifact    `json:"artifact"`
}

// FileCache implements Cache using the filesystem.
//
// Structure:
//
//	{CacheDir}/
//	  {hash[0:2]}/
//	    {hash}/
//	      {query-escaped unit name}.json
type FileCache struct {
	// CacheDir is the root directory for cache storage.
	CacheDir string
}

// NewFileCache creates a new filesystem-based cache.
func NewFileCache(cacheDir string) *FileCache {
	return &FileCache{CacheDir: cacheDir}
}

// Lookup retrieves a cached artifact.
func (c *FileCache) Lookup(name string, hash IdentityHash) (*Artifact, error) {
	data, err := os.ReadFile(c.entryPath(name, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Storagef(err, "reading cache entry %s@%s", name, hash.Short())
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, Storagef(err, "parsing cache entry %s@%s", name, hash.Short())
	}
	if entry.Unit != name || entry.Hash != hash || entry.Artifact == nil {
		return nil, Storagef(fmt.Errorf("entry records %s@%s", entry.Unit, entry.Hash.Short()),
			"cache entry %s@%s mismatch", name, hash.Short())
	}
	return entry.Artifact, nil
}

// Store writes an artifact.
//
// The entry is synced to a temp file, renamed into place and its directory
// synced, so a crash never leaves a partial entry at the canonical path and
// concurrent writers of the same key resolve last-writer-wins.
func (c *FileCache) Store(name string, hash IdentityHash, artifact *Artifact) error {
	if artifact == nil {
		return fmt.Errorf("artifact for %s is nil", name)
	}
	if name == "" || hash == "" {
		return fmt.Errorf("cache key requires unit name and hash")
	}

	entryPath := c.entryPath(name, hash)
	if err := EnsureDirDurable(filepath.Dir(entryPath), 0755); err != nil {
		return Storagef(err, "creating cache directory")
	}

	data, err := json.MarshalIndent(cacheEntry{Unit: name, Hash: hash, Artifact: artifact}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := WriteFileAtomicDurable(entryPath, data, 0644); err != nil {
		return Storagef(err, "writing cache entry %s@%s", name, hash.Short())
	}
	return nil
}

// entryPath returns the file path for a cache entry.
// Uses first 2 characters of hash as a prefix directory to avoid
// having too many entries in a single directory.
func (c *FileCache) entryPath(name string, hash IdentityHash) string {
	hashStr := string(hash)
	file := url.QueryEscape(name) + ".json"
	if len(hashStr) < 2 {
		return filepath.Join(c.CacheDir, hashStr, file)
	}
	return filepath.Join(c.CacheDir, hashStr[:2], hashStr, file)
}

type cacheKey struct {
	name string
	hash IdentityHash
}

// MemoryCache implements Cache using in-memory storage.
// Useful for testing and short-lived processes.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Artifact
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[cacheKey]*Artifact),
	}
}

// Lookup retrieves a cached artifact.
func (c *MemoryCache) Lookup(name string, hash IdentityHash) (*Artifact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[cacheKey{name, hash}]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent mutation
	return a.Clone(), nil
}

// Store records an artifact.
func (c *MemoryCache) Store(name string, hash IdentityHash, artifact *Artifact) error {
	if artifact == nil {
		return fmt.Errorf("artifact for %s is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{name, hash}] = artifact.Clone()
	return nil
}

// Len returns the number of cached artifacts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
