package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Cache defines the interface for caching query results
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// Key generates a cache key for one operation on one snapshot version.
// Results of older versions are never returned for a newer snapshot.
func Key(version uint64, op string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "claimstore:v1:" + op + ":" + strconv.FormatUint(version, 10) + ":" + hex.EncodeToString(hash[:])
}

// New returns a memory cache, or a cache that stores nothing when ttl is not
// positive.
func New(ttl, cleanupInterval time.Duration) Cache {
	if ttl <= 0 {
		return Nop{}
	}
	return NewMemoryCache(ttl, cleanupInterval)
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(string) (any, bool) { return nil, false }
func (Nop) Set(string, any, time.Duration) {}
func (Nop) Delete(string) {}
func (Nop) Clear() {}
func (Nop) Len() int { return 0 }
