package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultEntries = 32
	DefaultTTL     = 5 * time.Minute
)

// Key identifies content by its sha256 digest, prefixed by kind.
func Key(kind string, content []byte) string {
	sum := sha256.Sum256(content)
	return kind + ":" + hex.EncodeToString(sum[:])
}

type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Purges  uint64 `json:"purges"`
}

// Store is a size and TTL bounded cache. A miss only costs recomputation.
type Store[V any] struct {
	lru    *expirable.LRU[string, V]
	hits   atomic.Uint64
	misses atomic.Uint64
	purges atomic.Uint64
}

func New[V any](entries int, ttl time.Duration) *Store[V] {
	if entries <= 0 {
		entries = DefaultEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store[V]{lru: expirable.NewLRU[string, V](entries, nil, ttl)}
}

func (s *Store[V]) Get(key string) (V, bool) {
	v, ok := s.lru.Get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return v, ok
}

func (s *Store[V]) Add(key string, v V) {
	s.lru.Add(key, v)
}

func (s *Store[V]) Len() int {
	return s.lru.Len()
}

func (s *Store[V]) Purge() {
	s.lru.Purge()
	s.purges.Add(1)
}

func (s *Store[V]) Stats() Stats {
	return Stats{Entries: s.lru.Len(), Hits: s.hits.Load(), Misses: s.misses.Load(), Purges: s.purges.Load()}
}
