package store

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/purplemerit/leadmesh/internal/models"
)

// DefaultShortTermTTL is applied when a Put does not specify a TTL.
const DefaultShortTermTTL = 24 * time.Hour

const shortTermShards = 32

// ShortTermStore is the TTL-bounded conversation context tier. It is sharded
// by conversation ID so concurrent conversations do not contend on one lock.
// Expiry is lazy: a Get past the deadline purges the entry and reports absent.
type ShortTermStore struct {
	shards     [shortTermShards]*shortTermShard
	defaultTTL time.Duration
}

type shortTermShard struct {
	mu      sync.Mutex
	entries map[string]shortTermEntry
}

type shortTermEntry struct {
	context   map[string]any
	createdAt time.Time
	expiresAt time.Time
}

// NewShortTermStore creates a short-term store. defaultTTL <= 0 falls back to
// DefaultShortTermTTL.
func NewShortTermStore(defaultTTL time.Duration) *ShortTermStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultShortTermTTL
	}
	s := &ShortTermStore{defaultTTL: defaultTTL}
	for i := range s.shards {
		s.shards[i] = &shortTermShard{entries: make(map[string]shortTermEntry)}
	}
	return s
}

func (s *ShortTermStore) shard(key string) *shortTermShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shortTermShards]
}

// Put stores context for a conversation, overwriting any existing entry and
// resetting its TTL. ttl <= 0 uses the store default.
func (s *ShortTermStore) Put(conversationID string, context map[string]any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	sh := s.shard(conversationID)
	sh.mu.Lock()
	sh.entries[conversationID] = shortTermEntry{
		context:   context,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	sh.mu.Unlock()
}

// Get returns the context for a conversation. An expired entry is purged as a
// side effect and reported as absent.
func (s *ShortTermStore) Get(conversationID string) (map[string]any, bool) {
	sh := s.shard(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[conversationID]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(sh.entries, conversationID)
		return nil, false
	}
	return e.context, true
}

// Snapshot returns all unexpired entries, purging expired ones as it scans.
// Consolidation reads from this; it never removes live entries.
func (s *ShortTermStore) Snapshot() []models.ContextEntry {
	now := time.Now()
	var out []models.ContextEntry
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if !now.Before(e.expiresAt) {
				delete(sh.entries, id)
				continue
			}
			out = append(out, models.ContextEntry{
				ConversationID: id,
				Context:        e.context,
				CreatedAt:      e.createdAt,
				ExpiresAt:      e.expiresAt,
			})
		}
		sh.mu.Unlock()
	}
	return out
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been purged.
func (s *ShortTermStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
