package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

const episodeKeyFormat = "episode_%08d"

// Options configure the in-memory store.
type Options struct {
	// Quota is the per-owner key ceiling. Writes of new keys beyond it fail
	// with core.ErrQuotaExceeded. Zero means the default of 1000.
	Quota int
	// MaxEpisodes caps retained episodes per conversation; the oldest are
	// dropped past the cap. Zero means the default of 100.
	MaxEpisodes int
	// Persister mirrors writes into a durable backend. Nil disables
	// write-through.
	Persister core.MemoryPersister
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

type entry struct {
	value     string
	expiresAt time.Time // zero: no expiry
	updatedAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryStore is a process-local core.MemoryStore. Per-key operations are
// atomic under a single RWMutex; concurrent writers to the same key race
// under last-write-wins, which is the documented contract. Expired keys read
// as absent and are evicted by a background goroutine kicked off at read
// time.
type InMemoryStore struct {
	mu          sync.RWMutex
	scopes      map[core.Scope]map[string]map[string]entry // scope -> owner -> key
	episodeSeq  map[string]int
	quota       int
	maxEpisodes int
	persister   core.MemoryPersister
	logger      logging.Logger
}

// NewInMemoryStore constructs an empty store with optional overrides.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Quota:       1000,
		MaxEpisodes: 100,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Quota <= 0 {
		opts.Quota = 1000
	}
	if opts.MaxEpisodes <= 0 {
		opts.MaxEpisodes = 100
	}
	return &InMemoryStore{
		scopes:      make(map[core.Scope]map[string]map[string]entry),
		episodeSeq:  make(map[string]int),
		quota:       opts.Quota,
		maxEpisodes: opts.MaxEpisodes,
		persister:   opts.Persister,
		logger:      opts.Logger,
	}
}

// Set writes a value, overwriting in place. New keys beyond the owner quota
// are rejected with core.ErrQuotaExceeded; overwrites never count against the
// quota.
func (s *InMemoryStore) Set(scope core.Scope, owner, key, value string, ttl time.Duration) error {
	if owner == "" {
		return fmt.Errorf("memory entry requires an owner")
	}

	s.mu.Lock()
	owners, ok := s.scopes[scope]
	if !ok {
		owners = make(map[string]map[string]entry)
		s.scopes[scope] = owners
	}
	keys, ok := owners[owner]
	if !ok {
		keys = make(map[string]entry)
		owners[owner] = keys
	}
	if _, exists := keys[key]; !exists && len(keys) >= s.quota {
		s.mu.Unlock()
		return fmt.Errorf("owner %s: %w", owner, core.ErrQuotaExceeded)
	}
	now := time.Now()
	e := entry{value: value, updatedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	keys[key] = e
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.SaveEntry(core.Entry{
			Scope: scope, Owner: owner, Key: key, Value: value,
			ExpiresAt: e.expiresAt, UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("persist memory entry: %w", err)
		}
	}
	return nil
}

// Get returns the value and whether it exists. An expired key reads as
// absent; eviction of the stale record happens asynchronously.
func (s *InMemoryStore) Get(scope core.Scope, owner, key string) (string, bool) {
	s.mu.RLock()
	e, ok := s.scopes[scope][owner][key]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}
	if e.expired(time.Now()) {
		go s.evict(scope, owner, key)
		return "", false
	}
	return e.value, true
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *InMemoryStore) Delete(scope core.Scope, owner, key string) {
	s.mu.Lock()
	delete(s.scopes[scope][owner], key)
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteEntry(scope, owner, key); err != nil {
			s.logger.Warn("failed to delete persisted memory entry", "scope", scope, "owner", owner, "key", key, "error", err)
		}
	}
}

// ClearSession drops the whole session-scope namespace for sessionID.
func (s *InMemoryStore) ClearSession(sessionID string) {
	s.mu.Lock()
	delete(s.scopes[core.ScopeSession], sessionID)
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteOwner(core.ScopeSession, sessionID); err != nil {
			s.logger.Warn("failed to clear persisted session memory", "session_id", sessionID, "error", err)
		}
	}
}

// AppendEpisode appends a summarized conversation record under a sequenced
// key. Episodes past the retention cap are dropped oldest first.
func (s *InMemoryStore) AppendEpisode(conversationID, summary string) error {
	if conversationID == "" {
		return fmt.Errorf("memory entry requires an owner")
	}

	s.mu.Lock()
	owners, ok := s.scopes[core.ScopeEpisodic]
	if !ok {
		owners = make(map[string]map[string]entry)
		s.scopes[core.ScopeEpisodic] = owners
	}
	keys, ok := owners[conversationID]
	if !ok {
		keys = make(map[string]entry)
		owners[conversationID] = keys
	}
	s.episodeSeq[conversationID]++
	seq := s.episodeSeq[conversationID]
	key := fmt.Sprintf(episodeKeyFormat, seq)
	now := time.Now()
	keys[key] = entry{value: summary, updatedAt: now}

	var dropped []string
	if len(keys) > s.maxEpisodes {
		ordered := sortedKeys(keys)
		for _, k := range ordered[:len(keys)-s.maxEpisodes] {
			delete(keys, k)
			dropped = append(dropped, k)
		}
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.SaveEntry(core.Entry{
			Scope: core.ScopeEpisodic, Owner: conversationID, Key: key, Value: summary, UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("persist episode: %w", err)
		}
		for _, k := range dropped {
			if err := s.persister.DeleteEntry(core.ScopeEpisodic, conversationID, k); err != nil {
				s.logger.Warn("failed to delete persisted episode", "conversation_id", conversationID, "key", k, "error", err)
			}
		}
	}
	return nil
}

// Episodes lists up to limit episode summaries, newest first. limit <= 0
// returns all retained episodes.
func (s *InMemoryStore) Episodes(conversationID string, limit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.scopes[core.ScopeEpisodic][conversationID]
	if len(keys) == 0 {
		return nil
	}
	ordered := sortedKeys(keys)
	// newest first
	summaries := make([]string, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		summaries = append(summaries, keys[ordered[i]].value)
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return summaries
}

// evict removes a key only if it is still expired, so a concurrent overwrite
// between the read and the eviction wins.
func (s *InMemoryStore) evict(scope core.Scope, owner, key string) {
	s.mu.Lock()
	e, ok := s.scopes[scope][owner][key]
	if ok && e.expired(time.Now()) {
		delete(s.scopes[scope][owner], key)
		ok = true
	} else {
		ok = false
	}
	s.mu.Unlock()

	if ok && s.persister != nil {
		if err := s.persister.DeleteEntry(scope, owner, key); err != nil {
			s.logger.Warn("failed to evict persisted memory entry", "scope", scope, "owner", owner, "key", key, "error", err)
		}
	}
}

func sortedKeys(m map[string]entry) []string {
	ordered := make([]string, 0, len(m))
	for k := range m {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)
	return ordered
}
