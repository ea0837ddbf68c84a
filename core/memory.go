package core

import "time"

// Scope determines the owner namespace and lifetime of a stored value.
type Scope string

const (
	// ScopeUser is keyed by user id, visible to all agents serving that user,
	// permanent unless a TTL is set.
	ScopeUser Scope = "user"
	// ScopeBot is keyed by agent id, visible across all users of that agent.
	ScopeBot Scope = "bot"
	// ScopeSession is keyed by session id and cleared at session end.
	ScopeSession Scope = "session"
	// ScopeEpisodic is keyed by conversation id: an append-only record of
	// summarized past turns.
	ScopeEpisodic Scope = "episodic"
)

// ParseScope maps a string to a Scope. The boolean reports whether s named a
// valid scope.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeUser, ScopeBot, ScopeSession, ScopeEpisodic:
		return Scope(s), true
	default:
		return "", false
	}
}

// Entry is one (scope, owner, key) value with optional expiry. ExpiresAt is
// zero when the entry does not expire.
type Entry struct {
	Scope     Scope
	Owner     string
	Key       string
	Value     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// MemoryStore is keyed, scoped storage shared by all agents. Operations are
// atomic per key; concurrent writers to the same key race under
// last-write-wins. No read-modify-write primitive is exposed: callers needing
// counters must accept lost updates or retry optimistically on top of
// Get/Set.
type MemoryStore interface {
	// Set writes a value, overwriting in place. ttl <= 0 means no expiry.
	// Returns ErrQuotaExceeded when the owner's key ceiling would be passed
	// by a new key.
	Set(scope Scope, owner, key, value string, ttl time.Duration) error

	// Get returns the value and whether it exists. Expired keys read as
	// absent and are evicted asynchronously.
	Get(scope Scope, owner, key string) (string, bool)

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(scope Scope, owner, key string)

	// ClearSession drops every session-scope entry owned by sessionID. This
	// is the only automatic cleanup path for session memory.
	ClearSession(sessionID string)

	// AppendEpisode appends a summarized conversation record for the
	// conversation owner. Episodes are sequenced and append-only.
	AppendEpisode(conversationID, summary string) error

	// Episodes lists up to limit episode summaries, newest first.
	Episodes(conversationID string, limit int) []string
}

// MemoryPersister receives write-through notifications from a MemoryStore so
// a durable backend can mirror the in-process state. Persister failure is
// fatal for the subsystem: memory durability can no longer be guaranteed.
type MemoryPersister interface {
	SaveEntry(e Entry) error
	DeleteEntry(scope Scope, owner, key string) error
	DeleteOwner(scope Scope, owner string) error
}
