package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Options configure the in-memory registry.
type Options struct {
	// Store mirrors registrations into a durable backend. Nil disables
	// write-through.
	Store core.BindingStore
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

type sessionBindings struct {
	byAgent map[string]*core.Binding
	order   []string // registration order, stable across updates
}

// InMemoryRegistry is a process-local core.Registry. It is owned by the
// orchestration service and handed to callers explicitly; there is no
// ambient process-wide table.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionBindings
	store    core.BindingStore
	logger   logging.Logger
}

// NewInMemoryRegistry constructs an empty registry with optional overrides.
func NewInMemoryRegistry(optFns ...func(o *Options)) *InMemoryRegistry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryRegistry{
		sessions: make(map[string]*sessionBindings),
		store:    opts.Store,
		logger:   opts.Logger,
	}
}

// Register activates an agent in a session. Registering an already-active
// agent updates its bindings in place instead of duplicating the entry; the
// activation timestamp and hop counter survive the update.
func (r *InMemoryRegistry) Register(sessionID, agentID string, cfg core.BindingConfig) (core.Binding, error) {
	if sessionID == "" || agentID == "" {
		return core.Binding{}, fmt.Errorf("register requires session and agent ids")
	}

	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = &sessionBindings{byAgent: make(map[string]*core.Binding)}
		r.sessions[sessionID] = sess
	}
	b, exists := sess.byAgent[agentID]
	if !exists {
		b = &core.Binding{
			SessionID:   sessionID,
			AgentID:     agentID,
			Active:      true,
			ActivatedAt: time.Now().UTC(),
		}
		sess.byAgent[agentID] = b
		sess.order = append(sess.order, agentID)
	}
	b.Triggers = normalizeKeywords(cfg.Triggers)
	b.Tools = normalizeTools(cfg.Tools)
	b.Schedule = cfg.Schedule
	b.ModelClass = cfg.ModelClass
	b.Priority = cfg.Priority
	snapshot := *b
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveBinding(snapshot); err != nil {
			return snapshot, fmt.Errorf("persist binding: %w", err)
		}
	}
	r.logger.Debug("agent registered", "session_id", sessionID, "agent_id", agentID)
	return snapshot, nil
}

// Unregister removes an agent from the session.
func (r *InMemoryRegistry) Unregister(sessionID, agentID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		if _, ok = sess.byAgent[agentID]; ok {
			delete(sess.byAgent, agentID)
			for i, id := range sess.order {
				if id == agentID {
					sess.order = append(sess.order[:i], sess.order[i+1:]...)
					break
				}
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("agent %s not registered in session %s", agentID, sessionID)
	}
	if r.store != nil {
		if err := r.store.DeleteBinding(sessionID, agentID); err != nil {
			return fmt.Errorf("delete persisted binding: %w", err)
		}
	}
	return nil
}

// List returns the session's bindings in registration order.
func (r *InMemoryRegistry) List(sessionID string) []core.Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]core.Binding, 0, len(sess.order))
	for _, id := range sess.order {
		out = append(out, *sess.byAgent[id])
	}
	return out
}

// Lookup returns a copy of one binding.
func (r *InMemoryRegistry) Lookup(sessionID, agentID string) (core.Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return core.Binding{}, false
	}
	b, ok := sess.byAgent[agentID]
	if !ok {
		return core.Binding{}, false
	}
	return *b, true
}

// ResolveTrigger returns every active agent with a trigger keyword contained
// in the input, ordered by priority (highest first) then registration order.
// All candidates are returned; the caller decides precedence.
func (r *InMemoryRegistry) ResolveTrigger(sessionID, input string) []string {
	needle := strings.ToLower(input)

	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}

	type candidate struct {
		agentID  string
		priority int
		order    int
	}
	var matches []candidate
	for i, id := range sess.order {
		b := sess.byAgent[id]
		if !b.Active {
			continue
		}
		for _, kw := range b.Triggers {
			if kw != "" && strings.Contains(needle, kw) {
				matches = append(matches, candidate{agentID: id, priority: b.Priority, order: i})
				break
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority > matches[j].priority
		}
		return matches[i].order < matches[j].order
	})
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.agentID
	}
	return out
}

// SetActive flips the input-routing eligibility of an agent.
func (r *InMemoryRegistry) SetActive(sessionID, agentID string, active bool) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	var snapshot core.Binding
	if ok {
		var b *core.Binding
		b, ok = sess.byAgent[agentID]
		if ok {
			b.Active = active
			snapshot = *b
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("agent %s not registered in session %s", agentID, sessionID)
	}
	if r.store != nil {
		if err := r.store.SaveBinding(snapshot); err != nil {
			return fmt.Errorf("persist binding: %w", err)
		}
	}
	return nil
}

// IncrementHops advances the binding's delegation hop counter, returning the
// new value. Unregistered agents count from zero but are not created.
func (r *InMemoryRegistry) IncrementHops(sessionID, agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	b, ok := sess.byAgent[agentID]
	if !ok {
		return 0
	}
	b.Hops++
	return b.Hops
}

// Sessions lists every session with at least one binding.
func (r *InMemoryRegistry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if len(sess.byAgent) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// EndSession drops every binding for the session.
func (r *InMemoryRegistry) EndSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteSessionBindings(sessionID); err != nil {
			r.logger.Warn("failed to drop persisted session bindings", "session_id", sessionID, "error", err)
		}
	}
}

// normalizeKeywords lower-cases and trims trigger keywords, dropping empties.
func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// normalizeTools upper-cases tool names the way the script runtime expects.
func normalizeTools(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tool := range in {
		tool = strings.ToUpper(strings.TrimSpace(tool))
		if tool != "" {
			out = append(out, tool)
		}
	}
	return out
}
