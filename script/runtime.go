package script

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/botmesh/coordinator"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/model"
)

// Identity binds a script execution to the entities it acts as. Memory
// scopes resolve their owner from here: user scope to UserID, bot scope to
// AgentID, session scope to SessionID, episodic scope to ConversationID.
type Identity struct {
	SessionID      string
	UserID         string
	AgentID        string
	ConversationID string
}

// Options configure the runtime facade.
type Options struct {
	// Models serves UseModel. Nil makes UseModel fail.
	Models *model.Router
	// Searcher serves Search. Nil makes Search fail.
	Searcher core.Searcher
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// BotOptions carry the optional attributes of an AddBot call.
type BotOptions struct {
	Triggers   []string
	Tools      []string
	Schedule   string
	ModelClass string
	Priority   int
}

// Runtime is the per-script orchestration facade.
type Runtime struct {
	id       Identity
	coord    *coordinator.Coordinator
	router   core.Router
	registry core.Registry
	memory   core.MemoryStore
	models   *model.Router
	searcher core.Searcher
	logger   logging.Logger
}

// New constructs a Runtime bound to the given identity.
func New(id Identity, coord *coordinator.Coordinator, router core.Router, registry core.Registry, memory core.MemoryStore, optFns ...func(o *Options)) *Runtime {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{
		id:       id,
		coord:    coord,
		router:   router,
		registry: registry,
		memory:   memory,
		models:   opts.Models,
		searcher: opts.Searcher,
		logger:   logging.WithSession(opts.Logger, id.SessionID),
	}
}

// AddBot registers an agent in the script's session.
func (r *Runtime) AddBot(name string, optFns ...func(o *BotOptions)) (core.Binding, error) {
	var opts BotOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return r.registry.Register(r.id.SessionID, name, core.BindingConfig{
		Triggers:   opts.Triggers,
		Tools:      opts.Tools,
		Schedule:   opts.Schedule,
		ModelClass: opts.ModelClass,
		Priority:   opts.Priority,
	})
}

// Delegate hands a task to another agent and returns the response text.
// timeout <= 0 uses the coordinator default.
func (r *Runtime) Delegate(ctx context.Context, to, payload string, timeout time.Duration) (string, error) {
	resp, err := r.coord.Delegate(ctx, r.id.SessionID, r.id.AgentID, to, payload,
		func(o *coordinator.DelegateOptions) { o.Timeout = timeout })
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// Broadcast notifies every other agent in the session and returns how many
// were reached.
func (r *Runtime) Broadcast(ctx context.Context, payload string) (int, error) {
	return r.coord.Broadcast(ctx, r.id.SessionID, r.id.AgentID, payload)
}

// Transfer hands the conversation to another agent, carrying the named
// session-scope keys along.
func (r *Runtime) Transfer(ctx context.Context, to string, contextKeys ...string) error {
	return r.coord.Transfer(ctx, r.id.SessionID, r.id.AgentID, to, contextKeys)
}

// SetMemory writes a value under the named scope, owner resolved from the
// bound identity. ttl <= 0 means no expiry.
func (r *Runtime) SetMemory(scope, key, value string, ttl time.Duration) error {
	sc, owner, err := r.resolveScope(scope)
	if err != nil {
		return err
	}
	return r.memory.Set(sc, owner, key, value, ttl)
}

// GetMemory reads a value under the named scope. The boolean reports whether
// the key exists.
func (r *Runtime) GetMemory(scope, key string) (string, bool, error) {
	sc, owner, err := r.resolveScope(scope)
	if err != nil {
		return "", false, err
	}
	value, ok := r.memory.Get(sc, owner, key)
	return value, ok, nil
}

// DeleteMemory removes a key under the named scope.
func (r *Runtime) DeleteMemory(scope, key string) error {
	sc, owner, err := r.resolveScope(scope)
	if err != nil {
		return err
	}
	r.memory.Delete(sc, owner, key)
	return nil
}

// Remember appends an episodic summary for the bound conversation.
func (r *Runtime) Remember(summary string) error {
	return r.memory.AppendEpisode(r.id.ConversationID, summary)
}

// Recall lists up to limit episodic summaries of the bound conversation,
// newest first.
func (r *Runtime) Recall(limit int) []string {
	return r.memory.Episodes(r.id.ConversationID, limit)
}

// PendingMessages drains and returns the messages waiting for the bound
// agent, in delivery order.
func (r *Runtime) PendingMessages() []core.Message {
	var out []core.Message
	for {
		msg, ok := r.router.Poll(r.id.SessionID, r.id.AgentID)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

// UseModel runs a prompt under the named model class.
func (r *Runtime) UseModel(ctx context.Context, class, prompt string) (string, error) {
	if r.models == nil {
		return "", fmt.Errorf("no model router configured")
	}
	c, ok := model.ParseClass(class)
	if !ok {
		return "", fmt.Errorf("unknown model class %q", class)
	}
	return r.models.Generate(ctx, c, prompt)
}

// Search forwards a knowledge query to the attached searcher.
func (r *Runtime) Search(ctx context.Context, query, collection string, limit int) ([]core.SearchResult, error) {
	if r.searcher == nil {
		return nil, fmt.Errorf("no searcher configured")
	}
	return r.searcher.Search(ctx, query, collection, limit)
}

func (r *Runtime) resolveScope(scope string) (core.Scope, string, error) {
	sc, ok := core.ParseScope(scope)
	if !ok {
		return "", "", fmt.Errorf("unknown memory scope %q", scope)
	}
	switch sc {
	case core.ScopeUser:
		return sc, r.id.UserID, nil
	case core.ScopeBot:
		return sc, r.id.AgentID, nil
	case core.ScopeSession:
		return sc, r.id.SessionID, nil
	default:
		return sc, r.id.ConversationID, nil
	}
}
