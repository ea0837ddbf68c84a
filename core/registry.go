package core

import "time"

// Binding links a session to an active agent. It is owned exclusively by the
// session and destroyed when the session ends. Hops counts delegation steps
// initiated by the agent within this session.
type Binding struct {
	SessionID   string    `json:"session_id"`
	AgentID     string    `json:"agent_id"`
	Triggers    []string  `json:"triggers,omitempty"`
	Tools       []string  `json:"tools,omitempty"`
	Schedule    string    `json:"schedule,omitempty"`
	ModelClass  string    `json:"model_class,omitempty"`
	Priority    int       `json:"priority"`
	Active      bool      `json:"active"`
	Hops        int       `json:"hops"`
	ActivatedAt time.Time `json:"activated_at"`
}

// BindingConfig carries the optional attributes of a registration.
type BindingConfig struct {
	Triggers   []string
	Tools      []string
	Schedule   string
	ModelClass string
	Priority   int
}

// Registry tracks which agents are active in each session, their trigger
// rules and their tool/schedule bindings. Registration is idempotent per
// (session, agent): registering again updates the binding in place.
type Registry interface {
	Register(sessionID, agentID string, cfg BindingConfig) (Binding, error)
	Unregister(sessionID, agentID string) error
	List(sessionID string) []Binding
	Lookup(sessionID, agentID string) (Binding, bool)

	// ResolveTrigger returns every active agent whose trigger keyword set
	// matches the input by containment, ordered by priority then
	// registration order. The registry never picks a winner; precedence is
	// the caller's decision.
	ResolveTrigger(sessionID, input string) []string

	// SetActive flips an agent's input-routing eligibility, used by
	// conversation transfer.
	SetActive(sessionID, agentID string, active bool) error

	// IncrementHops advances the binding's delegation hop counter and
	// returns the new value.
	IncrementHops(sessionID, agentID string) int

	// Sessions lists every session with at least one binding.
	Sessions() []string

	// EndSession drops all bindings for the session. There is no background
	// sweep; this is the only automatic cleanup path.
	EndSession(sessionID string)
}

// BindingStore mirrors registry mutations to a durable backend.
type BindingStore interface {
	SaveBinding(b Binding) error
	DeleteBinding(sessionID, agentID string) error
	DeleteSessionBindings(sessionID string) error
}
