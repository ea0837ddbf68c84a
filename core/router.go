package core

import "context"

// Router delivers typed messages between agent instances. Each agent has one
// logical inbound FIFO queue per session; order is preserved within a
// (session, sender, recipient) triple but not across senders or sessions.
// Delivery is at-most-once: an unresolvable recipient fails the send
// synchronously instead of queuing.
type Router interface {
	// Send validates, records and queues the message. For broadcasts it fans
	// a separate copy out to every agent registered at the instant of send
	// and returns once all copies are queued. The returned count is the
	// number of queues reached.
	Send(ctx context.Context, msg Message) (int, error)

	// Poll returns the next pending message for the agent without blocking.
	Poll(sessionID, agentID string) (Message, bool)

	// Subscribe returns the agent's inbound stream. The same channel is
	// returned for repeated calls with the same (session, agent).
	Subscribe(sessionID, agentID string) <-chan Message

	// Await registers a wait for the response bearing correlationID. The
	// channel receives at most one message.
	Await(correlationID string) <-chan Message

	// Abandon releases a wait and records its terminal status so any late
	// response with the same correlation id is discarded silently.
	Abandon(correlationID string, status Status)

	// DropSession releases every queue and waiter belonging to the session.
	DropSession(sessionID string)
}

// MessageLog is the append-mostly audit record of every routed message.
// Unavailability of the log backend is the one fatal condition of the
// orchestration subsystem.
type MessageLog interface {
	Record(m Message) error
	UpdateStatus(id string, status Status) error
}

// AgentStats aggregates per-agent conversation outcomes for one session,
// sampled by the reflection collector.
type AgentStats struct {
	AgentID   string
	Sent      int
	Served    int
	Responded int
	Expired   int
}

// StatsSource exposes outcome counters per session. The router implements
// this; the counters are best-effort and reset with the process.
type StatsSource interface {
	AgentStats(sessionID string) []AgentStats
}
