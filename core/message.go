package core

import (
	"time"

	"github.com/google/uuid"
)

// Kind categorizes an A2A message.
type Kind string

const (
	// KindRequest is a directed request expecting a correlated response.
	KindRequest Kind = "request"
	// KindResponse answers a previous request, sharing its correlation id.
	KindResponse Kind = "response"
	// KindBroadcast fans out to every agent registered in the session.
	KindBroadcast Kind = "broadcast"
	// KindDelegate hands conversation control to the recipient.
	KindDelegate Kind = "delegate"
	// KindCollaborate invites the recipient to work on a shared task.
	KindCollaborate Kind = "collaborate"
)

// ParseKind maps a stored string to a Kind, defaulting to KindRequest for
// unrecognized values.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindResponse, KindBroadcast, KindDelegate, KindCollaborate:
		return Kind(s)
	default:
		return KindRequest
	}
}

// Status tracks the delivery lifecycle of a message. Statuses other than
// StatusPending are terminal; messages are retained for audit afterwards.
type Status string

const (
	// StatusPending is the initial state before the router accepts the message.
	StatusPending Status = "pending"
	// StatusDelivered means the message was queued for its recipient(s).
	StatusDelivered Status = "delivered"
	// StatusFailed means delivery failed after retry exhaustion.
	StatusFailed Status = "failed"
	// StatusExpired means the delegation deadline elapsed before a response.
	StatusExpired Status = "expired"
)

// BroadcastRecipient is the wildcard recipient addressing every agent
// registered in the session at the instant of send.
const BroadcastRecipient = "*"

// Message is an immutable record of one directed agent-to-agent
// communication. Only Status and HopCount are set after construction; the
// rest is fixed at creation. A request and its response share CorrelationID.
type Message struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	SessionID     string    `json:"session_id"`
	From          string    `json:"from_agent"`
	To            string    `json:"to_agent"`
	Kind          Kind      `json:"message_type"`
	Payload       string    `json:"payload"`
	HopCount      int       `json:"hop_count"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewMessage constructs a pending message with fresh id and correlation id.
func NewMessage(sessionID, from, to string, kind Kind, payload string) Message {
	return Message{
		ID:            NewID(),
		CorrelationID: NewID(),
		SessionID:     sessionID,
		From:          from,
		To:            to,
		Kind:          kind,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// Response builds the reply to m: directed back at the sender, same
// correlation id, hop count advanced by one.
func (m Message) Response(from, payload string) Message {
	return Message{
		ID:            NewID(),
		CorrelationID: m.CorrelationID,
		SessionID:     m.SessionID,
		From:          from,
		To:            m.From,
		Kind:          KindResponse,
		Payload:       payload,
		HopCount:      m.HopCount + 1,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsBroadcast reports whether the message addresses the wildcard recipient.
func (m Message) IsBroadcast() bool { return m.To == BroadcastRecipient }

// NewID generates a new unique identifier used for message, correlation and
// binding ids throughout the module.
func NewID() string { return uuid.NewString() }
