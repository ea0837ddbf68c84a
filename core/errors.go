package core

import "fmt"

var (
	// ErrUnknownRecipient is returned synchronously when the target agent is
	// not registered in the session. No message is queued.
	ErrUnknownRecipient = fmt.Errorf("unknown recipient")

	// ErrMaxHopsExceeded is returned when a delegation attempt would exceed
	// the configured hop ceiling. No message is sent.
	ErrMaxHopsExceeded = fmt.Errorf("max delegation hops exceeded")

	// ErrDelegationTimeout is returned when no response arrived within the
	// deadline. The in-flight request is marked expired; a late response is
	// discarded.
	ErrDelegationTimeout = fmt.Errorf("delegation timed out")

	// ErrDelegationFailed is returned after transport-level retries are
	// exhausted.
	ErrDelegationFailed = fmt.Errorf("delegation failed")

	// ErrQuotaExceeded is returned when a memory write would exceed the
	// per-owner key ceiling. The prior value is unchanged.
	ErrQuotaExceeded = fmt.Errorf("memory quota exceeded")

	// ErrQueueFull is a transport-level failure: the recipient's inbound
	// queue is at capacity. Callers may retry.
	ErrQueueFull = fmt.Errorf("inbound queue full")
)
