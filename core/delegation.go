package core

import "time"

// DelegationContext threads chain position through one delegation call tree.
// It is transient: never persisted, alive only for the lifetime of the call
// tree it describes.
type DelegationContext struct {
	SessionID string
	Hops      int
	MaxHops   int
	Deadline  time.Time
}

// Next derives the context for one further hop.
func (d DelegationContext) Next() DelegationContext {
	d.Hops++
	return d
}

// Exceeded reports whether the current hop count is past the ceiling.
func (d DelegationContext) Exceeded() bool {
	return d.MaxHops > 0 && d.Hops > d.MaxHops
}

// Expired reports whether the chain deadline has passed. A zero deadline
// never expires.
func (d DelegationContext) Expired() bool {
	return !d.Deadline.IsZero() && time.Now().After(d.Deadline)
}
