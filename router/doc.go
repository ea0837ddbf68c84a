// Package router implements core.Router: typed message delivery between the
// agent instances of a session. Each (session, agent) pair owns one bounded
// FIFO inbound queue; broadcasts fan a copy out to every agent registered at
// the instant of send. Request/response pairing parks the requester on a
// correlation-keyed wait channel instead of polling.
//
// Late responses to abandoned waits are discarded by consulting a bounded
// cache of terminal correlation ids, so a timed-out delegation never wakes a
// stale caller.
package router
