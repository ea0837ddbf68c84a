// Package coordinator drives the higher-level agent-to-agent conversation
// patterns on top of the router: delegation with correlated responses,
// broadcasts, collaboration fan-out and conversation transfer.
//
// A delegation is a Delegate-kind message with a hop count one above its
// parent. The coordinator refuses to send past the hop ceiling, retries
// transport failures within the caller's deadline, and marks the request
// expired when no response arrives in time. Serve runs the receiving side:
// a serial per-agent loop that feeds inbound messages to a handler and sends
// the handler's output back as the correlated response.
package coordinator
