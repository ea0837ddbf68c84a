// Package reflection implements the self-improvement loop: a collector that
// periodically samples per-agent conversation outcomes, turns them into
// insight records in bot-scope memory and appends an episodic summary per
// session. With a model backend attached the raw counters are rewritten into
// a prose assessment; without one the counters are stored as-is.
//
// Reflection episodes are recorded under the session id: the collector
// samples whole sessions, so the session stands in as the conversation that
// owns its episodic record. Scripts appending their own episodes keep using
// the conversation id they are bound to.
//
// The collector never gates message flow; a failed cycle is logged and the
// next tick starts fresh.
package reflection
