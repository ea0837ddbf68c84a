// Package memory contains concrete core.MemoryStore implementations. The
// store contract (scopes, per-key atomicity, last-write-wins, quota) lives in
// the core package; depend on core.MemoryStore in your code and pick an
// implementation at wiring time.
//
// The in-memory store here is the default. Attach a core.MemoryPersister
// (see the store package) to mirror writes into a durable backend without
// changing calling code.
package memory
