// Package registry houses concrete implementations of core.Registry, the
// per-session table of active agents and their trigger/tool/schedule
// bindings. The interface and the Binding struct live in the core package so
// higher level packages (router, coordinator) never depend on concrete
// storage.
//
// Trigger resolution is a pure function of (bindings, input): no live agents
// are consulted, which keeps it trivially unit-testable.
package registry
