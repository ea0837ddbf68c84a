// Package core contains the shared domain contracts of BotMesh: the A2A
// message model, the four-scope memory contract, the session bot registry,
// the router and delegation abstractions, and the sentinel errors the
// orchestration layer returns to callers.
//
// Implementations live in sibling packages (memory, registry, router,
// coordinator, store). Depend on the interfaces defined here; select concrete
// implementations at wiring time. Centralizing the contracts in one package
// keeps the implementation packages free of cycles.
package core
