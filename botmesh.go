// Package botmesh provides a high-level façade over the orchestration
// subsystem: the session bot registry, the A2A message router, the scoped
// memory store and the delegation coordinator. Most applications interact
// with this package by:
//  1. Creating a BotMesh via New() (optionally overriding default in-memory services)
//  2. Registering agents per session and serving their message loops
//  3. Handing a per-script Runtime to the surrounding script interpreter
//
// All defaults are safe for local development and testing; production
// deployments typically attach the SQLite store package for the message
// audit log and the memory/binding write-through mirrors, and a structured
// logger.
package botmesh

import (
	"time"

	"github.com/hupe1980/botmesh/coordinator"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/memory"
	"github.com/hupe1980/botmesh/model"
	"github.com/hupe1980/botmesh/reflection"
	"github.com/hupe1980/botmesh/registry"
	"github.com/hupe1980/botmesh/router"
	"github.com/hupe1980/botmesh/script"
)

// Options configures the BotMesh instance.
type Options struct {
	// Registry overrides the default in-memory session bot registry.
	Registry core.Registry
	// Memory overrides the default in-memory scoped store.
	Memory core.MemoryStore
	// MessageLog receives the audit record of every routed message, e.g.
	// store.NewMessageLog. Nil disables auditing.
	MessageLog core.MessageLog
	// Models serves UseModel on runtimes handed out by Runtime.
	Models *model.Router
	// Searcher serves Search on runtimes handed out by Runtime.
	Searcher core.Searcher
	// QueueSize bounds each agent's inbound queue (default 100).
	QueueSize int
	// MaxHops is the delegation chain ceiling (default 5).
	MaxHops int
	// DelegationTimeout bounds each delegation's wait (default 30s).
	DelegationTimeout time.Duration
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// BotMesh aggregates the orchestration services behind one handle.
type BotMesh struct {
	opts     Options
	registry core.Registry
	memory   core.MemoryStore
	router   *router.Router
	coord    *coordinator.Coordinator
}

// New creates a BotMesh instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *BotMesh {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewInMemoryRegistry(func(o *registry.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore(func(o *memory.Options) {
			o.Logger = opts.Logger
		})
	}

	rt := router.New(opts.Registry, func(o *router.Options) {
		o.Log = opts.MessageLog
		o.QueueSize = opts.QueueSize
		o.Logger = opts.Logger
	})
	coord := coordinator.New(rt, opts.Registry, opts.Memory, func(o *coordinator.Options) {
		o.MaxHops = opts.MaxHops
		o.Timeout = opts.DelegationTimeout
		o.Log = opts.MessageLog
		o.Logger = opts.Logger
	})

	return &BotMesh{
		opts:     opts,
		registry: opts.Registry,
		memory:   opts.Memory,
		router:   rt,
		coord:    coord,
	}
}

// Registry returns the session bot registry.
func (m *BotMesh) Registry() core.Registry { return m.registry }

// Memory returns the scoped memory store.
func (m *BotMesh) Memory() core.MemoryStore { return m.memory }

// Router returns the message router.
func (m *BotMesh) Router() core.Router { return m.router }

// Coordinator returns the delegation coordinator.
func (m *BotMesh) Coordinator() *coordinator.Coordinator { return m.coord }

// Runtime returns the script-facing facade bound to the given identity.
func (m *BotMesh) Runtime(id script.Identity) *script.Runtime {
	return script.New(id, m.coord, m.router, m.registry, m.memory, func(o *script.Options) {
		o.Models = m.opts.Models
		o.Searcher = m.opts.Searcher
		o.Logger = m.opts.Logger
	})
}

// Reflector returns an insight collector sampling this instance's registry,
// router stats and memory.
func (m *BotMesh) Reflector(optFns ...func(o *reflection.Options)) *reflection.Collector {
	fns := append([]func(o *reflection.Options){func(o *reflection.Options) {
		o.Backend = backendFor(m.opts.Models)
		o.Logger = m.opts.Logger
	}}, optFns...)
	return reflection.New(m.registry, m.router, m.memory, fns...)
}

// EndSession tears a session down across all services: bindings dropped,
// session memory cleared, inbound queues released.
func (m *BotMesh) EndSession(sessionID string) {
	m.registry.EndSession(sessionID)
	m.memory.ClearSession(sessionID)
	m.router.DropSession(sessionID)
}

// backendFor picks the fast backend for reflection summaries when a model
// router is attached.
func backendFor(models *model.Router) model.Backend {
	if models == nil {
		return nil
	}
	b, err := models.Resolve(model.ClassFast, "")
	if err != nil {
		return nil
	}
	return b
}
