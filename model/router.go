package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/botmesh/logging"
)

// Class names the task profile a query should be routed under.
type Class string

const (
	// ClassFast targets a lightweight model for short or simple queries.
	ClassFast Class = "fast"
	// ClassQuality targets the strongest model for complex reasoning.
	ClassQuality Class = "quality"
	// ClassCode targets a model tuned for code generation and debugging.
	ClassCode Class = "code"
	// ClassAuto lets the router classify the query itself.
	ClassAuto Class = "auto"
)

// ParseClass maps a string to a Class. The boolean reports whether s named a
// valid class.
func ParseClass(s string) (Class, bool) {
	switch Class(strings.ToLower(s)) {
	case ClassFast, ClassQuality, ClassCode, ClassAuto:
		return Class(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// ErrNoBackend is returned when neither the resolved class nor any fallback
// class has a bound backend.
var ErrNoBackend = fmt.Errorf("no backend bound")

// RouterOptions configure the model router.
type RouterOptions struct {
	// Default is the class used when classification matches nothing bound.
	// Zero means ClassQuality.
	Default Class
	// Fallback is the ordered list of classes tried when the primary
	// backend fails. Empty disables fallback.
	Fallback []Class
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Router maps task classes to backends and picks one per query.
type Router struct {
	backends map[Class]Backend
	def      Class
	fallback []Class
	logger   logging.Logger
}

// NewRouter constructs a Router with no backends bound.
func NewRouter(optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{
		Default: ClassQuality,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		backends: make(map[Class]Backend),
		def:      opts.Default,
		fallback: opts.Fallback,
		logger:   opts.Logger,
	}
}

// Bind attaches a backend to a class, replacing any previous binding. Bind
// is a wiring-time call: it must not run concurrently with Resolve or
// Generate.
func (r *Router) Bind(class Class, b Backend) { r.backends[class] = b }

// Classify analyzes the query and returns the class it should run under,
// considering only classes with a bound backend.
func (r *Router) Classify(query string) Class {
	lower := strings.ToLower(query)

	if r.bound(ClassCode) && containsAny(lower, "code", "program", "function", "debug", "error", "syntax") {
		return ClassCode
	}
	if r.bound(ClassQuality) && (len(query) > 500 || containsAny(lower, "analyze", "explain", "compare", "evaluate")) {
		return ClassQuality
	}
	if r.bound(ClassFast) && (len(query) < 100 || containsAny(lower, "what is", "define", "hello")) {
		return ClassFast
	}
	return r.def
}

// Resolve returns the backend for the class, classifying the query first when
// the class is auto.
func (r *Router) Resolve(class Class, query string) (Backend, error) {
	if class == ClassAuto || class == "" {
		class = r.Classify(query)
	}
	b, ok := r.backends[class]
	if !ok {
		return nil, fmt.Errorf("class %s: %w", class, ErrNoBackend)
	}
	return b, nil
}

// Generate resolves the class and runs the query, trying the fallback classes
// in order when the primary backend fails.
func (r *Router) Generate(ctx context.Context, class Class, query string) (string, error) {
	primary, err := r.Resolve(class, query)
	if err != nil {
		return "", err
	}
	text, err := primary.Generate(ctx, query)
	if err == nil {
		return text, nil
	}
	r.logger.Warn("model backend failed", "backend", primary.Name(), "error", err)

	for _, fc := range r.fallback {
		b, ok := r.backends[fc]
		if !ok || b == primary {
			continue
		}
		text, ferr := b.Generate(ctx, query)
		if ferr == nil {
			r.logger.Info("model fallback served the query", "backend", b.Name(), "class", fc)
			return text, nil
		}
		r.logger.Warn("model fallback failed", "backend", b.Name(), "error", ferr)
	}
	return "", fmt.Errorf("backend %s: %w", primary.Name(), err)
}

func (r *Router) bound(class Class) bool {
	_, ok := r.backends[class]
	return ok
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
