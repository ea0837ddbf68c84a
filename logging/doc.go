// Package logging provides the minimal logging interface BotMesh components
// depend on, plus slog-backed and no-op implementations.
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Components take a Logger through their Options; the default everywhere is
// NoOpLogger so library users opt in to output explicitly.
package logging
