package model

import (
	"context"
	"fmt"
	"sync"
)

// Backend is a language model reachable for one-shot text generation.
type Backend interface {
	// Name identifies the concrete model, e.g. "gpt-4o-mini".
	Name() string

	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// MockBackend is an in-memory Backend with canned completions, useful for
// tests and examples.
type MockBackend struct {
	name string

	mu        sync.RWMutex
	responses map[string]string
	calls     int
	fail      error
}

// NewMockBackend constructs a MockBackend answering with a generic echo for
// prompts without a canned response.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		name:      name,
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockBackend) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Generate return err. Pass nil to recover.
func (m *MockBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns how many times Generate was invoked.
func (m *MockBackend) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Name implements Backend.
func (m *MockBackend) Name() string { return m.name }

// Generate implements Backend.
func (m *MockBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return "", m.fail
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("mock response to: %s", prompt), nil
}
