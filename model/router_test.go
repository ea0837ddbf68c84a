package model

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundRouter(optFns ...func(o *RouterOptions)) (*Router, map[Class]*MockBackend) {
	r := NewRouter(optFns...)
	backends := map[Class]*MockBackend{
		ClassFast:    NewMockBackend("mini"),
		ClassQuality: NewMockBackend("large"),
		ClassCode:    NewMockBackend("coder"),
	}
	for class, b := range backends {
		r.Bind(class, b)
	}
	return r, backends
}

func TestClassify(t *testing.T) {
	r, _ := newBoundRouter()

	tests := []struct {
		query string
		want  Class
	}{
		{"please debug this stack trace", ClassCode},
		{"write a function that reverses a list", ClassCode},
		{"analyze the tradeoffs between these designs and give a recommendation for our team", ClassQuality},
		{strings.Repeat("context ", 80), ClassQuality},
		{"hello", ClassFast},
		{"what is a session", ClassFast},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Classify(tt.query), "query %q", tt.query)
	}
}

func TestClassify_SkipsUnboundClasses(t *testing.T) {
	r := NewRouter(func(o *RouterOptions) { o.Default = ClassFast })
	r.Bind(ClassFast, NewMockBackend("mini"))

	// code keywords present, but no code backend bound
	assert.Equal(t, ClassFast, r.Classify("debug this code"))
}

func TestResolve_Auto(t *testing.T) {
	r, backends := newBoundRouter()

	b, err := r.Resolve(ClassAuto, "fix the syntax error in my program")
	require.NoError(t, err)
	assert.Equal(t, backends[ClassCode].Name(), b.Name())
}

func TestResolve_NoBackend(t *testing.T) {
	r := NewRouter()
	_, err := r.Resolve(ClassQuality, "anything")
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestParseClass(t *testing.T) {
	c, ok := ParseClass("Quality")
	assert.True(t, ok)
	assert.Equal(t, ClassQuality, c)

	_, ok = ParseClass("turbo")
	assert.False(t, ok)
}

func TestGenerate_FallbackOrder(t *testing.T) {
	r, backends := newBoundRouter(func(o *RouterOptions) {
		o.Fallback = []Class{ClassQuality, ClassFast}
	})
	backends[ClassCode].FailWith(fmt.Errorf("rate limited"))
	backends[ClassQuality].FailWith(fmt.Errorf("rate limited"))
	backends[ClassFast].AddResponse("debug this error", "served by fallback")

	text, err := r.Generate(context.Background(), ClassAuto, "debug this error")
	require.NoError(t, err)
	assert.Equal(t, "served by fallback", text)
	assert.Equal(t, 1, backends[ClassCode].Calls())
	assert.Equal(t, 1, backends[ClassQuality].Calls())
}

func TestGenerate_FallbackExhausted(t *testing.T) {
	r, backends := newBoundRouter(func(o *RouterOptions) {
		o.Fallback = []Class{ClassFast}
	})
	backends[ClassCode].FailWith(fmt.Errorf("down"))
	backends[ClassFast].FailWith(fmt.Errorf("down"))

	_, err := r.Generate(context.Background(), ClassCode, "debug this")
	assert.ErrorContains(t, err, "down")
}
