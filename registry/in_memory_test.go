package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/botmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.Registry = (*InMemoryRegistry)(nil)

func TestRegister_Idempotent(t *testing.T) {
	r := NewInMemoryRegistry()

	b1, err := r.Register("s1", "billing", core.BindingConfig{Triggers: []string{"refund"}})
	assert.NoError(t, err)
	assert.True(t, b1.Active)

	b2, err := r.Register("s1", "billing", core.BindingConfig{Triggers: []string{"refund", "invoice"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"refund", "invoice"}, b2.Triggers)
	assert.Equal(t, b1.ActivatedAt, b2.ActivatedAt)

	bindings := r.List("s1")
	assert.Len(t, bindings, 1, "re-registration must not duplicate the entry")
}

func TestResolveTrigger(t *testing.T) {
	r := NewInMemoryRegistry()

	_, err := r.Register("s1", "billing", core.BindingConfig{Triggers: []string{"Refund", "invoice"}})
	assert.NoError(t, err)
	_, err = r.Register("s1", "support", core.BindingConfig{Triggers: []string{"help", "broken"}})
	assert.NoError(t, err)

	assert.Equal(t, []string{"billing"}, r.ResolveTrigger("s1", "I need a refund"))
	assert.Equal(t, []string{"support"}, r.ResolveTrigger("s1", "my screen is BROKEN"))
	assert.Empty(t, r.ResolveTrigger("s1", "hello there"))
	assert.Empty(t, r.ResolveTrigger("s2", "refund"), "unknown session resolves nothing")
}

func TestResolveTrigger_MultipleCandidatesByPriority(t *testing.T) {
	r := NewInMemoryRegistry()

	_, _ = r.Register("s1", "generalist", core.BindingConfig{Triggers: []string{"order"}})
	_, _ = r.Register("s1", "specialist", core.BindingConfig{Triggers: []string{"order"}, Priority: 10})

	got := r.ResolveTrigger("s1", "where is my order")
	assert.Equal(t, []string{"specialist", "generalist"}, got, "all candidates returned, priority first")
}

func TestResolveTrigger_SkipsInactive(t *testing.T) {
	r := NewInMemoryRegistry()

	_, _ = r.Register("s1", "billing", core.BindingConfig{Triggers: []string{"refund"}})
	assert.NoError(t, r.SetActive("s1", "billing", false))
	assert.Empty(t, r.ResolveTrigger("s1", "refund please"))
}

func TestUnregisterAndEndSession(t *testing.T) {
	r := NewInMemoryRegistry()

	_, _ = r.Register("s1", "billing", core.BindingConfig{})
	_, _ = r.Register("s1", "support", core.BindingConfig{})

	assert.NoError(t, r.Unregister("s1", "billing"))
	assert.Error(t, r.Unregister("s1", "billing"), "double unregister errors")
	assert.Len(t, r.List("s1"), 1)

	r.EndSession("s1")
	assert.Empty(t, r.List("s1"))
	assert.Empty(t, r.Sessions())
}

func TestIncrementHops(t *testing.T) {
	r := NewInMemoryRegistry()

	_, _ = r.Register("s1", "router", core.BindingConfig{})
	assert.Equal(t, 1, r.IncrementHops("s1", "router"))
	assert.Equal(t, 2, r.IncrementHops("s1", "router"))

	b, ok := r.Lookup("s1", "router")
	assert.True(t, ok)
	assert.Equal(t, 2, b.Hops)
}
