package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/internal/testutil"
	"github.com/hupe1980/botmesh/registry"
)

// Interface compliance (compile-time assertions)
var (
	_ core.Router      = (*Router)(nil)
	_ core.StatsSource = (*Router)(nil)
)

func newTestRouter(t *testing.T, agents ...string) (*Router, *testutil.RecordingLog, core.Registry) {
	t.Helper()
	reg := registry.NewInMemoryRegistry()
	for _, a := range agents {
		_, err := reg.Register("s1", a, core.BindingConfig{})
		assert.NoError(t, err)
	}
	log := testutil.NewRecordingLog()
	r := New(reg, func(o *Options) { o.Log = log })
	return r, log, reg
}

func TestSend_DirectedFIFO(t *testing.T) {
	r, _, _ := newTestRouter(t, "a", "b")

	for _, payload := range []string{"one", "two", "three"} {
		n, err := r.Send(context.Background(), core.NewMessage("s1", "a", "b", core.KindRequest, payload))
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	var got []string
	for {
		msg, ok := r.Poll("s1", "b")
		if !ok {
			break
		}
		got = append(got, msg.Payload)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got, "order preserved within (session, sender, recipient)")
}

func TestSend_UnknownRecipient(t *testing.T) {
	r, log, _ := newTestRouter(t, "a")

	_, err := r.Send(context.Background(), core.NewMessage("s1", "a", "ghost", core.KindRequest, "hi"))
	assert.ErrorIs(t, err, core.ErrUnknownRecipient)
	assert.Empty(t, log.Messages(), "nothing queued, nothing recorded")
}

func TestSend_QueueFullIsTransportFailure(t *testing.T) {
	reg := registry.NewInMemoryRegistry()
	_, _ = reg.Register("s1", "a", core.BindingConfig{})
	_, _ = reg.Register("s1", "b", core.BindingConfig{})
	log := testutil.NewRecordingLog()
	r := New(reg, func(o *Options) { o.QueueSize = 1; o.Log = log })

	_, err := r.Send(context.Background(), core.NewMessage("s1", "a", "b", core.KindRequest, "1"))
	assert.NoError(t, err)
	_, err = r.Send(context.Background(), core.NewMessage("s1", "a", "b", core.KindRequest, "2"))
	assert.ErrorIs(t, err, core.ErrQueueFull)

	failed := 0
	for _, m := range log.Messages() {
		if m.Status == core.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed, "failed delivery is still audited")
}

func TestBroadcast_ExactlyOneCopyPerAgent(t *testing.T) {
	r, log, _ := newTestRouter(t, "sender", "a", "b", "c")

	n, err := r.Send(context.Background(), core.NewMessage("s1", "sender", core.BroadcastRecipient, core.KindBroadcast, "hello all"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n, "sender excluded, one copy per registered agent")

	recorded := log.ByKind(core.KindBroadcast)
	assert.Len(t, recorded, 3)
	seen := map[string]bool{}
	for _, m := range recorded {
		assert.Equal(t, core.StatusDelivered, m.Status)
		assert.False(t, seen[m.To], "agent %s received more than one copy", m.To)
		seen[m.To] = true
	}
}

func TestBroadcast_NoReplayForLateRegistrations(t *testing.T) {
	r, _, reg := newTestRouter(t, "sender", "a")

	n, err := r.Send(context.Background(), core.NewMessage("s1", "sender", core.BroadcastRecipient, core.KindBroadcast, "early"))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = reg.Register("s1", "latecomer", core.BindingConfig{})
	assert.NoError(t, err)
	_, ok := r.Poll("s1", "latecomer")
	assert.False(t, ok, "agents registering after a broadcast never see it")
}

func TestAwait_WakesOnMatchingResponse(t *testing.T) {
	r, _, _ := newTestRouter(t, "a", "b")

	req := core.NewMessage("s1", "a", "b", core.KindRequest, "ping")
	waitCh := r.Await(req.CorrelationID)
	_, err := r.Send(context.Background(), req)
	assert.NoError(t, err)

	inbound, ok := r.Poll("s1", "b")
	assert.True(t, ok)
	_, err = r.Send(context.Background(), inbound.Response("b", "pong"))
	assert.NoError(t, err)

	select {
	case resp := <-waitCh:
		assert.Equal(t, "pong", resp.Payload)
		assert.Equal(t, req.CorrelationID, resp.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestAbandon_LateResponseDiscarded(t *testing.T) {
	r, log, _ := newTestRouter(t, "a", "b")

	req := core.NewMessage("s1", "a", "b", core.KindRequest, "ping")
	r.Await(req.CorrelationID)
	_, err := r.Send(context.Background(), req)
	assert.NoError(t, err)

	r.Abandon(req.CorrelationID, core.StatusExpired)

	inbound, _ := r.Poll("s1", "b")
	n, err := r.Send(context.Background(), inbound.Response("b", "too late"))
	assert.NoError(t, err, "late responses are dropped silently, not surfaced as errors")
	assert.Equal(t, 0, n)

	// the discard is still audited with terminal status
	responses := log.ByKind(core.KindResponse)
	assert.Len(t, responses, 1)
	assert.Equal(t, core.StatusExpired, responses[0].Status)

	// and the requester's queue never sees it
	_, ok := r.Poll("s1", "a")
	assert.False(t, ok)
}

func TestAgentStats(t *testing.T) {
	r, _, _ := newTestRouter(t, "a", "b")

	req := core.NewMessage("s1", "a", "b", core.KindRequest, "ping")
	r.Await(req.CorrelationID)
	_, _ = r.Send(context.Background(), req)
	r.Abandon(req.CorrelationID, core.StatusExpired)

	stats := r.AgentStats("s1")
	var a core.AgentStats
	for _, st := range stats {
		if st.AgentID == "a" {
			a = st
		}
	}
	assert.Equal(t, 1, a.Sent)
	assert.Equal(t, 1, a.Expired)
}

func TestDropSession(t *testing.T) {
	r, _, _ := newTestRouter(t, "a", "b")

	_, err := r.Send(context.Background(), core.NewMessage("s1", "a", "b", core.KindRequest, "x"))
	assert.NoError(t, err)
	r.DropSession("s1")
	_, ok := r.Poll("s1", "b")
	assert.False(t, ok)
}

func TestSend_ErrorsAreTyped(t *testing.T) {
	r, _, _ := newTestRouter(t, "a")
	_, err := r.Send(context.Background(), core.NewMessage("s1", "a", "nobody", core.KindRequest, "x"))
	assert.True(t, errors.Is(err, core.ErrUnknownRecipient))
}
