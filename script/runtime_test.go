package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/coordinator"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/memory"
	"github.com/hupe1980/botmesh/model"
	"github.com/hupe1980/botmesh/registry"
	"github.com/hupe1980/botmesh/router"
)

type staticSearcher struct{ results []core.SearchResult }

func (s staticSearcher) Search(_ context.Context, _, _ string, limit int) ([]core.SearchResult, error) {
	if limit < len(s.results) {
		return s.results[:limit], nil
	}
	return s.results, nil
}

func newRuntime(t *testing.T, optFns ...func(o *Options)) (*Runtime, *coordinator.Coordinator, core.Registry) {
	t.Helper()
	reg := registry.NewInMemoryRegistry()
	rt := router.New(reg)
	mem := memory.NewInMemoryStore()
	coord := coordinator.New(rt, reg, mem)
	id := Identity{SessionID: "s1", UserID: "u1", AgentID: "main", ConversationID: "c1"}
	r := New(id, coord, rt, reg, mem, optFns...)
	_, err := r.AddBot("main")
	require.NoError(t, err)
	return r, coord, reg
}

func TestAddBot(t *testing.T) {
	r, _, reg := newRuntime(t)

	b, err := r.AddBot("billing", func(o *BotOptions) {
		o.Triggers = []string{"Refund"}
		o.Tools = []string{"lookup_order"}
		o.Priority = 3
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", b.AgentID)
	assert.Equal(t, []string{"refund"}, b.Triggers, "triggers normalized to lowercase")
	assert.Equal(t, []string{"LOOKUP_ORDER"}, b.Tools, "tools normalized to uppercase")
	assert.True(t, b.Active)

	assert.Equal(t, []string{"billing"}, reg.ResolveTrigger("s1", "refund please"))
}

func TestDelegate_ReturnsResponseText(t *testing.T) {
	r, coord, _ := newRuntime(t)
	_, err := r.AddBot("billing")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = coord.Serve(ctx, "s1", "billing", func(_ context.Context, _ core.Message) (string, error) {
			return "refunded", nil
		})
	}()

	text, err := r.Delegate(context.Background(), "billing", "refund order 42", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "refunded", text)
}

func TestMemory_ScopeOwnersResolved(t *testing.T) {
	r, _, _ := newRuntime(t)

	require.NoError(t, r.SetMemory("user", "lang", "de", 0))
	require.NoError(t, r.SetMemory("session", "cart", "2 items", 0))
	require.NoError(t, r.SetMemory("bot", "tone", "formal", 0))

	v, ok, err := r.GetMemory("user", "lang")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "de", v)

	// same key under a different scope is a different cell
	_, ok, err = r.GetMemory("session", "lang")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.DeleteMemory("user", "lang"))
	_, ok, _ = r.GetMemory("user", "lang")
	assert.False(t, ok)
}

func TestMemory_UnknownScope(t *testing.T) {
	r, _, _ := newRuntime(t)
	err := r.SetMemory("galaxy", "k", "v", 0)
	assert.ErrorContains(t, err, "unknown memory scope")
}

func TestRememberRecall(t *testing.T) {
	r, _, _ := newRuntime(t)

	require.NoError(t, r.Remember("user asked about refunds"))
	require.NoError(t, r.Remember("refund issued"))

	episodes := r.Recall(10)
	require.Len(t, episodes, 2)
	assert.Equal(t, "refund issued", episodes[0], "newest first")
}

func TestPendingMessages_DrainsInOrder(t *testing.T) {
	r, coord, _ := newRuntime(t)
	_, err := r.AddBot("announcer")
	require.NoError(t, err)

	// a broadcast from another agent lands in main's queue
	n, err := coord.Broadcast(context.Background(), "s1", "announcer", "maintenance at noon")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	msgs := r.PendingMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "maintenance at noon", msgs[0].Payload)
	assert.Empty(t, r.PendingMessages(), "drained queues stay empty")
}

func TestTransfer_FlipsRouting(t *testing.T) {
	r, _, reg := newRuntime(t)
	_, err := r.AddBot("support", func(o *BotOptions) { o.Triggers = []string{"help"} })
	require.NoError(t, err)
	require.NoError(t, r.SetMemory("session", "topic", "billing dispute", 0))

	require.NoError(t, r.Transfer(context.Background(), "support", "topic"))

	b, ok := reg.Lookup("s1", "main")
	require.True(t, ok)
	assert.False(t, b.Active)
}

func TestUseModel(t *testing.T) {
	models := model.NewRouter()
	backend := model.NewMockBackend("mini")
	backend.AddResponse("hello", "hi there")
	models.Bind(model.ClassFast, backend)

	r, _, _ := newRuntime(t, func(o *Options) { o.Models = models })

	text, err := r.UseModel(context.Background(), "auto", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	_, err = r.UseModel(context.Background(), "turbo", "hello")
	assert.ErrorContains(t, err, "unknown model class")
}

func TestUseModel_Unconfigured(t *testing.T) {
	r, _, _ := newRuntime(t)
	_, err := r.UseModel(context.Background(), "fast", "hello")
	assert.ErrorContains(t, err, "no model router configured")
}

func TestSearch(t *testing.T) {
	searcher := staticSearcher{results: []core.SearchResult{
		{ID: "1", Content: "refund policy", Score: 0.9},
	}}
	r, _, _ := newRuntime(t, func(o *Options) { o.Searcher = searcher })

	results, err := r.Search(context.Background(), "refunds", "kb", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "refund policy", results[0].Content)
}
