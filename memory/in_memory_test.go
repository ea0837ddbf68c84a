package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_SetGetDelete(t *testing.T) {
	s := NewInMemoryStore()

	if _, ok := s.Get(core.ScopeUser, "u1", "language"); ok {
		t.Fatalf("expected absent key")
	}
	if err := s.Set(core.ScopeUser, "u1", "language", "pt-BR", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok := s.Get(core.ScopeUser, "u1", "language")
	if !ok || v != "pt-BR" {
		t.Fatalf("expected pt-BR, got %q (ok=%v)", v, ok)
	}

	// last write wins
	if err := s.Set(core.ScopeUser, "u1", "language", "en-US", 0); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	v, _ = s.Get(core.ScopeUser, "u1", "language")
	if v != "en-US" {
		t.Fatalf("expected overwrite to en-US, got %q", v)
	}

	s.Delete(core.ScopeUser, "u1", "language")
	if _, ok := s.Get(core.ScopeUser, "u1", "language"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestInMemoryStore_ScopeIsolation(t *testing.T) {
	s := NewInMemoryStore()

	if err := s.Set(core.ScopeBot, "agent-x", "style", "formal", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok := s.Get(core.ScopeBot, "agent-y", "style"); ok {
		t.Fatalf("bot scope leaked across owners")
	}

	// user scope is readable by any agent querying with the same owner
	if err := s.Set(core.ScopeUser, "u7", "language", "pt-BR", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok := s.Get(core.ScopeUser, "u7", "language")
	if !ok || v != "pt-BR" {
		t.Fatalf("expected user-scope value visible, got %q (ok=%v)", v, ok)
	}

	// same key in a different scope is a different entry
	if _, ok := s.Get(core.ScopeSession, "u7", "language"); ok {
		t.Fatalf("scopes must not share namespaces")
	}
}

func TestInMemoryStore_TTLExpiry(t *testing.T) {
	s := NewInMemoryStore()

	if err := s.Set(core.ScopeSession, "s1", "temp", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok := s.Get(core.ScopeSession, "s1", "temp"); !ok {
		t.Fatalf("expected value before expiry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := s.Get(core.ScopeSession, "s1", "temp"); ok {
		t.Fatalf("expected expired key to read as absent")
	}
}

func TestInMemoryStore_Quota(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.Quota = 3 })

	for i := 0; i < 3; i++ {
		if err := s.Set(core.ScopeUser, "u1", string(rune('a'+i)), "v", 0); err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
	}
	err := s.Set(core.ScopeUser, "u1", "d", "v", 0)
	if !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// overwriting an existing key must not count against the quota
	if err := s.Set(core.ScopeUser, "u1", "a", "v2", 0); err != nil {
		t.Fatalf("overwrite at quota failed: %v", err)
	}
	// prior state unchanged by the rejected write
	if _, ok := s.Get(core.ScopeUser, "u1", "d"); ok {
		t.Fatalf("rejected write must not create the key")
	}
}

func TestInMemoryStore_ClearSession(t *testing.T) {
	s := NewInMemoryStore()

	_ = s.Set(core.ScopeSession, "s1", "k", "v", 0)
	_ = s.Set(core.ScopeUser, "u1", "k", "v", 0)
	s.ClearSession("s1")

	if _, ok := s.Get(core.ScopeSession, "s1", "k"); ok {
		t.Fatalf("expected session scope cleared")
	}
	if _, ok := s.Get(core.ScopeUser, "u1", "k"); !ok {
		t.Fatalf("clearing a session must not touch other scopes")
	}
}

func TestInMemoryStore_Episodes(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.MaxEpisodes = 3 })

	for _, summary := range []string{"first", "second", "third", "fourth"} {
		if err := s.AppendEpisode("conv1", summary); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	eps := s.Episodes("conv1", 0)
	if len(eps) != 3 {
		t.Fatalf("expected retention cap of 3, got %d", len(eps))
	}
	if eps[0] != "fourth" || eps[2] != "second" {
		t.Fatalf("expected newest first with oldest dropped, got %#v", eps)
	}
	if got := s.Episodes("conv1", 1); len(got) != 1 || got[0] != "fourth" {
		t.Fatalf("expected limited listing, got %#v", got)
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewInMemoryStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('A' + (i % 5)))
			if err := s.Set(core.ScopeUser, "u1", key, "v", 0); err != nil {
				t.Errorf("set error: %v", err)
			}
			s.Get(core.ScopeUser, "u1", key)
		}(i)
	}
	wg.Wait()
	count := 0
	for i := 0; i < 5; i++ {
		if _, ok := s.Get(core.ScopeUser, "u1", string(rune('A'+i))); ok {
			count++
		}
	}
	if count != 5 {
		t.Fatalf("expected 5 keys after concurrent writes, got %d", count)
	}
}
