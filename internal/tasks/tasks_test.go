package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func pollUntil[R any](t *testing.T, h *Handle[R]) R {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := h.Poll(); ok {
			return r
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("handle never completed")
	var zero R
	return zero
}

func TestHandle_PollExactlyOnce(t *testing.T) {
	tbl := NewTable[int](context.Background())
	release := make(chan struct{})
	h, err := tbl.Spawn(Key{Entity: "Door", Kind: "inspect"}, func(context.Context) int {
		<-release
		return 42
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, ok := h.Poll(); ok {
		t.Fatalf("poll before completion returned a result")
	}
	close(release)
	if got := pollUntil(t, h); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	for i := 0; i < 3; i++ {
		if _, ok := h.Poll(); ok {
			t.Fatalf("result returned more than once")
		}
	}
}

func TestTable_AtMostOnePerKey(t *testing.T) {
	tbl := NewTable[string](context.Background())
	key := Key{Entity: "world", Kind: "refresh"}
	_, c, err := tbl.Reserve(key)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, _, err := tbl.Reserve(key); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if _, err := tbl.Spawn(key, func(context.Context) string { return "" }); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending from Spawn, got %v", err)
	}
	// A different kind for the same entity is independent.
	if _, _, err := tbl.Reserve(Key{Entity: "world", Kind: "escape"}); err != nil {
		t.Fatalf("reserve other kind: %v", err)
	}

	c.Complete("done")
	var visited []Key
	tbl.PollAll(func(k Key, r string) {
		if r != "done" {
			t.Fatalf("unexpected result %q", r)
		}
		visited = append(visited, k)
	})
	if len(visited) != 1 || visited[0] != key {
		t.Fatalf("unexpected visits %v", visited)
	}
	if tbl.Pending(key) {
		t.Fatalf("finished key still pending")
	}
	if _, _, err := tbl.Reserve(key); err != nil {
		t.Fatalf("reserve after completion: %v", err)
	}
}

func TestTable_ReleaseFreesKey(t *testing.T) {
	tbl := NewTable[int](context.Background())
	key := Key{Entity: "acct", Kind: "interact"}
	if _, _, err := tbl.Reserve(key); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	tbl.Release(key)
	if tbl.Pending(key) || tbl.Len() != 0 {
		t.Fatalf("release did not free the key")
	}
	if _, _, err := tbl.Reserve(key); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestCompleter_OnlyFirstCounts(t *testing.T) {
	tbl := NewTable[int](context.Background())
	h, c, err := tbl.Reserve(Key{Entity: "a", Kind: "k"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	c.Complete(1)
	c.Complete(2)
	if r, ok := h.Poll(); !ok || r != 1 {
		t.Fatalf("got %d %v, want 1 true", r, ok)
	}
	var zero Completer[int]
	zero.Complete(3)
}

func TestTable_PollAllOrderAndPartial(t *testing.T) {
	tbl := NewTable[string](context.Background())
	keys := []Key{
		{Entity: "b", Kind: "interact"},
		{Entity: "a", Kind: "interact"},
		{Entity: "world", Kind: "escape"},
	}
	cs := map[Key]Completer[string]{}
	for _, k := range keys {
		_, c, err := tbl.Reserve(k)
		if err != nil {
			t.Fatalf("reserve %v: %v", k, err)
		}
		cs[k] = c
	}
	cs[keys[0]].Complete("b")
	cs[keys[1]].Complete("a")

	var got []string
	n := tbl.PollAll(func(_ Key, r string) { got = append(got, r) })
	if n != 2 || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected visits n=%d got=%v", n, got)
	}
	if !tbl.Pending(keys[2]) || tbl.Len() != 1 {
		t.Fatalf("unfinished handle removed")
	}
	if n := tbl.PollAll(nil); n != 0 {
		t.Fatalf("second PollAll visited %d", n)
	}
}

func TestTable_AbandonedSpawnFinishesSilently(t *testing.T) {
	tbl := NewTable[int](context.Background())
	key := Key{Entity: "Window", Kind: "inspect"}
	done := make(chan struct{})
	if _, err := tbl.Spawn(key, func(context.Context) int {
		defer close(done)
		return 1
	}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	tbl.Release(key)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("spawned work did not finish")
	}
}

func TestTable_SpawnPanicCompletesAndFreesKey(t *testing.T) {
	tbl := NewTable[string](context.Background())
	tbl.OnPanic(func(k Key, v any) string { return fmt.Sprintf("%s: %v", k, v) })
	key := Key{Entity: "Door", Kind: "inspect"}
	if _, err := tbl.Spawn(key, func(context.Context) string { panic("boom") }); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	var got string
	deadline := time.Now().Add(2 * time.Second)
	for tbl.PollAll(func(_ Key, r string) { got = r }) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("panicking task never completed")
		}
		time.Sleep(time.Millisecond)
	}
	if got != "inspect@Door: boom" {
		t.Fatalf("result %q", got)
	}
	if tbl.Pending(key) {
		t.Fatalf("key still pending after panic")
	}
	if _, err := tbl.Spawn(key, func(context.Context) string { return "ok" }); err != nil {
		t.Fatalf("key not reusable after panic: %v", err)
	}
}
