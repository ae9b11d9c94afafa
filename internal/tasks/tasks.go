// Package tasks tracks background work started from the frame goroutine and
// hands results back to it through non-blocking polls.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrPending means the key already has an outstanding handle.
var ErrPending = errors.New("tasks: already pending")

// Key identifies an outstanding computation: at most one per entity and kind.
type Key struct {
	Entity string
	Kind   string
}

func (k Key) String() string { return k.Kind + "@" + k.Entity }

// Handle is a one-shot result slot.
type Handle[R any] struct {
	ch    chan R
	taken bool
}

func newHandle[R any]() *Handle[R] {
	return &Handle[R]{ch: make(chan R, 1)}
}

// Poll returns the result exactly once. Before completion, and on every call
// after the result was taken, it returns false.
func (h *Handle[R]) Poll() (R, bool) {
	var zero R
	if h.taken {
		return zero, false
	}
	select {
	case r := <-h.ch:
		h.taken = true
		return r, true
	default:
		return zero, false
	}
}

// Completer delivers the result for a reserved handle. Only the first
// Complete has an effect; it never blocks.
type Completer[R any] struct {
	ch chan R
}

func (c Completer[R]) Complete(r R) {
	if c.ch == nil {
		return
	}
	select {
	case c.ch <- r:
	default:
	}
}

// Table is owned by the frame goroutine and is not safe for concurrent use.
// Work it spawns runs on its own goroutines and is never cancelled.
type Table[R any] struct {
	ctx     context.Context
	handles map[Key]*Handle[R]
	onPanic func(Key, any) R
}

// NewTable binds spawned work to ctx. Spawned functions receive ctx but the
// table never cancels it.
func NewTable[R any](ctx context.Context) *Table[R] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Table[R]{ctx: ctx, handles: map[Key]*Handle[R]{}}
}

// OnPanic sets the result delivered when a spawned function panics. Without
// it the handle completes with the zero R. Either way the key is freed on
// the next PollAll.
func (t *Table[R]) OnPanic(fn func(key Key, v any) R) { t.onPanic = fn }

func (t *Table[R]) Pending(key Key) bool {
	_, ok := t.handles[key]
	return ok
}

func (t *Table[R]) Len() int { return len(t.handles) }

// Spawn runs fn on a new goroutine and tracks it under key.
func (t *Table[R]) Spawn(key Key, fn func(ctx context.Context) R) (*Handle[R], error) {
	h, c, err := t.Reserve(key)
	if err != nil {
		return nil, err
	}
	ctx, onPanic := t.ctx, t.onPanic
	go func() {
		defer func() {
			if v := recover(); v != nil {
				var r R
				if onPanic != nil {
					r = onPanic(key, v)
				}
				c.Complete(r)
			}
		}()
		c.Complete(fn(ctx))
	}()
	return h, nil
}

// Reserve tracks key without starting anything; the caller hands the
// Completer to whoever performs the work.
func (t *Table[R]) Reserve(key Key) (*Handle[R], Completer[R], error) {
	if _, ok := t.handles[key]; ok {
		return nil, Completer[R]{}, fmt.Errorf("%w: %s", ErrPending, key)
	}
	h := newHandle[R]()
	t.handles[key] = h
	return h, Completer[R]{ch: h.ch}, nil
}

// Release forgets a reservation whose work was never started.
func (t *Table[R]) Release(key Key) {
	delete(t.handles, key)
}

// PollAll polls every handle once, calls visit for each finished one and
// removes it. Visit order is by key so frames are reproducible.
func (t *Table[R]) PollAll(visit func(Key, R)) int {
	if len(t.handles) == 0 {
		return 0
	}
	keys := make([]Key, 0, len(t.handles))
	for k := range t.handles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Entity < keys[j].Entity
	})
	n := 0
	for _, k := range keys {
		r, ok := t.handles[k].Poll()
		if !ok {
			continue
		}
		delete(t.handles, k)
		n++
		if visit != nil {
			visit(k, r)
		}
	}
	return n
}
