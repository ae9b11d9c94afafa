// Package dispatch moves commands off the frame goroutine. Each command kind
// gets its own bounded Channel drained by one background loop, in FIFO order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

var (
	ErrChannelFull = errors.New("dispatch: channel full")
	ErrClosed      = errors.New("dispatch: channel closed")
)

// FullError is returned by Enqueue when the channel has no free slot.
type FullError struct {
	Kind     string
	Capacity int
}

func (e *FullError) Error() string {
	return fmt.Sprintf("dispatch: %s channel full (capacity %d)", e.Kind, e.Capacity)
}

func (e *FullError) Is(target error) bool { return target == ErrChannelFull }

// Handler executes one command. A returned error is logged and never retried.
type Handler[C any] func(ctx context.Context, cmd C) error

type Stats struct {
	Enqueued   uint64
	Rejected   uint64
	Dispatched uint64
	Failed     uint64
	Depth      int
}

// Channel is a bounded multi-producer queue with a single background consumer.
type Channel[C any] struct {
	kind   string
	ch     chan C
	logger *log.Logger

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	done      chan struct{}

	enqueued   atomic.Uint64
	rejected   atomic.Uint64
	dispatched atomic.Uint64
	failed     atomic.Uint64
}

func NewChannel[C any](kind string, capacity int, logger *log.Logger) *Channel[C] {
	if capacity <= 0 {
		capacity = 16
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Channel[C]{
		kind:   kind,
		ch:     make(chan C, capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *Channel[C]) Kind() string { return c.kind }

// Enqueue never blocks: a full channel fails with *FullError.
func (c *Channel[C]) Enqueue(cmd C) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- cmd:
		c.enqueued.Add(1)
		return nil
	default:
		c.rejected.Add(1)
		return &FullError{Kind: c.kind, Capacity: cap(c.ch)}
	}
}

// Start launches the consumer loop. It runs until Close and drains whatever
// was enqueued before it. ctx is handed to the handler only; cancelling it
// does not stop the loop.
func (c *Channel[C]) Start(ctx context.Context, h Handler[C]) {
	c.startOnce.Do(func() {
		go c.loop(ctx, h)
	})
}

// Close drops the producer side. The loop exits after draining; callers are
// not required to wait for it.
func (c *Channel[C]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
	// Never started: nothing will close done.
	c.startOnce.Do(func() { close(c.done) })
}

// Done is closed when the loop has exited.
func (c *Channel[C]) Done() <-chan struct{} { return c.done }

func (c *Channel[C]) Stats() Stats {
	return Stats{
		Enqueued:   c.enqueued.Load(),
		Rejected:   c.rejected.Load(),
		Dispatched: c.dispatched.Load(),
		Failed:     c.failed.Load(),
		Depth:      len(c.ch),
	}
}

func (c *Channel[C]) loop(ctx context.Context, h Handler[C]) {
	defer close(c.done)
	for cmd := range c.ch {
		if err := c.dispatch(ctx, h, cmd); err != nil {
			c.failed.Add(1)
			c.logger.Printf("dispatch kind=%s err=%v", c.kind, err)
		}
		c.dispatched.Add(1)
	}
}

func (c *Channel[C]) dispatch(ctx context.Context, h Handler[C], cmd C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, cmd)
}
