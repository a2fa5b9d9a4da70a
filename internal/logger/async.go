package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// entry pairs a record with the handler that accepted it. Derived
// handlers (WithAttrs, WithGroup) share one channel, so the worker must
// dispatch each record through its own inner handler or the derived
// attributes are lost.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler wraps an slog.Handler with a buffered channel and worker
// pool so the per-frame logging of a zero-interval replay never stalls the
// broadcast path. Records are dropped, not blocked on, when the buffer
// fills.
type AsyncHandler struct {
	inner   slog.Handler
	ch      chan entry
	wg      *sync.WaitGroup
	dropped *atomic.Int64
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		ch:      make(chan entry, chanSize),
		wg:      &sync.WaitGroup{},
		dropped: &atomic.Int64{},
	}
	for range workers {
		h.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.wg.Done()
	for e := range h.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the channel is full. The record is
// cloned because it outlives the call once handed to a worker.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error {
	select {
	case h.ch <- entry{h: h.inner, rec: rec.Clone()}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler that enqueues onto the same channel but
// carries the derived inner handler with each record.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		ch:      h.ch,
		wg:      h.wg,
		dropped: h.dropped,
	}
}

// WithGroup returns a handler that enqueues onto the same channel but
// carries the derived inner handler with each record.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		ch:      h.ch,
		wg:      h.wg,
		dropped: h.dropped,
	}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close closes the channel and waits for all workers to drain.
func (h *AsyncHandler) Close() {
	close(h.ch)
	h.wg.Wait()
}
