package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/domain"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/protocol"
)

// Sequencer owns the shared replay cursor. Every state change runs on a
// single actor goroutine; callers submit closures and wait for them, so
// an operation's effects are visible once the call returns. The cursor
// itself is additionally kept in an atomic so status reads never have to
// go through the actor.
type Sequencer struct {
	queue   *replay.Queue
	bcast   *Broadcaster
	metrics *otel.Metrics

	interval time.Duration // default push_all pacing
	gap      time.Duration // spacing between push_event frames

	ops    chan func(context.Context)
	cursor atomic.Int64

	// runCancel tracks the active push_all run. Only the actor goroutine
	// touches it.
	runCancel context.CancelFunc
}

// NewSequencer creates a sequencer over an immutable queue. metrics must
// be non-nil.
func NewSequencer(queue *replay.Queue, bcast *Broadcaster, metrics *otel.Metrics, interval, gap time.Duration) *Sequencer {
	return &Sequencer{
		queue:    queue,
		bcast:    bcast,
		metrics:  metrics,
		interval: interval,
		gap:      gap,
		ops:      make(chan func(context.Context)),
	}
}

// Run processes submitted operations until ctx is canceled. Exactly one
// Run must be active for the lifetime of the server; paced runs inherit
// its context and die with it.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-s.ops:
			op(ctx)
		}
	}
}

// submit schedules op on the actor goroutine and waits for it to finish.
func (s *Sequencer) submit(ctx context.Context, op func(context.Context)) error {
	done := make(chan struct{})
	wrapped := func(actx context.Context) {
		defer close(done)
		op(actx)
	}
	select {
	case s.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next broadcasts the entry at the cursor and advances it. When the
// queue is drained a notice is broadcast instead of a bulletin.
func (s *Sequencer) Next(ctx context.Context) error {
	return s.submit(ctx, func(actx context.Context) {
		s.step(actx, true)
	})
}

// step broadcasts the entry at the cursor and advances. Runs on the
// actor goroutine. Returns false when the cursor is already past the
// end; notify controls whether that state is announced.
func (s *Sequencer) step(actx context.Context, notify bool) bool {
	idx := int(s.cursor.Load())
	if idx >= s.queue.Len() {
		if notify {
			s.bcast.Control(actx, protocol.TypeInfo, protocol.NewInfo("all messages have been pushed"))
		}
		return false
	}

	e := s.queue.Entry(idx)
	if err := s.bcast.Entry(actx, e); err != nil {
		// The entry is unencodable; skip it rather than wedge the queue.
		slog.Error("broadcast entry failed", "index", e.Index, "kind", e.Kind, "error", err)
	}
	s.cursor.Store(int64(idx + 1))
	slog.Info("pushed", "kind", e.Kind, "event_id", e.EventID, "index", idx)
	return true
}

// advance performs one paced step. sent is false once the queue is
// drained or the run was canceled.
func (s *Sequencer) advance(ctx context.Context) (bool, error) {
	var sent bool
	err := s.submit(ctx, func(actx context.Context) {
		// A reset may have canceled this run while the step was queued.
		if ctx.Err() != nil {
			return
		}
		sent = s.step(actx, false)
	})
	if err != nil {
		return false, err
	}
	return sent, nil
}

// StartRun begins a paced broadcast of everything after the cursor,
// replacing any run already active. Starting from a drained cursor is a
// silent no-op, like a run that reaches the end.
func (s *Sequencer) StartRun(ctx context.Context, interval time.Duration) error {
	return s.submit(ctx, func(actx context.Context) {
		if s.runCancel != nil {
			s.runCancel()
			s.runCancel = nil
		}
		if int(s.cursor.Load()) >= s.queue.Len() {
			return
		}
		runCtx, cancel := context.WithCancel(actx)
		s.runCancel = cancel
		go s.runAll(runCtx, interval)
	})
}

// runAll paces the rest of the queue onto the wire until drained,
// canceled, or shut down.
func (s *Sequencer) runAll(ctx context.Context, interval time.Duration) {
	ctx, span := otel.StartRunSpan(ctx, interval)
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RunDuration.Record(context.Background(), time.Since(start).Seconds())
	}()

	slog.Info("push_all run started", "interval", interval, "from", s.Cursor())

	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			slog.Info("push_all run canceled", "at", s.Cursor())
			return
		}
		sent, err := s.advance(ctx)
		if err != nil {
			slog.Info("push_all run canceled", "at", s.Cursor())
			return
		}
		if !sent {
			slog.Info("push_all run finished", "at", s.Cursor())
			return
		}
	}
}

// Reset moves the cursor back to the start and cancels any active run.
func (s *Sequencer) Reset(ctx context.Context) error {
	return s.submit(ctx, func(context.Context) {
		if s.runCancel != nil {
			s.runCancel()
			s.runCancel = nil
		}
		s.cursor.Store(0)
		slog.Info("replay cursor reset")
	})
}

// PushEvent broadcasts every staged message for one event, paced by the
// configured gap, without moving the shared cursor. Returns ErrNotFound
// for an unknown id. Delivery is detached from the requester and runs
// until done or shutdown; concurrent single-event replays may overlap.
func (s *Sequencer) PushEvent(ctx context.Context, eventID int) error {
	entries := s.queue.ByEvent(eventID)
	if len(entries) == 0 {
		return fmt.Errorf("event %d: %w", eventID, domain.ErrNotFound)
	}
	return s.submit(ctx, func(actx context.Context) {
		go s.pushEntries(actx, eventID, entries)
	})
}

func (s *Sequencer) pushEntries(ctx context.Context, eventID int, entries []replay.Entry) {
	ctx, span := otel.StartPushEventSpan(ctx, eventID, len(entries))
	defer span.End()

	lim := rate.NewLimiter(rate.Every(s.gap), 1)
	for _, e := range entries {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		if err := s.bcast.Entry(ctx, e); err != nil {
			slog.Error("broadcast entry failed", "index", e.Index, "kind", e.Kind, "error", err)
		}
		slog.Info("pushed", "kind", e.Kind, "event_id", e.EventID, "index", e.Index)
	}
}

// Cursor returns the current replay position. Safe from any goroutine.
func (s *Sequencer) Cursor() int {
	return int(s.cursor.Load())
}

// QueueLen returns the total number of staged messages.
func (s *Sequencer) QueueLen() int {
	return s.queue.Len()
}

// DefaultInterval returns the configured push_all pacing.
func (s *Sequencer) DefaultInterval() time.Duration {
	return s.interval
}
