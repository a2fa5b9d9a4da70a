package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/adapter/ws"
	"github.com/seistech/quakefeed/internal/domain"
	"github.com/seistech/quakefeed/internal/domain/catalog"
	"github.com/seistech/quakefeed/internal/protocol"
)

// Processor turns inbound observer frames into sequencer operations and
// routes the output: bulletins, the drained notice and unknown-event
// errors broadcast to everyone; acknowledgements and reports go back to
// the requester alone.
type Processor struct {
	seq     *Sequencer
	bcast   *Broadcaster
	events  []catalog.Summary
	clients func() int
	metrics *otel.Metrics
}

// NewProcessor creates a command processor. clients reports the current
// observer count for status frames; metrics must be non-nil.
func NewProcessor(seq *Sequencer, bcast *Broadcaster, events []catalog.Summary, clients func() int, metrics *otel.Metrics) *Processor {
	return &Processor{
		seq:     seq,
		bcast:   bcast,
		events:  events,
		clients: clients,
		metrics: metrics,
	}
}

// Handle processes one inbound frame. Implements ws.CommandHandler.
func (p *Processor) Handle(ctx context.Context, raw []byte, reply ws.ReplyFunc) {
	var cmd protocol.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		p.send(reply, protocol.NewError("invalid JSON format"))
		return
	}

	ctx, span := otel.StartCommandSpan(ctx, cmd.Action)
	defer span.End()
	p.metrics.CommandsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("action", cmd.Action)))

	switch cmd.Action {
	case protocol.ActionNext:
		if err := p.seq.Next(ctx); err != nil {
			slog.Warn("next failed", "error", err)
		}

	case protocol.ActionPushAll:
		interval := p.seq.DefaultInterval()
		if cmd.Interval != nil {
			interval = time.Duration(*cmd.Interval * float64(time.Second))
		}
		if err := p.seq.StartRun(ctx, interval); err != nil {
			slog.Warn("push_all failed", "error", err)
		}

	case protocol.ActionPushEvent:
		if cmd.EventID == nil {
			p.send(reply, protocol.NewError("push_event requires event_id"))
			return
		}
		err := p.seq.PushEvent(ctx, *cmd.EventID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			p.bcast.Control(ctx, protocol.TypeError, protocol.NewError(fmt.Sprintf("event not found: %d", *cmd.EventID)))
		case err != nil:
			slog.Warn("push_event failed", "event_id", *cmd.EventID, "error", err)
		}

	case protocol.ActionReset:
		if err := p.seq.Reset(ctx); err != nil {
			slog.Warn("reset failed", "error", err)
			return
		}
		p.send(reply, protocol.NewInfo("queue reset"))

	case protocol.ActionStatus:
		p.send(reply, protocol.NewStatus(p.seq.Cursor(), p.seq.QueueLen(), p.clients()))

	case protocol.ActionListEvents:
		p.send(reply, protocol.NewEventList(p.events))

	default:
		p.send(reply, protocol.NewHelp())
	}
}

// send encodes a control frame and hands it to the requester.
func (p *Processor) send(reply ws.ReplyFunc, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode reply failed", "error", err)
		return
	}
	reply(frame)
}
