package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/port/broadcast"
	"github.com/seistech/quakefeed/internal/port/cache"
	"github.com/seistech/quakefeed/internal/protocol"
)

// Broadcaster encodes staged payloads and fans the frames out to every
// registered sink. Queue entries are immutable, so each one is encoded
// at most once and served from the frame cache afterwards.
type Broadcaster struct {
	frames  cache.Cache // nil disables caching
	metrics *otel.Metrics
	sinks   []broadcast.Sink
}

// NewBroadcaster creates a broadcaster. metrics must be non-nil; frames
// may be nil.
func NewBroadcaster(frames cache.Cache, metrics *otel.Metrics) *Broadcaster {
	return &Broadcaster{frames: frames, metrics: metrics}
}

// Register adds a delivery sink. Must be called before frames start
// flowing; sinks are not guarded by a lock.
func (b *Broadcaster) Register(s broadcast.Sink) {
	b.sinks = append(b.sinks, s)
}

// Entry broadcasts one staged queue entry.
func (b *Broadcaster) Entry(ctx context.Context, e replay.Entry) error {
	frame, err := b.entryFrame(ctx, e)
	if err != nil {
		return err
	}
	b.send(ctx, string(e.Kind), frame)
	return nil
}

func (b *Broadcaster) entryFrame(ctx context.Context, e replay.Entry) ([]byte, error) {
	key := fmt.Sprintf("frame:%d", e.Index)
	if b.frames != nil {
		if frame, ok, err := b.frames.Get(ctx, key); err == nil && ok {
			return frame, nil
		}
	}

	frame, err := json.Marshal(protocol.WrapBulletin(string(e.Kind), e.Payload))
	if err != nil {
		return nil, fmt.Errorf("encode %s frame %d: %w", e.Kind, e.Index, err)
	}

	if b.frames != nil {
		if err := b.frames.Set(ctx, key, frame, 0); err != nil {
			slog.Debug("frame cache set failed", "key", key, "error", err)
		}
	}
	return frame, nil
}

// Control broadcasts a control frame, such as the drained notice or an
// unknown-event error.
func (b *Broadcaster) Control(ctx context.Context, kind string, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode control frame failed", "kind", kind, "error", err)
		return
	}
	b.send(ctx, kind, frame)
}

func (b *Broadcaster) send(ctx context.Context, kind string, frame []byte) {
	for _, s := range b.sinks {
		s.Send(ctx, kind, frame)
	}
	b.metrics.FramesBroadcast.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	b.metrics.FrameBytes.Record(ctx, int64(len(frame)))
}
