// Package nats republishes broadcast frames to NATS JetStream so consumers
// other than the connected WebSocket observers (dashboards, recorders) can
// follow a replay, including catching up from the stream after the fact.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "QUAKEFEED"

// Bridge mirrors every broadcast frame onto a JetStream subject named
// <prefix>.<kind>, where kind is the bulletin kind or control frame type.
// Publish failures are logged, never propagated: the WebSocket fan-out must
// not stall because the mirror is down.
type Bridge struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// Connect establishes a connection to NATS and ensures the stream exists.
func Connect(ctx context.Context, url, prefix string) (*Bridge, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats bridge connected", "url", url, "stream", streamName, "prefix", prefix)
	return &Bridge{nc: nc, js: js, prefix: prefix}, nil
}

// Send publishes one frame under the kind-specific subject.
func (b *Bridge) Send(ctx context.Context, kind string, frame []byte) {
	subject := b.prefix + "." + kind
	if _, err := b.js.Publish(ctx, subject, frame); err != nil {
		slog.Error("nats publish failed", "subject", subject, "error", err)
	}
}

// Close shuts down the NATS connection.
func (b *Bridge) Close() error {
	b.nc.Close()
	return nil
}
