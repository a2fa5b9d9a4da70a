package service_test

import (
	"context"
	"testing"

	"github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/adapter/ristretto"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/protocol"
	"github.com/seistech/quakefeed/internal/service"
)

func TestBroadcaster_FansOutToAllSinks(t *testing.T) {
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	a, b := &captureSink{}, &captureSink{}
	bc := service.NewBroadcaster(nil, metrics)
	bc.Register(a)
	bc.Register(b)

	bc.Control(context.Background(), protocol.TypeInfo, protocol.NewInfo("hello"))

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both sinks to receive the frame, got %d and %d", a.count(), b.count())
	}
	if string(a.frame(0)) != string(b.frame(0)) {
		t.Fatal("sinks received different frames")
	}
}

func TestBroadcaster_CachedEntryEncodesOnce(t *testing.T) {
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	frames, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(frames.Close)

	sink := &captureSink{}
	bc := service.NewBroadcaster(frames, metrics)
	bc.Register(sink)

	events, picks := testEvents()
	queue, err := replay.Build(events, picks)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	e := queue.Entry(0)
	if err := bc.Entry(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := bc.Entry(ctx, e); err != nil {
		t.Fatal(err)
	}

	if sink.count() != 2 {
		t.Fatalf("expected 2 frames, got %d", sink.count())
	}
	if string(sink.frame(0)) != string(sink.frame(1)) {
		t.Fatalf("cached frame diverged:\n%s\n%s", sink.frame(0), sink.frame(1))
	}
	if kindOf(t, sink.frame(0)) != "add_event" {
		t.Fatalf("unexpected frame: %s", sink.frame(0))
	}

	// The cached copy matches a fresh encoding.
	if _, ok, err := frames.Get(ctx, "frame:0"); err != nil || !ok {
		t.Fatalf("expected frame:0 in cache, ok=%v err=%v", ok, err)
	}
}

func TestBroadcaster_EntryEncodeError(t *testing.T) {
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	sink := &captureSink{}
	bc := service.NewBroadcaster(nil, metrics)
	bc.Register(sink)

	e := replay.Entry{Index: 0, Kind: "add_event", EventID: 1, Payload: make(chan int)}
	if err := bc.Entry(context.Background(), e); err == nil {
		t.Fatal("expected encode error")
	}
	if sink.count() != 0 {
		t.Fatalf("unencodable entry must not broadcast, got %d frames", sink.count())
	}
}
