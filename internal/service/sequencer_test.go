package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/domain/catalog"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/service"
)

func f64(v float64) *float64 { return &v }

// testEvents builds a three-event catalog: event 1 carries a refined
// location and a focal mechanism (3 staged messages), event 2 is
// detection-only (1 message), event 3 has a refined location (2
// messages). Six staged messages total.
func testEvents() ([]catalog.Event, map[int][]catalog.Pick) {
	events := []catalog.Event{
		{
			ID: 1, Time: "2024-04-03 07:58:09", Longitude: 121.56, Latitude: 23.81, DepthKM: 15.5,
			Magnitude: f64(7.2), NumPicks: 2, NumPPicks: 1, NumSPicks: 1,
			RefinedLongitude: f64(121.61), RefinedLatitude: f64(23.77), RefinedDepthKM: f64(22.5),
			Strike: f64(210), StrikeErr: f64(5), Dip: f64(45), DipErr: f64(3),
			Rake: f64(90), RakeErr: f64(4), QualityIndex: f64(0.82), PolarityCount: f64(12),
		},
		{
			ID: 2, Time: "2024-04-03 08:11:25", Longitude: 121.58, Latitude: 23.85, DepthKM: 9.1,
			NumPicks: 1, NumPPicks: 1, NumSPicks: 0,
		},
		{
			ID: 3, Time: "2024-04-03 08:35:02", Longitude: 121.52, Latitude: 23.79, DepthKM: 12.8,
			Magnitude: f64(5.1), NumPicks: 0, NumPPicks: 0, NumSPicks: 0,
			RefinedLongitude: f64(121.55), RefinedLatitude: f64(23.80), RefinedDepthKM: f64(14.2),
		},
	}
	picks := map[int][]catalog.Pick{
		1: {
			{EventID: 1, Station: "SM01", Phase: catalog.PhaseP, Time: "2024-04-03 07:58:12.30", Score: 0.95, Polarity: "U",
				DistanceKM: f64(12.3), Azimuth: f64(45.0), TakeoffAngle: f64(110.0), Magnitude: f64(7.1)},
			{EventID: 1, Station: "SM01", Phase: catalog.PhaseS, Time: "2024-04-03 07:58:15.80", Score: 0.88,
				DistanceKM: f64(12.3), Azimuth: f64(45.0), TakeoffAngle: f64(110.0)},
		},
		2: {
			{EventID: 2, Station: "SM02", Phase: catalog.PhaseP, Time: "2024-04-03 08:11:28.10", Score: 0.91, Polarity: "D"},
		},
	}
	return events, picks
}

type captureSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureSink) Send(_ context.Context, _ string, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *captureSink) frame(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

type fixture struct {
	events []catalog.Event
	queue  *replay.Queue
	sink   *captureSink
	bcast  *service.Broadcaster
	seq    *service.Sequencer
}

func newFixture(t *testing.T, interval, gap time.Duration) *fixture {
	t.Helper()

	events, picks := testEvents()
	queue, err := replay.Build(events, picks)
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	if queue.Len() != 6 {
		t.Fatalf("expected 6 staged messages, got %d", queue.Len())
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	sink := &captureSink{}
	bcast := service.NewBroadcaster(nil, metrics)
	bcast.Register(sink)
	seq := service.NewSequencer(queue, bcast, metrics, interval, gap)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = seq.Run(ctx) }()

	return &fixture{events: events, queue: queue, sink: sink, bcast: bcast, seq: seq}
}

func waitFrames(t *testing.T, sink *captureSink, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sink.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames, have %d", want, sink.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// kindOf returns the bulletin kind or control type of a frame.
func kindOf(t *testing.T, frame []byte) string {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		t.Fatalf("decode frame %s: %v", frame, err)
	}
	if raw, ok := m["type"]; ok {
		var typ string
		if err := json.Unmarshal(raw, &typ); err != nil {
			t.Fatalf("decode type: %v", err)
		}
		return typ
	}
	if len(m) != 1 {
		t.Fatalf("expected single-key bulletin, got %s", frame)
	}
	for k := range m {
		return k
	}
	return ""
}

// eventIDOf extracts event_id from a bulletin frame.
func eventIDOf(t *testing.T, frame []byte) int {
	t.Helper()
	kind := kindOf(t, frame)
	var m map[string]struct {
		EventID int `json:"event_id"`
	}
	if err := json.Unmarshal(frame, &m); err != nil {
		t.Fatalf("decode bulletin: %v", err)
	}
	return m[kind].EventID
}

func TestSequencer_NextAdvancesInOrder(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := fx.seq.Next(ctx); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}

	if got := fx.sink.count(); got != 3 {
		t.Fatalf("expected 3 frames, got %d", got)
	}
	wantKinds := []string{"add_event", "update_location", "update_focal"}
	for i, want := range wantKinds {
		if got := kindOf(t, fx.sink.frame(i)); got != want {
			t.Fatalf("frame %d: expected %s, got %s", i, want, got)
		}
		if id := eventIDOf(t, fx.sink.frame(i)); id != 1 {
			t.Fatalf("frame %d: expected event 1, got %d", i, id)
		}
	}
	if fx.seq.Cursor() != 3 {
		t.Fatalf("expected cursor 3, got %d", fx.seq.Cursor())
	}
}

func TestSequencer_NextPastEndBroadcastsNotice(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := fx.seq.Next(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if err := fx.seq.Next(ctx); err != nil {
		t.Fatal(err)
	}

	if got := fx.sink.count(); got != 7 {
		t.Fatalf("expected 7 frames, got %d", got)
	}
	last := fx.sink.frame(6)
	if kindOf(t, last) != "info" {
		t.Fatalf("expected info frame, got %s", last)
	}
	var notice struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(last, &notice); err != nil {
		t.Fatal(err)
	}
	if notice.Message != "all messages have been pushed" {
		t.Fatalf("unexpected notice: %q", notice.Message)
	}
	if fx.seq.Cursor() != 6 {
		t.Fatalf("cursor moved past end: %d", fx.seq.Cursor())
	}
}

func TestSequencer_ResetRestartsReplay(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := fx.seq.Next(ctx); err != nil {
			t.Fatal(err)
		}
	}
	first := append([]byte(nil), fx.sink.frame(0)...)

	if err := fx.seq.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if fx.seq.Cursor() != 0 {
		t.Fatalf("expected cursor 0 after reset, got %d", fx.seq.Cursor())
	}

	if err := fx.seq.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if got := fx.sink.frame(2); string(got) != string(first) {
		t.Fatalf("replay after reset diverged:\n%s\n%s", first, got)
	}
}

func TestSequencer_RunDrainsQueueSilently(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	// Zero interval paces frames as fast as the actor processes them.
	if err := fx.seq.StartRun(ctx, 0); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, fx.sink, 6)

	time.Sleep(50 * time.Millisecond)
	if got := fx.sink.count(); got != 6 {
		t.Fatalf("expected exactly 6 frames after run, got %d", got)
	}
	if fx.seq.Cursor() != 6 {
		t.Fatalf("expected cursor 6, got %d", fx.seq.Cursor())
	}

	// Starting another run at the end stays silent.
	if err := fx.seq.StartRun(ctx, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := fx.sink.count(); got != 6 {
		t.Fatalf("drained run should broadcast nothing, got %d frames", got)
	}
}

func TestSequencer_ResetCancelsActiveRun(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	// First frame goes out immediately, the second only after an hour.
	if err := fx.seq.StartRun(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, fx.sink, 1)

	if err := fx.seq.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if fx.seq.Cursor() != 0 {
		t.Fatalf("expected cursor 0, got %d", fx.seq.Cursor())
	}

	time.Sleep(50 * time.Millisecond)
	if got := fx.sink.count(); got != 1 {
		t.Fatalf("canceled run kept pushing: %d frames", got)
	}
}

func TestSequencer_NewRunReplacesActiveRun(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	if err := fx.seq.StartRun(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, fx.sink, 1)

	if err := fx.seq.StartRun(ctx, 0); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, fx.sink, 6)

	time.Sleep(50 * time.Millisecond)
	if got := fx.sink.count(); got != 6 {
		t.Fatalf("expected 6 frames total, got %d", got)
	}

	// Every staged message went out exactly once, in queue order.
	for i := 0; i < 6; i++ {
		e := fx.queue.Entry(i)
		if got := kindOf(t, fx.sink.frame(i)); got != string(e.Kind) {
			t.Fatalf("frame %d: expected %s, got %s", i, e.Kind, got)
		}
		if id := eventIDOf(t, fx.sink.frame(i)); id != e.EventID {
			t.Fatalf("frame %d: expected event %d, got %d", i, e.EventID, id)
		}
	}
}

func TestSequencer_PushEventLeavesCursorAlone(t *testing.T) {
	fx := newFixture(t, 2*time.Second, 0)
	ctx := context.Background()

	if err := fx.seq.PushEvent(ctx, 1); err != nil {
		t.Fatal(err)
	}
	waitFrames(t, fx.sink, 3)

	wantKinds := []string{"add_event", "update_location", "update_focal"}
	for i, want := range wantKinds {
		if got := kindOf(t, fx.sink.frame(i)); got != want {
			t.Fatalf("frame %d: expected %s, got %s", i, want, got)
		}
	}
	if fx.seq.Cursor() != 0 {
		t.Fatalf("push_event moved the cursor to %d", fx.seq.Cursor())
	}
}

func TestSequencer_PushEventUnknownID(t *testing.T) {
	fx := newFixture(t, 2*time.Second, 0)

	err := fx.seq.PushEvent(context.Background(), 999)
	if err == nil {
		t.Fatal("expected error for unknown event")
	}
	if fx.sink.count() != 0 {
		t.Fatalf("unknown event should broadcast nothing from the sequencer, got %d frames", fx.sink.count())
	}
}

func TestSequencer_ConcurrentNextNeverSkipsOrRepeats(t *testing.T) {
	fx := newFixture(t, 2*time.Second, time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fx.seq.Next(ctx)
		}()
	}
	wg.Wait()

	if got := fx.sink.count(); got != 10 {
		t.Fatalf("expected 10 frames, got %d", got)
	}
	// Six bulletins in exact queue order, then four drained notices.
	for i := 0; i < 6; i++ {
		e := fx.queue.Entry(i)
		if got := kindOf(t, fx.sink.frame(i)); got != string(e.Kind) {
			t.Fatalf("frame %d: expected %s, got %s", i, e.Kind, got)
		}
	}
	for i := 6; i < 10; i++ {
		if got := kindOf(t, fx.sink.frame(i)); got != "info" {
			t.Fatalf("frame %d: expected info, got %s", i, got)
		}
	}
	if fx.seq.Cursor() != 6 {
		t.Fatalf("expected cursor 6, got %d", fx.seq.Cursor())
	}
}
