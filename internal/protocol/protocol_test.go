package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

func TestCommandUnmarshal(t *testing.T) {
	var cmd Command
	if err := json.Unmarshal([]byte(`{"action": "next"}`), &cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != ActionNext {
		t.Errorf("action = %q", cmd.Action)
	}
	if cmd.Interval != nil || cmd.EventID != nil {
		t.Errorf("omitted optionals should stay nil: %+v", cmd)
	}
}

func TestCommandUnmarshalOptionals(t *testing.T) {
	var cmd Command
	raw := `{"action": "push_all", "interval": 0.5, "event_id": 22015}`
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Interval == nil || *cmd.Interval != 0.5 {
		t.Errorf("interval = %v", cmd.Interval)
	}
	if cmd.EventID == nil || *cmd.EventID != 22015 {
		t.Errorf("event_id = %v", cmd.EventID)
	}
}

func TestConnectedFrame(t *testing.T) {
	data, err := json.Marshal(NewConnected(14, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["type"] != TypeConnected {
		t.Errorf("type = %v", got["type"])
	}
	if got["total_events"] != float64(14) || got["total_messages"] != float64(31) {
		t.Errorf("totals = %v/%v", got["total_events"], got["total_messages"])
	}
}

func TestStatusFrame(t *testing.T) {
	data, err := json.Marshal(NewStatus(3, 31, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"type":"status","current_index":3,"total_messages":31,"connected_clients":2}`
	if string(data) != want {
		t.Errorf("status frame = %s", data)
	}
}

func TestEventListNullMagnitude(t *testing.T) {
	events := []catalog.Summary{{EventID: 1, Time: "2024-04-02 23:58:10.910"}}

	data, err := json.Marshal(NewEventList(events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"magnitude":null`) {
		t.Errorf("missing magnitude should marshal as null: %s", data)
	}
}

func TestHelpCoversEveryAction(t *testing.T) {
	help := NewHelp()
	for _, action := range []string{
		ActionNext, ActionPushAll, ActionPushEvent, ActionReset, ActionStatus, ActionListEvents,
	} {
		if _, ok := help.Commands[action]; !ok {
			t.Errorf("help frame missing action %q", action)
		}
	}
}

func TestWrapBulletin(t *testing.T) {
	data, err := json.Marshal(WrapBulletin("add_event", map[string]int{"event_id": 7}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inner, ok := got["add_event"]
	if !ok {
		t.Fatalf("envelope missing kind key: %s", data)
	}
	if inner["event_id"] != 7 {
		t.Errorf("payload = %v", inner)
	}
}
