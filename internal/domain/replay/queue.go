// Package replay holds the immutable event queue: the flattened, ordered
// sequence of staged bulletins built once from the catalog at startup.
// The replay cursor is deliberately not part of the queue — it belongs to
// the sequencer that owns replay state.
package replay

import (
	"fmt"

	"github.com/seistech/quakefeed/internal/domain/bulletin"
	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// Entry is one staged bulletin in the queue. Index is the entry's fixed
// position, usable as a cache key because the queue never changes after
// construction.
type Entry struct {
	Index   int
	Kind    bulletin.Kind
	EventID int
	Payload any
}

// Queue is the immutable, insertion-ordered bulletin sequence.
type Queue struct {
	entries []Entry
}

// Build flattens the catalog into the replay queue. Each event contributes
// its add_event bulletin, then update_location when relocated, then
// update_focal when a mechanism exists — preserving catalog order across
// events. Malformed optional blocks abort construction: a broken catalog
// should fail at startup, not midway through a replay session.
func Build(events []catalog.Event, picks map[int][]catalog.Pick) (*Queue, error) {
	q := &Queue{entries: make([]Entry, 0, len(events))}

	for i := range events {
		ev := &events[i]
		evPicks := picks[ev.ID]

		q.append(bulletin.KindAddEvent, ev.ID, bulletin.BuildAddEvent(*ev, evPicks))

		if ev.HasRefined() {
			loc, err := bulletin.BuildUpdateLocation(*ev, evPicks)
			if err != nil {
				return nil, fmt.Errorf("build queue: %w", err)
			}
			q.append(bulletin.KindUpdateLocation, ev.ID, loc)
		}

		if ev.HasFocal() {
			focal, err := bulletin.BuildUpdateFocal(*ev)
			if err != nil {
				return nil, fmt.Errorf("build queue: %w", err)
			}
			q.append(bulletin.KindUpdateFocal, ev.ID, focal)
		}
	}

	return q, nil
}

func (q *Queue) append(kind bulletin.Kind, eventID int, payload any) {
	q.entries = append(q.entries, Entry{
		Index:   len(q.entries),
		Kind:    kind,
		EventID: eventID,
		Payload: payload,
	})
}

// Len returns the number of staged bulletins.
func (q *Queue) Len() int { return len(q.entries) }

// Entry returns the bulletin at position i. Panics when i is out of range,
// matching slice semantics; callers guard with Len.
func (q *Queue) Entry(i int) Entry { return q.entries[i] }

// ByEvent returns the entries belonging to one event, in queue order.
// The scan ignores the cursor: push_event replays an event from scratch
// wherever the shared replay position happens to be.
func (q *Queue) ByEvent(eventID int) []Entry {
	var out []Entry
	for _, e := range q.entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out
}
