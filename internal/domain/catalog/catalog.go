// Package catalog defines the seismic catalog records the replay feed is
// built from: one Event per catalog row plus the Picks associated with it.
// Records are read-only once loaded; all presence-of-data decisions
// (refined location, focal mechanism) are derived from nil-ness of the
// optional fields.
package catalog

import "math"

// Phase classifies a seismic arrival.
type Phase string

const (
	// PhaseP is the primary (compressional) arrival.
	PhaseP Phase = "P"
	// PhaseS is the secondary (shear) arrival.
	PhaseS Phase = "S"
)

// Event is one catalog entry. Optional fields are pointers: nil means the
// source column was empty. The refined (relocated) solution and the focal
// mechanism are both optional blocks; their presence decides which staged
// bulletins exist for the event.
type Event struct {
	ID        int
	Time      string // catalog timestamp, passed through verbatim
	Longitude float64
	Latitude  float64
	DepthKM   float64
	Magnitude *float64
	NumPicks  int
	NumPPicks int
	NumSPicks int

	// Refined relocation solution.
	RefinedLongitude *float64
	RefinedLatitude  *float64
	RefinedDepthKM   *float64

	// Focal mechanism solution. Strike acts as the presence marker; the
	// remaining fields are required whenever Strike is set.
	Strike        *float64
	StrikeErr     *float64
	Dip           *float64
	DipErr        *float64
	Rake          *float64
	RakeErr       *float64
	QualityIndex  *float64
	PolarityCount *float64
}

// HasRefined reports whether the event carries a refined location.
func (e *Event) HasRefined() bool { return e.RefinedLongitude != nil }

// HasFocal reports whether the event carries a focal-mechanism solution.
func (e *Event) HasFocal() bool { return e.Strike != nil }

// Pick is one phase arrival associated with an event. The distance block
// (DistanceKM, Azimuth, TakeoffAngle, Magnitude) is only populated for
// catalogs that carry a refined location.
type Pick struct {
	EventID  int
	Station  string
	Phase    Phase
	Time     string
	Score    float64
	Polarity string // raw source code ("U", "D", "x", or empty)

	DistanceKM   *float64
	Azimuth      *float64
	TakeoffAngle *float64
	Magnitude    *float64
}

// Collection bundles the full catalog with its picks grouped by event.
type Collection struct {
	Events []Event
	Picks  map[int][]Pick
}

// PicksFor returns the picks recorded for the given event id, in source
// order. The returned slice is shared; callers must not mutate it.
func (c *Collection) PicksFor(id int) []Pick { return c.Picks[id] }

// Summary is the reduced per-event view served by list_events.
type Summary struct {
	EventID   int      `json:"event_id"`
	Time      string   `json:"time"`
	Magnitude *float64 `json:"magnitude"`
}

// Summaries reduces the events to their list view, rounding magnitude to
// one decimal. Order follows the catalog.
func Summaries(events []Event) []Summary {
	out := make([]Summary, 0, len(events))
	for _, e := range events {
		s := Summary{EventID: e.ID, Time: e.Time}
		if e.Magnitude != nil {
			m := math.Round(*e.Magnitude*10) / 10
			s.Magnitude = &m
		}
		out = append(out, s)
	}
	return out
}
