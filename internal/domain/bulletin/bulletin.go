// Package bulletin builds the staged notification payloads replayed to
// observers. Each catalog event yields up to three bulletins, always in
// this order: add_event (initial solution with raw picks), update_location
// (refined solution, only when the event was relocated), update_focal
// (mechanism solution, only when the event carries one).
//
// Builders are pure: same records in, same payloads out, no side effects.
// JSON field names are fixed by the downstream wire format and must not
// change.
package bulletin

import (
	"fmt"

	"github.com/seistech/quakefeed/internal/domain"
	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// Kind names a staged bulletin variant. The value doubles as the envelope
// key on the wire: {"add_event": {...}}.
type Kind string

const (
	KindAddEvent       Kind = "add_event"
	KindUpdateLocation Kind = "update_location"
	KindUpdateFocal    Kind = "update_focal"
)

// ArrivalPick is the per-pick view inside an add_event bulletin. Polarity
// is only set for primary-phase picks.
type ArrivalPick struct {
	PhaseTime  string  `json:"phase_time"`
	PhaseScore float64 `json:"phase_score"`
	Polarity   string  `json:"polarity,omitempty"`
}

// LocatedPick is the per-pick view inside an update_location bulletin.
// Magnitude stays null unless the pick carries a station magnitude.
type LocatedPick struct {
	Magnitude    *float64 `json:"magnitude"`
	DistanceKM   *float64 `json:"distance_km"`
	Azimuth      *float64 `json:"azimuth"`
	TakeoffAngle *float64 `json:"takeoff_angle"`
}

// AddEvent is the initial bulletin: raw location, counts, and the arrivals
// grouped station → phase. Magnitude is null when the catalog has none,
// never omitted.
type AddEvent struct {
	EventID         int                               `json:"event_id"`
	EventTime       string                            `json:"event_time"`
	Longitude       float64                           `json:"longitude"`
	Latitude        float64                           `json:"latitude"`
	DepthKM         float64                           `json:"depth_km"`
	Magnitude       *float64                          `json:"magnitude"`
	NumPicks        int                               `json:"num_picks"`
	NumPPicks       int                               `json:"num_p_picks"`
	NumSPicks       int                               `json:"num_s_picks"`
	AssociatedPicks map[string]map[string]ArrivalPick `json:"associated_picks"`
}

// UpdateLocation is the refined bulletin: relocated hypocenter plus the
// distance/azimuth view of the same picks.
type UpdateLocation struct {
	EventID         int                               `json:"event_id"`
	Longitude       float64                           `json:"longitude"`
	Latitude        float64                           `json:"latitude"`
	DepthKM         float64                           `json:"depth_km"`
	Magnitude       *float64                          `json:"magnitude"`
	AssociatedPicks map[string]map[string]LocatedPick `json:"associated_picks"`
}

// UpdateFocal is the mechanism bulletin. Every field except the quality
// index is coerced to an integer.
type UpdateFocal struct {
	EventID       int     `json:"event_id"`
	Strike        int     `json:"strike"`
	StrikeErr     int     `json:"strike_err"`
	Dip           int     `json:"dip"`
	DipErr        int     `json:"dip_err"`
	Rake          int     `json:"rake"`
	RakeErr       int     `json:"rake_err"`
	QualityIndex  float64 `json:"quality_index"`
	PolarityCount int     `json:"num_of_polarity"`
}

// MapPolarity converts a source polarity code to the wire alphabet.
// "U" (up) becomes "+", "D" (down) becomes "-", anything else — including
// missing codes — degrades to "x".
func MapPolarity(code string) string {
	switch code {
	case "U":
		return "+"
	case "D":
		return "-"
	default:
		return "x"
	}
}

// BuildAddEvent assembles the initial bulletin for an event.
func BuildAddEvent(ev catalog.Event, picks []catalog.Pick) AddEvent {
	associated := make(map[string]map[string]ArrivalPick)
	for _, p := range picks {
		ap := ArrivalPick{PhaseTime: p.Time, PhaseScore: p.Score}
		if p.Phase == catalog.PhaseP {
			ap.Polarity = MapPolarity(p.Polarity)
		}
		byPhase := associated[p.Station]
		if byPhase == nil {
			byPhase = make(map[string]ArrivalPick)
			associated[p.Station] = byPhase
		}
		byPhase[string(p.Phase)] = ap
	}

	return AddEvent{
		EventID:         ev.ID,
		EventTime:       ev.Time,
		Longitude:       ev.Longitude,
		Latitude:        ev.Latitude,
		DepthKM:         ev.DepthKM,
		Magnitude:       ev.Magnitude,
		NumPicks:        ev.NumPicks,
		NumPPicks:       ev.NumPPicks,
		NumSPicks:       ev.NumSPicks,
		AssociatedPicks: associated,
	}
}

// BuildUpdateLocation assembles the refined bulletin. A refined longitude
// with a missing latitude or depth is malformed, same policy as focal.
func BuildUpdateLocation(ev catalog.Event, picks []catalog.Pick) (UpdateLocation, error) {
	if ev.RefinedLatitude == nil || ev.RefinedDepthKM == nil {
		return UpdateLocation{}, fmt.Errorf("event %d: refined location incomplete: %w", ev.ID, domain.ErrMalformed)
	}

	associated := make(map[string]map[string]LocatedPick)
	for _, p := range picks {
		lp := LocatedPick{
			Magnitude:    p.Magnitude,
			DistanceKM:   p.DistanceKM,
			Azimuth:      p.Azimuth,
			TakeoffAngle: p.TakeoffAngle,
		}
		byPhase := associated[p.Station]
		if byPhase == nil {
			byPhase = make(map[string]LocatedPick)
			associated[p.Station] = byPhase
		}
		byPhase[string(p.Phase)] = lp
	}

	return UpdateLocation{
		EventID:         ev.ID,
		Longitude:       *ev.RefinedLongitude,
		Latitude:        *ev.RefinedLatitude,
		DepthKM:         *ev.RefinedDepthKM,
		Magnitude:       ev.Magnitude,
		AssociatedPicks: associated,
	}, nil
}

// BuildUpdateFocal assembles the mechanism bulletin. An event that carries
// a strike but is missing any other focal field is malformed; the error is
// raised here so queue construction fails fast instead of replay.
func BuildUpdateFocal(ev catalog.Event) (UpdateFocal, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"strike", ev.Strike},
		{"strike_err", ev.StrikeErr},
		{"dip", ev.Dip},
		{"dip_err", ev.DipErr},
		{"rake", ev.Rake},
		{"rake_err", ev.RakeErr},
		{"quality_index", ev.QualityIndex},
		{"num_of_polarity", ev.PolarityCount},
	}
	for _, f := range fields {
		if f.value == nil {
			return UpdateFocal{}, fmt.Errorf("event %d: focal field %s missing: %w", ev.ID, f.name, domain.ErrMalformed)
		}
	}

	return UpdateFocal{
		EventID:       ev.ID,
		Strike:        int(*ev.Strike),
		StrikeErr:     int(*ev.StrikeErr),
		Dip:           int(*ev.Dip),
		DipErr:        int(*ev.DipErr),
		Rake:          int(*ev.Rake),
		RakeErr:       int(*ev.RakeErr),
		QualityIndex:  *ev.QualityIndex,
		PolarityCount: int(*ev.PolarityCount),
	}, nil
}
