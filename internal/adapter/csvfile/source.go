// Package csvfile loads the earthquake catalog from CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// Source reads a catalog CSV and a picks CSV. Optional columns may be
// absent entirely or hold empty cells; both read as missing values.
type Source struct {
	eventsPath string
	picksPath  string
}

// New creates a CSV-backed catalog source.
func New(eventsPath, picksPath string) *Source {
	return &Source{eventsPath: eventsPath, picksPath: picksPath}
}

// Load reads both files. Row order is preserved; the replay queue is
// staged in catalog file order.
func (s *Source) Load(_ context.Context) (*catalog.Collection, error) {
	events, err := s.loadEvents()
	if err != nil {
		return nil, err
	}
	picks, err := s.loadPicks()
	if err != nil {
		return nil, err
	}
	return &catalog.Collection{Events: events, Picks: picks}, nil
}

func (s *Source) loadEvents() ([]catalog.Event, error) {
	f, err := os.Open(s.eventsPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	hdr, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	h := indexHeader(hdr)

	var events []catalog.Event
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		ev, err := parseEvent(h, rec)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(h header, rec []string) (catalog.Event, error) {
	var ev catalog.Event
	var err error

	if ev.ID, err = h.requireInt(rec, "event_index"); err != nil {
		return ev, err
	}
	ev.Time = h.str(rec, "time")
	if ev.Time == "" {
		return ev, errors.New("missing time")
	}
	if ev.Longitude, err = h.requireFloat(rec, "longitude"); err != nil {
		return ev, err
	}
	if ev.Latitude, err = h.requireFloat(rec, "latitude"); err != nil {
		return ev, err
	}
	if ev.DepthKM, err = h.requireFloat(rec, "depth_km"); err != nil {
		return ev, err
	}
	if ev.NumPicks, err = h.requireInt(rec, "num_picks"); err != nil {
		return ev, err
	}
	if ev.NumPPicks, err = h.requireInt(rec, "num_p_picks"); err != nil {
		return ev, err
	}
	if ev.NumSPicks, err = h.requireInt(rec, "num_s_picks"); err != nil {
		return ev, err
	}

	optional := []struct {
		col string
		dst **float64
	}{
		{"magnitude", &ev.Magnitude},
		{"h3dd_longitude", &ev.RefinedLongitude},
		{"h3dd_latitude", &ev.RefinedLatitude},
		{"h3dd_depth_km", &ev.RefinedDepthKM},
		{"strike", &ev.Strike},
		{"strike_err", &ev.StrikeErr},
		{"dip", &ev.Dip},
		{"dip_err", &ev.DipErr},
		{"rake", &ev.Rake},
		{"rake_err", &ev.RakeErr},
		{"quality_index", &ev.QualityIndex},
		{"num_of_polarity", &ev.PolarityCount},
	}
	for _, o := range optional {
		if *o.dst, err = h.float(rec, o.col); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

func (s *Source) loadPicks() (map[int][]catalog.Pick, error) {
	f, err := os.Open(s.picksPath)
	if err != nil {
		return nil, fmt.Errorf("open picks: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	hdr, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read picks header: %w", err)
	}
	h := indexHeader(hdr)

	picks := make(map[int][]catalog.Pick)
	row := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read picks: %w", err)
		}
		row++
		p, err := parsePick(h, rec)
		if err != nil {
			return nil, fmt.Errorf("picks row %d: %w", row, err)
		}
		picks[p.EventID] = append(picks[p.EventID], p)
	}
	return picks, nil
}

func parsePick(h header, rec []string) (catalog.Pick, error) {
	var p catalog.Pick
	var err error

	if p.EventID, err = h.requireInt(rec, "event_index"); err != nil {
		return p, err
	}
	p.Station = h.str(rec, "station_id")
	if p.Station == "" {
		return p, errors.New("missing station_id")
	}
	p.Phase = catalog.Phase(h.str(rec, "phase_type"))
	p.Time = h.str(rec, "phase_time")
	p.Polarity = h.str(rec, "polarity")

	if score, err := h.float(rec, "phase_score"); err != nil {
		return p, err
	} else if score != nil {
		p.Score = *score
	}

	optional := []struct {
		col string
		dst **float64
	}{
		{"dist", &p.DistanceKM},
		{"azimuth", &p.Azimuth},
		{"takeoff_angle", &p.TakeoffAngle},
		{"magnitude", &p.Magnitude},
	}
	for _, o := range optional {
		if *o.dst, err = h.float(rec, o.col); err != nil {
			return p, err
		}
	}
	return p, nil
}

// header maps column names to record indexes.
type header map[string]int

func indexHeader(rec []string) header {
	h := make(header, len(rec))
	for i, name := range rec {
		h[strings.TrimSpace(name)] = i
	}
	return h
}

func (h header) str(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// float reads an optional cell. Absent columns, empty cells and NaN all
// read as nil.
func (h header) float(rec []string, col string) (*float64, error) {
	raw := h.str(rec, col)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col, err)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

func (h header) requireFloat(rec []string, col string) (float64, error) {
	v, err := h.float(rec, col)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("column %s: missing value", col)
	}
	return *v, nil
}

// requireInt parses integer columns, tolerating the float formatting
// some catalog exports use for integral values.
func (h header) requireInt(rec []string, col string) (int, error) {
	v, err := h.requireFloat(rec, col)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
