package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// Source loads the seismic catalog from PostgreSQL. Rows come back in load
// order (the seq column), so the staged queue is identical to one built
// straight from the CSV files the table was imported from.
type Source struct {
	pool *pgxpool.Pool
}

// NewSource creates a catalog source backed by the given pool.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Load reads the full catalog.
func (s *Source) Load(ctx context.Context) (*catalog.Collection, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return nil, err
	}

	picks, err := s.loadPicks(ctx)
	if err != nil {
		return nil, err
	}

	return &catalog.Collection{Events: events, Picks: picks}, nil
}

func (s *Source) loadEvents(ctx context.Context) ([]catalog.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_index, time, longitude, latitude, depth_km, magnitude,
		       num_picks, num_p_picks, num_s_picks,
		       h3dd_longitude, h3dd_latitude, h3dd_depth_km,
		       strike, strike_err, dip, dip_err, rake, rake_err,
		       quality_index, num_of_polarity
		FROM events
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []catalog.Event
	for rows.Next() {
		var ev catalog.Event
		if err := rows.Scan(
			&ev.ID, &ev.Time, &ev.Longitude, &ev.Latitude, &ev.DepthKM, &ev.Magnitude,
			&ev.NumPicks, &ev.NumPPicks, &ev.NumSPicks,
			&ev.RefinedLongitude, &ev.RefinedLatitude, &ev.RefinedDepthKM,
			&ev.Strike, &ev.StrikeErr, &ev.Dip, &ev.DipErr, &ev.Rake, &ev.RakeErr,
			&ev.QualityIndex, &ev.PolarityCount,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	return events, nil
}

func (s *Source) loadPicks(ctx context.Context) (map[int][]catalog.Pick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_index, station_id, phase_type, phase_time, phase_score,
		       polarity, dist, azimuth, takeoff_angle, magnitude
		FROM picks
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	picks := make(map[int][]catalog.Pick)
	for rows.Next() {
		var (
			p     catalog.Pick
			phase string
			score *float64
		)
		if err := rows.Scan(
			&p.EventID, &p.Station, &phase, &p.Time, &score,
			&p.Polarity, &p.DistanceKM, &p.Azimuth, &p.TakeoffAngle, &p.Magnitude,
		); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		p.Phase = catalog.Phase(phase)
		if score != nil {
			p.Score = *score
		}
		picks[p.EventID] = append(picks[p.EventID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read picks: %w", err)
	}

	return picks, nil
}
