package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// ImportCatalog replaces the stored catalog with col inside one transaction,
// preserving event order and per-event pick order. Picks whose event is not
// in the catalog are dropped.
func ImportCatalog(ctx context.Context, db *sql.DB, col *catalog.Collection) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"picks", "events"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	// Restart the AUTOINCREMENT counters so seq matches load order from zero.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('events', 'picks')`); err != nil {
		return fmt.Errorf("reset sequences: %w", err)
	}

	if err := insertEvents(ctx, tx, col.Events); err != nil {
		return err
	}
	if err := insertPicks(ctx, tx, col); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []catalog.Event) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			event_index, time, longitude, latitude, depth_km, magnitude,
			num_picks, num_p_picks, num_s_picks,
			h3dd_longitude, h3dd_latitude, h3dd_depth_km,
			strike, strike_err, dip, dip_err, rake, rake_err,
			quality_index, num_of_polarity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.Time, ev.Longitude, ev.Latitude, ev.DepthKM, ev.Magnitude,
			ev.NumPicks, ev.NumPPicks, ev.NumSPicks,
			ev.RefinedLongitude, ev.RefinedLatitude, ev.RefinedDepthKM,
			ev.Strike, ev.StrikeErr, ev.Dip, ev.DipErr, ev.Rake, ev.RakeErr,
			ev.QualityIndex, ev.PolarityCount,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.ID, err)
		}
	}

	return nil
}

func insertPicks(ctx context.Context, tx *sql.Tx, col *catalog.Collection) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO picks (
			event_index, station_id, phase_type, phase_time, phase_score,
			polarity, dist, azimuth, takeoff_angle, magnitude
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare pick insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range col.Events {
		for _, p := range col.PicksFor(ev.ID) {
			if _, err := stmt.ExecContext(ctx,
				p.EventID, p.Station, string(p.Phase), p.Time, p.Score,
				p.Polarity, p.DistanceKM, p.Azimuth, p.TakeoffAngle, p.Magnitude,
			); err != nil {
				return fmt.Errorf("insert pick for event %d: %w", p.EventID, err)
			}
		}
	}

	return nil
}
