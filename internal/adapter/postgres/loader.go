package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// ImportCatalog replaces the stored catalog with col inside one transaction.
// Events keep their slice order and picks keep their per-event source order,
// so a catalog loaded back from the database stages the same replay queue as
// the CSV files it came from. Picks whose event is not in the catalog are
// dropped; nothing can replay them.
func ImportCatalog(ctx context.Context, pool *pgxpool.Pool, col *catalog.Collection) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE picks, events RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate catalog: %w", err)
	}

	eventCols := []string{
		"event_index", "time", "longitude", "latitude", "depth_km", "magnitude",
		"num_picks", "num_p_picks", "num_s_picks",
		"h3dd_longitude", "h3dd_latitude", "h3dd_depth_km",
		"strike", "strike_err", "dip", "dip_err", "rake", "rake_err",
		"quality_index", "num_of_polarity",
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"events"}, eventCols,
		pgx.CopyFromSlice(len(col.Events), func(i int) ([]any, error) {
			ev := col.Events[i]
			return []any{
				ev.ID, ev.Time, ev.Longitude, ev.Latitude, ev.DepthKM, ev.Magnitude,
				ev.NumPicks, ev.NumPPicks, ev.NumSPicks,
				ev.RefinedLongitude, ev.RefinedLatitude, ev.RefinedDepthKM,
				ev.Strike, ev.StrikeErr, ev.Dip, ev.DipErr, ev.Rake, ev.RakeErr,
				ev.QualityIndex, ev.PolarityCount,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy events: %w", err)
	}

	var flat []catalog.Pick
	for _, ev := range col.Events {
		flat = append(flat, col.PicksFor(ev.ID)...)
	}

	pickCols := []string{
		"event_index", "station_id", "phase_type", "phase_time", "phase_score",
		"polarity", "dist", "azimuth", "takeoff_angle", "magnitude",
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"picks"}, pickCols,
		pgx.CopyFromSlice(len(flat), func(i int) ([]any, error) {
			p := flat[i]
			return []any{
				p.EventID, p.Station, string(p.Phase), p.Time, p.Score,
				p.Polarity, p.DistanceKM, p.Azimuth, p.TakeoffAngle, p.Magnitude,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy picks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	return nil
}
