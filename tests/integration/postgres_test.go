//go:build integration

// Postgres-backed tests. Requires a running postgres; point DATABASE_URL
// at it or rely on the default development DSN.
// Run with: go test -tags=integration ./tests/integration/...
package integration_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seistech/quakefeed/internal/adapter/postgres"
	"github.com/seistech/quakefeed/internal/config"
	"github.com/seistech/quakefeed/internal/domain/catalog"
	"github.com/seistech/quakefeed/internal/domain/replay"
)

var (
	testPool *pgxpool.Pool
	testDSN  string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	cfg := config.Defaults()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	testDSN = cfg.Postgres.DSN

	if err := postgres.RunMigrations(ctx, testDSN); err != nil {
		fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
		os.Exit(1)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to postgres: %v\n", err)
		os.Exit(1)
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

func TestPostgresCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()

	if err := postgres.ImportCatalog(ctx, testPool, fixtureCollection()); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := postgres.NewSource(testPool).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(got.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got.Events))
	}
	if got.Events[0].ID != 22015 || got.Events[1].ID != 22016 {
		t.Fatalf("load order = %d, %d", got.Events[0].ID, got.Events[1].ID)
	}

	full := got.Events[0]
	if full.Magnitude == nil || *full.Magnitude != 5.4 {
		t.Errorf("magnitude = %v", full.Magnitude)
	}
	if !full.HasRefined() || !full.HasFocal() {
		t.Errorf("optional blocks lost: refined=%v focal=%v", full.HasRefined(), full.HasFocal())
	}

	bare := got.Events[1]
	if bare.Magnitude != nil || bare.HasRefined() || bare.HasFocal() {
		t.Errorf("bare event grew optional blocks: %+v", bare)
	}

	picks := got.PicksFor(22015)
	if len(picks) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(picks))
	}
	if picks[0].Station != "SM01" || picks[0].Phase != catalog.PhaseP || picks[0].Polarity != "U" {
		t.Errorf("first pick = %+v", picks[0])
	}

	queue, err := replay.Build(got.Events, got.Picks)
	if err != nil {
		t.Fatalf("build queue from loaded catalog: %v", err)
	}
	if queue.Len() != 4 {
		t.Errorf("queue length = %d, want 4", queue.Len())
	}
}

func TestPostgresReimportReplaces(t *testing.T) {
	ctx := context.Background()

	if err := postgres.ImportCatalog(ctx, testPool, fixtureCollection()); err != nil {
		t.Fatalf("first import: %v", err)
	}

	smaller := &catalog.Collection{
		Events: []catalog.Event{{ID: 31337, Time: "2024-05-01 00:00:00.000"}},
	}
	if err := postgres.ImportCatalog(ctx, testPool, smaller); err != nil {
		t.Fatalf("second import: %v", err)
	}

	got, err := postgres.NewSource(testPool).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].ID != 31337 {
		t.Fatalf("reimport did not replace catalog: %+v", got.Events)
	}
	if len(got.Picks) != 0 {
		t.Errorf("stale picks survived reimport: %v", got.Picks)
	}
}

func TestMigrationVersion(t *testing.T) {
	version, err := postgres.MigrationVersion(context.Background(), testDSN)
	if err != nil {
		t.Fatalf("migration version: %v", err)
	}
	if version < 1 {
		t.Errorf("schema version = %d, want >= 1", version)
	}
}
