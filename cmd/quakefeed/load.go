package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/seistech/quakefeed/internal/adapter/csvfile"
	"github.com/seistech/quakefeed/internal/adapter/postgres"
	"github.com/seistech/quakefeed/internal/adapter/sqlite"
	"github.com/seistech/quakefeed/internal/config"
)

// runLoad imports the CSV catalog into a database so the server can be
// started with catalog.source postgres or sqlite. Postgres imports run
// the schema migrations first; -rollback undoes the newest migration
// instead of importing.
func runLoad(args []string) error {
	fs := flag.NewFlagSet("quakefeed load", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: quakefeed load [flags]")
		fmt.Fprintln(os.Stderr, "\nImports the CSV catalog into postgres or sqlite.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		fs.PrintDefaults()
	}

	cfgPath := fs.String("config", config.DefaultConfigFile, "path to YAML config file")
	events := fs.String("events", "", "events CSV path (default from config)")
	picks := fs.String("picks", "", "picks CSV path (default from config)")
	target := fs.String("target", "postgres", "import destination: postgres or sqlite")
	dsn := fs.String("dsn", "", "postgres connection string (default from config)")
	rollback := fs.Bool("rollback", false, "roll back the newest postgres migration and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *dsn != "" {
		cfg.Postgres.DSN = *dsn
	}
	if *events != "" {
		cfg.Catalog.EventsCSV = *events
	}
	if *picks != "" {
		cfg.Catalog.PicksCSV = *picks
	}

	ctx := context.Background()

	if *rollback {
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		slog.Info("migration rolled back", "schema_version", version)
		return nil
	}

	col, err := csvfile.New(cfg.Catalog.EventsCSV, cfg.Catalog.PicksCSV).Load(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	picksTotal := 0
	for _, pp := range col.Picks {
		picksTotal += len(pp)
	}

	switch *target {
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		if err := postgres.ImportCatalog(ctx, pool, col); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		slog.Info("catalog imported",
			"target", "postgres",
			"events", len(col.Events),
			"picks", picksTotal,
			"schema_version", version,
		)

	case "sqlite":
		path := cfg.Catalog.SQLitePath
		if path == "" {
			path = "quakefeed.db"
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := sqlite.ImportCatalog(ctx, db, col); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		slog.Info("catalog imported",
			"target", "sqlite",
			"path", path,
			"events", len(col.Events),
			"picks", picksTotal,
		)

	default:
		return fmt.Errorf("unknown load target %q (want postgres or sqlite)", *target)
	}

	return nil
}
