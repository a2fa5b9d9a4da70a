// Command quakefeed serves a recorded seismic catalog as a WebSocket
// notification feed: connected observers share one replay cursor and any of
// them can step, run, or rewind the broadcast.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/seistech/quakefeed/internal/adapter/csvfile"
	qfhttp "github.com/seistech/quakefeed/internal/adapter/http"
	qfnats "github.com/seistech/quakefeed/internal/adapter/nats"
	qfotel "github.com/seistech/quakefeed/internal/adapter/otel"
	"github.com/seistech/quakefeed/internal/adapter/postgres"
	"github.com/seistech/quakefeed/internal/adapter/ristretto"
	"github.com/seistech/quakefeed/internal/adapter/sqlite"
	"github.com/seistech/quakefeed/internal/adapter/ws"
	"github.com/seistech/quakefeed/internal/config"
	"github.com/seistech/quakefeed/internal/domain/catalog"
	"github.com/seistech/quakefeed/internal/domain/replay"
	"github.com/seistech/quakefeed/internal/logger"
	"github.com/seistech/quakefeed/internal/port/cache"
	"github.com/seistech/quakefeed/internal/port/source"
	"github.com/seistech/quakefeed/internal/protocol"
	"github.com/seistech/quakefeed/internal/service"
)

func main() {
	boot := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(boot)

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "load" {
		if err := runLoad(args[1:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}

	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"source", cfg.Catalog.Source,
		"interval", cfg.Replay.Interval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Telemetry ---

	otelShutdown, err := qfotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := qfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Catalog ---

	var src source.Source
	switch cfg.Catalog.Source {
	case "csv":
		src = csvfile.New(cfg.Catalog.EventsCSV, cfg.Catalog.PicksCSV)
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		src = postgres.NewSource(pool)
	case "sqlite":
		db, err := sqlite.Open(cfg.Catalog.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		defer func() { _ = db.Close() }()
		src = sqlite.NewSource(db)
	default:
		return fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	col, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	queue, err := replay.Build(col.Events, col.Picks)
	if err != nil {
		return fmt.Errorf("stage queue: %w", err)
	}
	summaries := catalog.Summaries(col.Events)
	slog.Info("catalog staged", "events", len(col.Events), "messages", queue.Len())

	// --- Feed services ---

	var frames cache.Cache
	if cfg.Cache.FrameCacheMB > 0 {
		fc, err := ristretto.New(cfg.Cache.FrameCacheMB << 20)
		if err != nil {
			return fmt.Errorf("frame cache: %w", err)
		}
		defer fc.Close()
		frames = fc
	}

	bcast := service.NewBroadcaster(frames, metrics)
	seq := service.NewSequencer(queue, bcast, metrics, cfg.Replay.Interval, cfg.Replay.EventGap)

	welcome, err := json.Marshal(protocol.NewConnected(len(col.Events), queue.Len()))
	if err != nil {
		return fmt.Errorf("welcome frame: %w", err)
	}

	// The hub dispatches commands to the processor and the processor asks
	// the hub for its connection count, so the hub variable is closed over
	// before it is assigned.
	var hub *ws.Hub
	proc := service.NewProcessor(seq, bcast, summaries, func() int { return hub.ConnectionCount() }, metrics)
	hub = ws.NewHub(welcome, proc)
	bcast.Register(hub)

	if err := qfotel.RegisterObserverGauge(hub.ConnectionCount); err != nil {
		return fmt.Errorf("observer gauge: %w", err)
	}

	if cfg.NATS.URL != "" {
		bridge, err := qfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = bridge.Close() }()
		bcast.Register(bridge)
	}

	// --- HTTP ---

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(qfhttp.RequestID)
	r.Use(qfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(qfhttp.Logger)
	r.Use(qfotel.HTTPMiddleware(cfg.Logging.Service))
	qfhttp.MountRoutes(r, qfhttp.NewHandlers(seq, queue, summaries, hub))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No global read/write timeouts: they would sever idle WebSocket
		// observers waiting between frames.
	}

	holder := config.NewHolder(cfg, cfgPath)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seq.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigc)

		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-sigc:
				if sig == syscall.SIGHUP {
					reload(holder)
					continue
				}

				slog.Info("shutting down", "signal", sig.String())
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := srv.Shutdown(shutdownCtx)
				shutdownCancel()
				// Stop the sequencer too; a clean Shutdown alone leaves it
				// ticking against an open context.
				cancel()
				if err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return nil
			}
		}
	})

	return g.Wait()
}

// reload re-reads the config file and applies the settings that can change
// at runtime. Today that is the log level; everything else needs a restart.
func reload(holder *config.Holder) {
	if err := holder.Reload(); err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}
	level := holder.Get().Logging.Level
	logger.SetLevel(level)
	slog.Info("config reloaded", "log_level", level)
}
