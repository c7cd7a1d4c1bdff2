// Package main is the entry point for the field tracker service.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/bosstrack/fieldtrack/internal/config"
	"github.com/bosstrack/fieldtrack/internal/consent"
	"github.com/bosstrack/fieldtrack/internal/engine"
	"github.com/bosstrack/fieldtrack/internal/handler"
	"github.com/bosstrack/fieldtrack/internal/location"
	"github.com/bosstrack/fieldtrack/internal/metrics"
	"github.com/bosstrack/fieldtrack/internal/middleware"
	"github.com/bosstrack/fieldtrack/internal/publisher"
	"github.com/bosstrack/fieldtrack/internal/store"
	"github.com/bosstrack/fieldtrack/migrations"
)

// maxRequestBody caps inbound JSON payloads. Consent forms and trip start
// requests are tiny; anything bigger is abuse.
const maxRequestBody = 1 << 20 // 1 MiB

func main() {
	// --- Config -----------------------------------------------------------
	// .env is a development convenience; in production the variables come
	// from the real environment and the file is simply absent.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// log/slog is the stdlib structured logger introduced in Go 1.21.
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Migrations -------------------------------------------------------
	// Apply pending migrations at bootstrap so the binary is self-contained.
	// goose needs database/sql, so borrow one connection from the pool.
	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")

	// --- Metrics ----------------------------------------------------------
	collector := metrics.NewCollector()

	// --- Position publisher -----------------------------------------------
	// NATS publishing is optional: dev setups without a broker run fine.
	var pub engine.Publisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, logger, collector)
		if err != nil {
			slog.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer np.Close()
		pub = np
		slog.Info("position publisher connected", "url", cfg.NATSURL)
	}

	// --- Location source and engine ---------------------------------------
	source := location.NewSimulator(location.SimulatorConfig{
		BaseLat:  cfg.SimBaseLat,
		BaseLon:  cfg.SimBaseLon,
		Interval: cfg.SimInterval,
		Seed:     cfg.SimSeed,
	}, logger)

	trips := store.NewTripStore(pool)
	eng := engine.New(source, trips, logger, engine.Options{
		FlushInterval: cfg.FlushInterval,
		Publisher:     pub,
		Metrics:       collector,
	})

	consents := consent.NewService(store.NewProfileRepo(pool), logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID, RealIP, Logger, Recoverer,
	// CORS, body size cap. SlogLogger writes one structured JSON log line
	// per request; Recoverer turns panics into HTTP 500s.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(maxRequestBody))

	srvHandlers := handler.NewServer(eng, consents, trips, logger)
	r.Mount("/", srvHandlers.Routes())
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, finalize any active trip so its
	// buffered samples land, then give in-flight requests up to 15 seconds.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if eng.IsTracking() {
		if trip, err := eng.StopTrip(ctx); err != nil {
			slog.Error("failed to finalize trip during shutdown", "error", err)
		} else if trip != nil {
			slog.Info("trip finalized during shutdown", "trip_id", trip.ID)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies all embedded migrations using goose.
// goose needs database/sql, so a short-lived handle is opened via the pgx
// stdlib driver and closed as soon as the migrations have run.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}
