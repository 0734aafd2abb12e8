// main is the entry point of the Users API application — the
// SQLite-backed JSON variant of the service.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Connect to (and set up) the SQLite database
//  4. Register all HTTP routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block the main goroutine until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/users-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/users-api
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/http/handlers/user"
	"github.com/aanand-mishra/users-api/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad reads the YAML config and panics if anything is wrong.
	// The name "Must" signals: if this returns, config is guaranteed valid.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// slog is Go's structured logger (stdlib since Go 1.21).
	// Structured logging writes key=value pairs rather than plain strings,
	// making logs easy to filter/search in tools like Loki or Datadog.
	//
	// SetDefault routes the package-level slog calls in the handlers
	// through this same logger, so the whole process logs in one format.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting users-api",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage (Database) ──────────────────────────────────
	// sqlite.New opens the SQLite file and creates the users table.
	// We keep the result as *sqlite.Store only here in main — the
	// handlers receive it as the storage.Storage INTERFACE, so swapping
	// to PostgreSQL later only requires changing this one block.
	//
	// The default tracer and meter resolve through OpenTelemetry's
	// global providers: no-ops unless an SDK is installed, real spans
	// and metrics when one is.
	store, err := sqlite.New(cfg,
		sqlite.WithLogger(log),
		sqlite.WithQueryLogging(cfg.Env == "dev"),
		sqlite.WithDefaultTracer(),
		sqlite.WithDefaultMeter(),
	)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1) // non-zero exit code signals failure to the OS / CI system
	}

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	// http.NewServeMux() creates an empty router.
	// HandleFunc maps a METHOD+PATTERN to a handler function.
	//
	// The handler functions (user.New, user.GetList, user.GetByID) are
	// FACTORIES — they receive `store` and return the actual handler.
	// This is the dependency injection / closure pattern.
	//
	// Route table:
	//   POST /users (and /users/)  → create a new user
	//   GET  /users (and /users/)  → list users (or ?user_id= lookup)
	//   GET  /users/{id}           → get one user by ID
	//
	// Exact patterns, not a "/users/" subtree. A subtree pattern makes
	// the mux answer /users with a 301 — useless for POST, because
	// clients do not replay a request body across a 301 — and lets
	// POST /users/123 fall through to the create handler. "{$}" matches
	// only the exact path ending in the slash, so both spellings serve
	// directly and a POST to /users/{id} gets the automatic 405.
	router := http.NewServeMux()

	router.HandleFunc("POST /users", user.New(store))
	router.HandleFunc("POST /users/{$}", user.New(store))
	router.HandleFunc("GET /users", user.GetList(store))
	router.HandleFunc("GET /users/{$}", user.GetList(store))
	router.HandleFunc("GET /users/{id}", user.GetByID(store))

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	// http.Server is a struct. We configure it here but don't start it yet.
	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr, // e.g. "localhost:8082"
		Handler: router,              // every request goes through our router

		// Production hardening — set timeouts to prevent slow-client attacks.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks forever (it loops accepting connections).
	// If we called it here in main(), the graceful-shutdown code below
	// would never run. So we run it in a separate goroutine.
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ListenAndServe returns http.ErrServerClosed when Shutdown() is
		// called. That's expected — we don't want to log it as an error.
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	// make(chan os.Signal, 1) creates a buffered channel of size 1.
	// Buffered so we don't miss the signal if main is briefly busy.
	done := make(chan os.Signal, 1)

	// signal.Notify registers our channel to receive specific OS signals:
	//   os.Interrupt = Ctrl+C (SIGINT)
	//   syscall.SIGTERM = sent by `kill <pid>` or container orchestrators
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// <-done blocks (pauses) the main goroutine here.
	// The program stays alive because this goroutine is running.
	// When a signal arrives, done receives it and we unblock.
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// context.WithTimeout gives the shutdown a 5-second deadline.
	// If in-flight requests don't finish within 5 seconds,
	// the context cancels and Shutdown returns an error.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// server.Shutdown:
	//   • Stops accepting new connections
	//   • Waits for active requests to complete (up to ctx deadline)
	//   • Returns nil on clean shutdown, error if deadline exceeded
	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The server is drained; now the connection pool can go too.
	if err := store.Close(); err != nil {
		log.Warn("failed to close storage",
			slog.String("error", err.Error()))
	}

	log.Info("server stopped gracefully")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
//
//	JSON logs are easy to ingest by log aggregators (Loki, CloudWatch, etc.)
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo, // INFO and above in production
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // more verbose in staging
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug, // all levels in development
			}),
		)
	}
}
