// main is the entry point of the flat-file roster server — the
// plain-text variant of the user service. It follows the same startup
// sequence as cmd/users-api (see the comments there); the differences
// are the storage backend (a text file instead of SQLite) and the
// routes, which speak plain text and query parameters instead of JSON.
//
// RUNNING THE SERVER:
//
//	go run ./cmd/users-file --config=config/roster.yaml
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
	"github.com/aanand-mishra/users-api/internal/http/handlers/roster"
	"github.com/aanand-mishra/users-api/internal/storage/file"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting users-file",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// file.New loads the roster file into memory; a missing file just
	// means an empty roster.
	store, err := file.New(cfg.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// Route table:
	//   GET      /users  → plain-text listing of all users
	//   GET|POST /add    → create a user from ?name=&email=
	//
	// /add accepts both methods for curl/browser convenience; the
	// method patterns give every other verb an automatic 405.
	router := http.NewServeMux()

	router.HandleFunc("GET /users", roster.List(store))
	router.HandleFunc("GET /add", roster.Add(store))
	router.HandleFunc("POST /add", roster.Add(store))

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: router,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// setupLogger mirrors the logger setup in cmd/users-api: text at debug
// level for dev, JSON for staging and prod.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
