package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mswiatek/filmweb-backup/handlers"
	"github.com/mswiatek/filmweb-backup/lib/backup"
	"github.com/mswiatek/filmweb-backup/lib/config"
	"github.com/mswiatek/filmweb-backup/lib/export"
	"github.com/mswiatek/filmweb-backup/lib/filmweb"
	"github.com/mswiatek/filmweb-backup/lib/health"
	"github.com/mswiatek/filmweb-backup/lib/lock"
	"github.com/mswiatek/filmweb-backup/lib/store"
)

const usage = `usage: filmweb-backup <command>

commands:
  sync             run one incremental sync against Filmweb
  export [-o csv]  write the flattened rating export
  serve            serve stats and stored ratings over HTTP
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "sync":
		err = runSync(ctx, cfg, logger)
	case "export":
		err = runExport(ctx, cfg, logger, os.Args[2:])
	case "serve":
		err = runServe(cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

// runSync acquires the sync lock and runs one full traversal.
func runSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Secret == "" {
		return errors.New("FILMWEB_SECRET is required for sync")
	}

	fl := lock.New(logger)
	ok, err := fl.TryLock(ctx, "sync", 30*time.Second)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("another sync is already running")
	}
	defer func() {
		if err := fl.Unlock("sync"); err != nil {
			logger.Error("Failed to release sync lock", slog.Any("error", err))
		}
	}()

	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}

	client := filmweb.NewClient(cfg.Secret, logger,
		filmweb.WithBaseURL(cfg.BaseURL),
		filmweb.WithThrottle(cfg.Throttle, cfg.ThrottleJitter),
	)

	ttls := backup.TTLs{
		Movie:       cfg.MovieTTL,
		MovieRating: cfg.MovieRatingTTL,
		PrimaryUser: cfg.PrimaryUserTTL,
		Friend:      cfg.FriendTTL,
	}
	return backup.New(client, s, ttls, logger).Run(ctx)
}

// runExport writes the CSV export for the primary user.
func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", cfg.ExportPath, "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}

	user, err := s.PrimaryUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("no synced data to export; run sync first")
	}

	return export.ToFile(ctx, s, user.ID, *out, logger)
}

// runServe exposes the synchronized data read-only over HTTP.
func runServe(cfg *config.Config, logger *slog.Logger) error {
	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", health.Check(s.DB()))
	r.Get("/stats", handlers.HandleStats(s, logger))
	r.Get("/ratings", handlers.HandleRatings(s, logger))

	logger.Info("Starting server", slog.String("addr", cfg.ListenAddr))
	return http.ListenAndServe(cfg.ListenAddr, r)
}
