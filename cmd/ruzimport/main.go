// Command ruzimport refreshes the registry code dictionary once, or queues the refresh
// for the worker with -enqueue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/ruz-auth/internal/database"
	"github.com/Proton-105/ruz-auth/internal/jobs"
	"github.com/Proton-105/ruz-auth/internal/registry"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/internal/ruz"
	"github.com/Proton-105/ruz-auth/pkg/config"
	"github.com/Proton-105/ruz-auth/pkg/logger"
)

func main() {
	enqueue := flag.Bool("enqueue", false, "queue the import for the background worker instead of running it here")
	seedOnly := flag.Bool("seed-only", false, "only insert the built-in zdroj_dat codes")
	flag.Parse()

	if err := run(*enqueue, *seedOnly); err != nil {
		fmt.Fprintf(os.Stderr, "ruzimport: %v\n", err)
		os.Exit(1)
	}
}

func run(enqueue, seedOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	if enqueue {
		manager := jobs.NewManager(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		defer manager.Close()

		_, err := manager.EnqueueDictionaryImport(ctx, "cli")
		return err
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	importer := ruz.NewImporter(
		registry.NewClient(cfg.Registry, nil, log),
		repository.NewDictionaryRepository(db, log),
		nil,
		log,
	)

	if seedOnly {
		n, err := importer.SeedSources(ctx)
		if err != nil {
			return err
		}
		log.Info("data sources seeded", slog.Int("inserted", n))
		return nil
	}

	report, err := importer.Import(ctx)
	if err != nil {
		return err
	}

	for _, src := range report.Sources {
		if src.Err != nil {
			log.Error("source failed", slog.String("type", src.Type), slog.Any("error", src.Err))
			continue
		}
		log.Info("source imported",
			slog.String("type", src.Type),
			slog.Int("fetched", src.Fetched),
			slog.Int("imported", src.Imported),
		)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d sources failed", len(failed), len(report.Sources))
	}

	return nil
}
