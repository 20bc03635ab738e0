package main

import (
	"context"
	"flag"
	"os"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/avikal/resumeai/internal/app/migrate"
	"github.com/avikal/resumeai/pkg/config"
	"github.com/avikal/resumeai/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	statusOnly := flag.Bool("status", false, "print migration status instead of applying")
	flag.Parse()

	cfg := config.LoadAPIConfig()
	log := logger.New("migrate", slog.LevelInfo)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	if *statusOnly {
		if err := runner.Status(ctx); err != nil {
			log.Error("migration status failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}
}
