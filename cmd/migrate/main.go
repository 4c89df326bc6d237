package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	configPath := flag.String("config", "", "Path to config.yaml")
	flag.Parse()

	// Print the embedded SQL without touching the database
	if *dryRun {
		if err := postgres.WriteMigrations(os.Stdout); err != nil {
			log.Fatalf("Failed to print migrations: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	applied, err := db.Migrate(ctx)
	if err != nil {
		logger.Fatalw("Failed to apply migrations", "applied", applied, "error", err)
	}
	if len(applied) == 0 {
		logger.Info("Schema is up to date")
	} else {
		logger.Infow("Migration completed successfully", "applied", applied)
	}

	fmt.Println("Migration process completed")
}
