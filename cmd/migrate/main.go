// Command migrate creates the database schema. Safe to re-run; every
// statement is idempotent.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/dmarkov/finsight/internal/logger"
	"github.com/dmarkov/finsight/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	var (
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout for schema setup")
	)
	flag.Parse()

	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := store.Open(ctx, databaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close(context.Background())

	if err := db.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Schema setup failed")
	}

	log.Info().Msg("Schema is up to date")
}
