// Command export writes the transaction list or the monthly summary as CSV
// to stdout or a file.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmarkov/finsight/internal/export"
	"github.com/dmarkov/finsight/internal/logger"
	"github.com/dmarkov/finsight/internal/manager"
	"github.com/dmarkov/finsight/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	var (
		kind    = flag.String("kind", "transactions", "what to export: transactions or summary")
		out     = flag.String("out", "-", "output file, or - for stdout")
		owner   = flag.Int64("owner", 0, "restrict to one user id (0 = all)")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout")
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

	var ownerID *int64
	if *owner > 0 {
		ownerID = owner
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("path", *out).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	mgr := manager.New(db, log)

	switch *kind {
	case "transactions":
		txs, err := mgr.GetTransactions(ctx, ownerID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load transactions")
		}
		if err := export.Transactions(w, txs); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
	case "summary":
		stats, err := mgr.GetSummaryStats(ctx, ownerID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to compute summary")
		}
		if err := export.MonthlyBreakdown(w, stats.MonthlyBreakdown); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
	default:
		log.Fatal().Str("kind", *kind).Msg("Unknown export kind")
	}
}
