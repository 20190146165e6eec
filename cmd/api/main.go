package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmarkov/finsight/internal/api/handlers"
	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/api/ws"
	"github.com/dmarkov/finsight/internal/auth"
	"github.com/dmarkov/finsight/internal/extract"
	"github.com/dmarkov/finsight/internal/logger"
	"github.com/dmarkov/finsight/internal/manager"
	"github.com/dmarkov/finsight/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	var (
		port = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()

	db, err := store.Open(ctx, databaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close(context.Background())

	extractor, err := extract.New(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	mgr := manager.New(db, log)
	authSvc := auth.New(db, []byte(jwtSecret), log)
	hub := ws.NewHub(log)

	api := handlers.New(db, mgr, extractor, authSvc, hub, log)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					api.Routes(),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
