// Daemon runs periodic sync passes without the HTTP server, for
// deployments where refreshes should not depend on user traffic.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/config"
	"agrimarket/internal/database"
	"agrimarket/internal/services"
	"agrimarket/internal/services/prediction"
	"agrimarket/internal/store"

	"github.com/joho/godotenv"
)

var syncInterval = flag.Duration("interval", 6*time.Hour, "time between sync passes")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	hub := store.NewHub()
	priceStore := store.New(db, hub)
	predictor := prediction.NewClient(cfg.PredictionAPIURL)
	reconciler := services.NewReconciler(priceStore, predictor)
	coordinator := services.NewSyncCoordinator(cfg.SyncCooldown)
	syncer := services.NewSyncer(reconciler, priceStore, coordinator)

	// In-process trusted identity; daemon passes never go through the API.
	principal := &auth.Principal{Subject: "sync-daemon", Role: "service"}

	log.Printf("Sync daemon started (PID %d), interval %v", os.Getpid(), *syncInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runPass(syncer, principal)

	ticker := time.NewTicker(*syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			log.Println("Shutdown signal received, stopping")
			return
		case <-ticker.C:
			runPass(syncer, principal)
		}
	}
}

func runPass(syncer *services.Syncer, principal *auth.Principal) {
	summary := syncer.SyncAll(context.Background(), principal)
	log.Printf("Pass summary: %d written, %d skipped, %d errors",
		summary.Success, summary.Skipped, summary.Errors)
}
