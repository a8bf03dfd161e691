package main

import (
	"log"
	"net/http"

	"agrimarket/internal/api"
	"agrimarket/internal/auth"
	"agrimarket/internal/config"
	"agrimarket/internal/database"
	"agrimarket/internal/services"
	"agrimarket/internal/services/prediction"
	"agrimarket/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
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

	// Wire the price pipeline
	hub := store.NewHub()
	priceStore := store.New(db, hub)
	predictor := prediction.NewClient(cfg.PredictionAPIURL)
	reconciler := services.NewReconciler(priceStore, predictor)
	coordinator := services.NewSyncCoordinator(cfg.SyncCooldown)
	syncer := services.NewSyncer(reconciler, priceStore, coordinator)
	feed := services.NewPriceFeed(priceStore, hub)

	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	apiGroup.Use(auth.Middleware(cfg.JWTSecret))
	api.SetupRoutes(apiGroup, feed, syncer, priceStore, cfg.JWTSecret)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
