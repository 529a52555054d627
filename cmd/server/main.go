package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"malsori/internal/ai"
	"malsori/internal/api"
	"malsori/internal/cloudsync"
	"malsori/internal/config"
	"malsori/internal/db"
	"malsori/internal/remote"
	"malsori/internal/repository"
	"malsori/internal/stt"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	repo := repository.NewSQLiteRepository(database)

	auth := remote.NewTokenAuthenticator(cfg.DriveToken)
	coord := cloudsync.NewCoordinator(repo, repo, auth)

	// Sync activation needs Drive credentials; without them the server runs
	// local-only and the coordinator stays idle.
	ctx := context.Background()
	if cfg.DriveCredentials != "" && auth.IsAuthenticated() {
		client, err := remote.NewOAuthClient(ctx, cfg.DriveCredentials, cfg.DriveToken)
		if err != nil {
			log.Printf("Warning: Drive credentials unusable, running local-only: %v", err)
		} else {
			store, err := remote.NewDriveStore(ctx, option.WithHTTPClient(client))
			if err != nil {
				log.Printf("Warning: Drive service unavailable, running local-only: %v", err)
			} else {
				manager := cloudsync.NewManager(store, repo, cfg.SyncInterval)
				if err := coord.HandleSignIn(ctx, manager); err != nil {
					log.Printf("Warning: sync activation failed: %v", err)
				}
			}
		}
	} else {
		log.Println("Drive credentials not configured, running local-only")
	}

	var provider stt.Provider
	if cfg.OpenAIKey != "" || cfg.GoogleSTTAPIKey != "" || cfg.GoogleSTTKeyFile != "" {
		provider, err = stt.NewProvider(ctx, stt.ProviderConfig{
			Name:          cfg.STTProvider,
			OpenAIKey:     cfg.OpenAIKey,
			GoogleAPIKey:  cfg.GoogleSTTAPIKey,
			GoogleKeyFile: cfg.GoogleSTTKeyFile,
		})
		if err != nil {
			log.Printf("Warning: STT provider unavailable: %v", err)
		} else {
			log.Printf("STT provider initialized: %s", provider.Name())
		}
	}

	var refiner *ai.Refiner
	if cfg.OpenAIKey != "" {
		refiner, err = ai.NewRefiner(cfg.OpenAIKey)
		if err != nil {
			log.Printf("Warning: transcript refiner unavailable: %v", err)
		}
	}

	r := gin.Default()

	// Add CORS middleware for the web app
	r.Use(corsMiddleware())

	api.RegisterRoutes(r, api.NewHandler(repo, coord, provider, refiner))

	log.Printf("Malsori backend running on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware adds CORS headers for the web app
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
