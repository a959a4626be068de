package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/api"
	"github.com/mediapulse/mentions/internal/cache"
	"github.com/mediapulse/mentions/internal/config"
	"github.com/mediapulse/mentions/internal/ingestion"
	"github.com/mediapulse/mentions/internal/insights"
	"github.com/mediapulse/mentions/internal/notifications"
	"github.com/mediapulse/mentions/internal/reporting"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/mediapulse/mentions/internal/scheduler"
	"github.com/mediapulse/mentions/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting MediaPulse mentions service")

	// Initialize the SQLite repository
	repo, err := repository.NewSQLite(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer repo.Close()

	// Report archive: Azure Blob when an account is configured, local
	// filesystem otherwise
	archive, err := newArchive(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize report archive: %v", err)
	}

	analysisCache := cache.New(repo)
	aggregator := analytics.NewAggregator(repo, cfg.Location())
	ingestionService := ingestion.NewService(repo)
	notificationService := notifications.NewService(cfg)
	reportingService := reporting.NewService(cfg, repo, aggregator, archive, notificationService)

	// Narrative insights need an OpenAI key; without one the endpoints
	// respond 503
	var insightsService *insights.Service
	if cfg.OpenAIAPIKey != "" {
		summarizer := insights.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		insightsService = insights.NewService(aggregator, analysisCache, summarizer, cfg.CacheTTL)
	} else {
		logrus.Warn("OPENAI_API_KEY not set, narrative insights disabled")
	}

	// Start scheduler
	schedulerService := scheduler.NewService(cfg, reportingService, analysisCache)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	apiServer := api.NewServer(repo, aggregator, ingestionService, insightsService, reportingService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newArchive(cfg *config.Config) (storage.ArchiveInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
	}
	return storage.NewLocalArchive("archive")
}
