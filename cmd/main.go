/*
Package main is the entry point for the BizHub application.

It is responsible for loading configuration, initializing the global logging system,
opening the realtime store and postgres pool, wiring the application services,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizhub/internal/app/books"
	"bizhub/internal/app/credits"
	"bizhub/internal/app/db"
	"bizhub/internal/app/genai"
	"bizhub/internal/app/rooms"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/app/storage"
	"bizhub/internal/configs"
	"bizhub/internal/handler"
	"bizhub/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_path", cfg.StorePath).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the realtime store
	store, err := rtstore.Open(cfg.StorePath)
	if err != nil {
		logx.Fatal(err, "Failed to open realtime store")
	}

	// Connect to postgres and run migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}

	// Connect to object storage
	storageService, err := storage.NewStorageService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	// Wire application services
	genaiClient := genai.NewClient(genai.Config{
		BaseURL: cfg.GenAIBaseURL,
		APIKey:  cfg.GenAIAPIKey,
		Model:   cfg.GenAIModel,
	})

	deps := &handler.AppDeps{
		Config:         cfg,
		Store:          store,
		Ledger:         credits.NewLedger(store, cfg.CreditGrants),
		Rooms:          rooms.NewService(store),
		Hub:            rooms.NewHub(),
		Books:          books.NewService(store),
		Content:        genai.NewService(genaiClient),
		Accounts:       db.NewAccountRepo(pool),
		StorageService: storageService,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("BizHub Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	pool.Close()

	if err := store.Close(); err != nil {
		logx.Error(err, "Failed to close realtime store")
	}

	logx.Info("Server gracefully stopped.")
}
