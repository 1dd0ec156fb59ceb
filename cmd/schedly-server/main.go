package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schedly/schedly/internal/api"
	"github.com/schedly/schedly/internal/auth"
	"github.com/schedly/schedly/internal/canvas"
	"github.com/schedly/schedly/internal/config"
	"github.com/schedly/schedly/internal/database"
	"github.com/schedly/schedly/internal/notion"
	"github.com/schedly/schedly/internal/openrouter"
	"github.com/schedly/schedly/internal/repository"
	"github.com/schedly/schedly/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	notionConnRepo := repository.NewNotionConnectionRepository(db)
	canvasConnRepo := repository.NewCanvasConnectionRepository(db)

	// Initialize gateways
	notionClient := notion.NewClient("")
	tokens := notion.NewTokenStore(notionConnRepo, cfg.NotionClientID, cfg.NotionClientSecret, notion.DefaultBaseURL)
	canvasClient := canvas.NewClient(canvasConnRepo, cfg.CanvasClientID, cfg.CanvasClientSecret)
	normalizer := openrouter.NewClient(cfg.OpenRouterAPIKey)

	// Initialize services
	reconciler := service.NewReconciler(notionConnRepo, tokens, canvasClient, notionClient, normalizer)
	fleet := service.NewFleet(reconciler, cfg.SyncConcurrency)

	sessions := auth.NewSessionManager(cfg.AppJWTSecret)

	server := api.NewServer(cfg, sessions, userRepo, notionConnRepo, canvasConnRepo, notionClient, tokens, canvasClient, reconciler, fleet)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	// Wait for shutdown signal or server error
	select {
	case <-sigChan:
		log.Println("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}

		log.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
