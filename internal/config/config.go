package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	Port               string
	SyncTimezone       string // IANA zone used for all day bucketing
	SyncConcurrency    int    // fleet worker count
	ShutdownTimeout    int    // seconds
	AppJWTSecret       string
	CronSecret         string
	NotionClientID     string
	NotionClientSecret string
	CanvasClientID     string
	CanvasClientSecret string
	CanvasBaseURL      string
	OpenRouterAPIKey   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("APP_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("APP_JWT_SECRET is required")
	}

	notionClientID := os.Getenv("NOTION_CLIENT_ID")
	notionClientSecret := os.Getenv("NOTION_CLIENT_SECRET")
	if notionClientID == "" || notionClientSecret == "" {
		fmt.Println("Warning: NOTION_CLIENT_ID or NOTION_CLIENT_SECRET not set, Notion OAuth will not work")
	}

	canvasClientID := os.Getenv("CANVAS_CLIENT_ID")
	canvasClientSecret := os.Getenv("CANVAS_CLIENT_SECRET")
	if canvasClientID == "" || canvasClientSecret == "" {
		fmt.Println("Warning: CANVAS_CLIENT_ID or CANVAS_CLIENT_SECRET not set, Canvas OAuth will not work")
	}

	openRouterAPIKey := os.Getenv("OPENROUTER_API_KEY")
	if openRouterAPIKey == "" {
		fmt.Println("Warning: OPENROUTER_API_KEY not set, assignment normalization will not work")
	}

	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		fmt.Println("Warning: CRON_SECRET not set, the fleet sync endpoint will reject all callers")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	tz := os.Getenv("SYNC_TIMEZONE")
	if tz == "" {
		tz = "America/New_York"
	}

	return &Config{
		DatabaseURL:        dbURL,
		Port:               port,
		SyncTimezone:       tz,
		SyncConcurrency:    3, // bounds outstanding Canvas/Notion requests
		ShutdownTimeout:    30,
		AppJWTSecret:       jwtSecret,
		CronSecret:         cronSecret,
		NotionClientID:     notionClientID,
		NotionClientSecret: notionClientSecret,
		CanvasClientID:     canvasClientID,
		CanvasClientSecret: canvasClientSecret,
		CanvasBaseURL:      os.Getenv("CANVAS_BASE_URL"),
		OpenRouterAPIKey:   openRouterAPIKey,
	}, nil
}
