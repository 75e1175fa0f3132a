package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL  string
	PushURL     string
	UserID      string
	UserRole    string
	Environment string

	// APIToken is optional: without it the agent requests a fresh
	// anonymous session on startup.
	APIToken string

	// Optional Telegram notifier bridge.
	TelegramToken  string
	TelegramChatID string
}

// Load читає .env (якщо є) та змінні оточення.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{
		APIBaseURL:     os.Getenv("API_BASE_URL"),
		PushURL:        os.Getenv("PUSH_URL"),
		UserID:         os.Getenv("USER_ID"),
		UserRole:       os.Getenv("USER_ROLE"),
		Environment:    os.Getenv("ENV"),
		APIToken:       os.Getenv("API_TOKEN"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.UserRole == "" {
		cfg.UserRole = "client"
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required but not set")
	}
	if cfg.PushURL == "" {
		return nil, fmt.Errorf("PUSH_URL is required but not set")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("USER_ID is required but not set")
	}

	return cfg, nil
}
