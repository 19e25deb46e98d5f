package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"loyalty-ledger/internal/model"
)

// Config holds the service configuration
type Config struct {
	Port          string
	Store         string // mongo or memory
	MongoURI      string
	MongoDB       string
	JWTSecret     string
	Twilio        TwilioConfig
	NotifyTimeout time.Duration
	SettingsFile  string
}

// TwilioConfig holds the SMS provider credentials. An empty AccountSID
// selects the logging notifier.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// GetEnv returns the environment variable or fallback when it is unset
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(GetEnv("CONFIG_FILE", ".env"))
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Config file not loaded, using environment only: %v", err)
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "loyalty_ledger")
	v.SetDefault("TWILIO_BASE_URL", "https://api.twilio.com")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	cfg := &Config{
		Port:          v.GetString("PORT"),
		Store:         strings.ToLower(v.GetString("STORE")),
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDB:       v.GetString("MONGO_DB"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		NotifyTimeout: v.GetDuration("NOTIFY_TIMEOUT"),
		SettingsFile:  v.GetString("SETTINGS_FILE"),
		Twilio: TwilioConfig{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			From:       v.GetString("TWILIO_FROM"),
			BaseURL:    v.GetString("TWILIO_BASE_URL"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Store != "mongo" && cfg.Store != "memory" {
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	return cfg, nil
}

// LoadSettings returns the default settings for new businesses. With an
// empty path the built-in defaults are used.
func LoadSettings(path string) (model.Settings, error) {
	if path == "" {
		return model.DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	settings := model.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return model.Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("settings file: %w", err)
	}

	return settings, nil
}
