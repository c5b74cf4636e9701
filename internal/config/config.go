// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/link-coach/internal/channel"
)

// Environment names accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	Port           string
	Env            string
	FrontendURL    string
	WidgetURL      string
	DBPath         string
	AllowedOrigins []string

	JWT             JWTConfig
	Gemini          GeminiConfig
	ChatRateLimit   int
	ChatRateWindow  time.Duration
	ReportRetention time.Duration
	Log             LogConfig
}

// JWTConfig controls session token signing.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// GeminiConfig selects the text generation model.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         strings.ToLower(getEnv("APP_ENV", "")),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		WidgetURL:   getEnv("WIDGET_URL", "https://link-coach.netlify.app"),
		DBPath:      getEnv("DB_PATH", "./data/coach.db"),
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature: float32(getEnvFloat("GEMINI_TEMPERATURE", 0.7)),
			MaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 8192),
		},
		ChatRateLimit:   getEnvInt("CHAT_RATE_LIMIT", 20),
		ChatRateWindow:  getEnvDuration("CHAT_RATE_WINDOW", time.Minute),
		ReportRetention: getEnvDuration("REPORT_RETENTION", 30*24*time.Hour),
		Log:             loadLogConfig(),
	}

	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", ""))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), channel.DefaultAllowedOrigins...)
	}
	if cfg.FrontendURL != "" {
		cfg.AllowedOrigins = appendUnique(cfg.AllowedOrigins, strings.TrimRight(cfg.FrontendURL, "/"))
	}
	// The widget's own origin talks to the API and the relay.
	if cfg.WidgetURL != "" {
		cfg.AllowedOrigins = appendUnique(cfg.AllowedOrigins, channel.OriginOf(cfg.WidgetURL))
	}

	if cfg.JWT.Secret == "" && cfg.IsDevelopment() {
		cfg.JWT.Secret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Env != "" && c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if !c.IsDevelopment() && c.JWT.Secret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must not use the development default in production")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Gemini.MaxTokens <= 0 {
		return fmt.Errorf("GEMINI_MAX_TOKENS must be > 0")
	}
	if c.ChatRateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.ChatRateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_WINDOW must be > 0")
	}
	if c.ReportRetention <= 0 {
		return fmt.Errorf("REPORT_RETENTION must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode. An explicit
// APP_ENV wins; otherwise a missing or local FRONTEND_URL means development.
func (c *Config) IsDevelopment() bool {
	switch c.Env {
	case EnvProduction:
		return false
	case EnvDevelopment:
		return true
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
