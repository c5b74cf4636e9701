package config

import (
	"fmt"
	"strings"
	"time"
)

// WidgetConfig configures a headless widget process that joins a host page
// through the frame relay.
type WidgetConfig struct {
	Env           string
	RelayURL      string
	FrameID       string
	Origin        string
	BackendURL    string
	TokenDBPath   string
	HostOrigins   []string
	FallbackDelay time.Duration
	Log           LogConfig
}

// LoadWidget reads the widget process configuration from environment variables.
func LoadWidget() (*WidgetConfig, error) {
	cfg := &WidgetConfig{
		Env:           strings.ToLower(getEnv("APP_ENV", "")),
		RelayURL:      getEnv("RELAY_URL", "ws://localhost:8080/ws/frame"),
		FrameID:       getEnv("FRAME_ID", ""),
		Origin:        getEnv("WIDGET_URL", "https://link-coach.netlify.app"),
		BackendURL:    getEnv("BACKEND_URL", "http://localhost:8080"),
		TokenDBPath:   getEnv("WIDGET_DB_PATH", "./data/widget.db"),
		HostOrigins:   splitList(getEnv("HOST_ORIGINS", "")),
		FallbackDelay: getEnvDuration("DEV_FALLBACK_DELAY", 1500*time.Millisecond),
		Log:           loadLogConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid widget configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required widget fields are set.
func (c *WidgetConfig) Validate() error {
	if c.RelayURL == "" {
		return fmt.Errorf("RELAY_URL cannot be empty")
	}
	if c.FrameID == "" {
		return fmt.Errorf("FRAME_ID is required")
	}
	if c.Origin == "" {
		return fmt.Errorf("WIDGET_URL cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	if c.TokenDBPath == "" {
		return fmt.Errorf("WIDGET_DB_PATH cannot be empty")
	}
	if c.Env != "" && c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	return nil
}

// DevFallback reports whether the widget may self-initialize without a host.
// Only an explicit APP_ENV=development enables it.
func (c *WidgetConfig) DevFallback() bool {
	return c.Env == EnvDevelopment
}
