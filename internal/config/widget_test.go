package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadWidget(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("FRAME_ID", "frame-7")
	t.Setenv("HOST_ORIGINS", "https://customer.example.com, http://localhost:5173")
	t.Setenv("DEV_FALLBACK_DELAY", "2s")
	t.Setenv("RELAY_URL", "")
	t.Setenv("WIDGET_URL", "https://widget.example.com")

	_, err := LoadWidget()
	if err == nil || !strings.Contains(err.Error(), "RELAY_URL") {
		t.Fatalf("LoadWidget = %v, want RELAY_URL error", err)
	}

	t.Setenv("RELAY_URL", "wss://coach.example.com/ws/frame")
	cfg, err := LoadWidget()
	if err != nil {
		t.Fatalf("LoadWidget: %v", err)
	}
	if !cfg.DevFallback() {
		t.Error("APP_ENV=development should enable the fallback")
	}
	if cfg.FallbackDelay != 2*time.Second || cfg.FrameID != "frame-7" || cfg.Origin != "https://widget.example.com" {
		t.Errorf("cfg = %+v", cfg)
	}
	want := []string{"https://customer.example.com", "http://localhost:5173"}
	if diff := cmp.Diff(want, cfg.HostOrigins); diff != "" {
		t.Errorf("host origins mismatch (-want +got):\n%s", diff)
	}
}

func TestWidgetConfigValidate(t *testing.T) {
	t.Parallel()
	valid := func() WidgetConfig {
		return WidgetConfig{
			RelayURL:    "ws://x/ws/frame",
			FrameID:     "f",
			Origin:      "https://w.example.com",
			BackendURL:  "http://x",
			TokenDBPath: "./w.db",
		}
	}
	tests := []struct {
		name    string
		mutate  func(*WidgetConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*WidgetConfig) {}},
		{name: "no frame", mutate: func(c *WidgetConfig) { c.FrameID = "" }, wantErr: "FRAME_ID"},
		{name: "no backend", mutate: func(c *WidgetConfig) { c.BackendURL = "" }, wantErr: "BACKEND_URL"},
		{name: "bad env", mutate: func(c *WidgetConfig) { c.Env = "qa" }, wantErr: "APP_ENV"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if c.DevFallback() {
					t.Error("fallback enabled without APP_ENV=development")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %s", err, tc.wantErr)
			}
		})
	}
}
