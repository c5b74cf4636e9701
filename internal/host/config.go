// Package host implements the host-page side of the widget: it owns the
// embedded surface and answers the widget's handshake.
package host

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Position selects where the surface is anchored.
type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionCustom      Position = "custom"
)

const (
	DefaultWidgetURL = "https://link-coach.netlify.app"
	DefaultWidth     = "400px"
	DefaultHeight    = "600px"
	DefaultPosition  = PositionBottomRight
	DefaultZIndex    = 9999
	DefaultTheme     = "light"
)

// Config is the host-supplied widget configuration.
type Config struct {
	Token          string
	UserID         string
	LeadershipType string
	AssessmentData json.RawMessage

	WidgetURL string
	Container string
	Width     string
	Height    string
	Position  Position
	ZIndex    int
	Theme     string
}

// DefaultConfig returns the presentation defaults with no identity set.
func DefaultConfig() Config {
	return Config{
		WidgetURL: DefaultWidgetURL,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Position:  DefaultPosition,
		ZIndex:    DefaultZIndex,
		Theme:     DefaultTheme,
	}
}

// withDefaults fills every unset presentation field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WidgetURL == "" {
		c.WidgetURL = d.WidgetURL
	}
	if c.Width == "" {
		c.Width = d.Width
	}
	if c.Height == "" {
		c.Height = d.Height
	}
	if c.Position == "" {
		c.Position = d.Position
	}
	if c.ZIndex == 0 {
		c.ZIndex = d.ZIndex
	}
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	return c
}

// ConfigurationError reports missing required host configuration.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("link-coach: missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Attribute names read for declarative auto-initialization.
const (
	AttrAutoInit       = "data-auto-init"
	AttrToken          = "data-token"
	AttrUserID         = "data-user-id"
	AttrLeadershipType = "data-leadership-type"
	AttrContainer      = "data-container"
	AttrPosition       = "data-position"
)

// ConfigFromAttributes builds a config from the loader's declarative
// attributes. ok is false unless data-auto-init is "true".
func ConfigFromAttributes(attrs map[string]string) (cfg Config, ok bool) {
	if attrs[AttrAutoInit] != "true" {
		return Config{}, false
	}
	return Config{
		Token:          attrs[AttrToken],
		UserID:         attrs[AttrUserID],
		LeadershipType: attrs[AttrLeadershipType],
		Container:      attrs[AttrContainer],
		Position:       Position(attrs[AttrPosition]),
	}, true
}
