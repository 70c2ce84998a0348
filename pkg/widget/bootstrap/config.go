package bootstrap

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
)

// Defaults mirror the values a chatbot is created with on the backend.
const (
	DefaultWelcomeMessage = "Hi! How can I help you today?"
	DefaultPrimaryColor   = "#4361EE"
	DefaultHeaderColor    = "#0A1929"
	DefaultBubbleColor    = "#4361EE"
	DefaultTextColor      = "#FFFFFF"
	DefaultName           = "Chat"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ConfigFetcher is the network half of the configuration loader.
type ConfigFetcher interface {
	LoadConfig(ctx context.Context, tenantID, sessionID string) (*api.TenantConfig, error)
}

// LoadConfig fetches and normalizes the tenant config with a single request.
func LoadConfig(ctx context.Context, f ConfigFetcher, tenantID, sessionID string) (api.TenantConfig, error) {
	cfg, err := f.LoadConfig(ctx, tenantID, sessionID)
	if err != nil {
		return api.TenantConfig{}, err
	}
	if cfg == nil {
		return api.TenantConfig{}, errors.New("empty widget config")
	}
	return Normalize(*cfg), nil
}

// Normalize fills unset or invalid fields with defaults.
func Normalize(cfg api.TenantConfig) api.TenantConfig {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if strings.TrimSpace(cfg.WelcomeMessage) == "" {
		cfg.WelcomeMessage = DefaultWelcomeMessage
	}
	cfg.PrimaryColor = color(cfg.PrimaryColor, DefaultPrimaryColor)
	cfg.HeaderColor = color(cfg.HeaderColor, DefaultHeaderColor)
	cfg.BubbleColor = color(cfg.BubbleColor, DefaultBubbleColor)
	cfg.TextColor = color(cfg.TextColor, DefaultTextColor)
	cfg.IconURL = strings.TrimSpace(cfg.IconURL)
	if cfg.Position != api.PositionBottomLeft {
		cfg.Position = api.PositionBottomRight
	}
	return cfg
}

func color(v, fallback string) string {
	v = strings.TrimSpace(v)
	if !hexColor.MatchString(v) {
		return fallback
	}
	return v
}
