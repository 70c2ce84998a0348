package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/chatwidget/pkg/widget/embed"
	"github.com/go-go-golems/chatwidget/pkg/widget/identity"
	"github.com/go-go-golems/chatwidget/pkg/widget/lifecycle"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const appDir = ".chatwidget"

// bindFlags maps viper keys to flag names.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		cobra.CheckErr(viper.BindPFlag(key, fs.Lookup(name)))
	}
}

// appPath returns name inside the per-user chatwidget directory.
func appPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(appDir, name)
	}
	return filepath.Join(home, appDir, name)
}

func storageSettings() identity.Settings {
	s := identity.Settings{
		Kind:        viper.GetString("storage.kind"),
		Path:        viper.GetString("storage.path"),
		RedisAddr:   viper.GetString("storage.redis-addr"),
		RedisPrefix: viper.GetString("storage.redis-prefix"),
	}
	if s.Path == "" {
		switch strings.ToLower(s.Kind) {
		case identity.KindSQLite:
			s.Path = appPath("sessions.db")
		case "", identity.KindFile:
			s.Path = appPath("sessions.yaml")
		}
	}
	return s
}

func lifecycleSettings() lifecycle.Settings {
	return lifecycle.Settings{
		RedisEnabled: viper.GetBool("lifecycle.redis-enabled"),
		RedisAddr:    viper.GetString("lifecycle.redis-addr"),
		Topic:        viper.GetString("lifecycle.topic"),
	}
}

// resolveTarget works out which tenant to load and from where. An embed
// snippet (inline or @file) supplies both; explicit flags override it.
func resolveTarget(snippet, baseURL, tenantID string) (embed.Target, error) {
	var t embed.Target
	if snippet = strings.TrimSpace(snippet); snippet != "" {
		if strings.HasPrefix(snippet, "@") {
			b, err := os.ReadFile(strings.TrimPrefix(snippet, "@"))
			if err != nil {
				return t, errors.Wrap(err, "read embed snippet")
			}
			snippet = string(b)
		}
		parsed, err := embed.Parse(snippet)
		if err != nil {
			return t, err
		}
		t = parsed
	}
	if tenantID = strings.TrimSpace(tenantID); tenantID != "" {
		t.TenantID = tenantID
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		origin, err := embed.Origin(baseURL)
		if err != nil {
			return t, err
		}
		t.BaseURL = origin
	}
	if t.TenantID == "" {
		return t, errors.New("no chatbot id: pass --embed or --chatbot-id")
	}
	if t.BaseURL == "" {
		return t, errors.New("no base url: pass --embed or --base-url")
	}
	return t, nil
}
