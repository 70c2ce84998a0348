package devbackend

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
)

// TenantFixture is one chatbot served by the dev backend.
type TenantFixture struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	WelcomeMessage string `yaml:"welcome_message"`
	PrimaryColor   string `yaml:"primary_color"`
	HeaderColor    string `yaml:"header_color"`
	BubbleColor    string `yaml:"bubble_color"`
	TextColor      string `yaml:"text_color"`
	IconURL        string `yaml:"icon_url"`
	Position       string `yaml:"position"`
	// Replies maps exact visitor messages to canned answers.
	Replies map[string]string `yaml:"replies"`
}

type Fixtures struct {
	Tenants []TenantFixture `yaml:"tenants"`
}

func (t TenantFixture) Config() api.TenantConfig {
	return api.TenantConfig{
		Name:           t.Name,
		WelcomeMessage: t.WelcomeMessage,
		PrimaryColor:   t.PrimaryColor,
		HeaderColor:    t.HeaderColor,
		BubbleColor:    t.BubbleColor,
		TextColor:      t.TextColor,
		IconURL:        t.IconURL,
		Position:       api.Position(t.Position),
	}
}

// LoadFixtures reads tenant fixtures from a YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixtures")
	}
	return ParseFixtures(b)
}

func ParseFixtures(b []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	for i, t := range f.Tenants {
		if t.ID == "" {
			return nil, errors.Errorf("tenant #%d has no id", i)
		}
	}
	return &f, nil
}

// DefaultFixtures is served when no fixture file is given.
func DefaultFixtures() *Fixtures {
	return &Fixtures{Tenants: []TenantFixture{{
		ID:             "demo",
		Name:           "Demo Assistant",
		WelcomeMessage: "Hi! How can I help you today?",
		PrimaryColor:   "#4361EE",
		HeaderColor:    "#0A1929",
		BubbleColor:    "#4361EE",
		TextColor:      "#FFFFFF",
		Position:       string(api.PositionBottomRight),
		Replies: map[string]string{
			"hello": "Hi there!",
		},
	}}}
}
