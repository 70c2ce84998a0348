package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
)

const (
	DefaultPanelWidth = 48
	// bubbleRatio is the share of the panel width a message bubble may use.
	bubbleRatio = 0.8

	iconGlyph     = "◉"
	fallbackGlyph = "💬"
	poweredBy     = "Powered by WebChat AI"
	onlineLabel   = "● Online"
)

var (
	mutedColor   = lipgloss.Color("#94A3B8")
	botTextColor = lipgloss.Color("#1E293B")
	botBgColor   = lipgloss.Color("#FFFFFF")
	borderColor  = lipgloss.Color("#E2E8F0")
	onlineColor  = lipgloss.Color("#05CD99")
	alertColor   = lipgloss.Color("196")
	starColor    = lipgloss.Color("#FBBF24")
)

// Surfaces holds the trigger, conversation panel and rating panel built from a
// tenant config. It is created once per widget; views are re-rendered from
// controller snapshots without rebuilding any style.
type Surfaces struct {
	cfg   api.TenantConfig
	width int

	trigger string
	header  string

	panel      lipgloss.Style
	userBubble lipgloss.Style
	botBubble  lipgloss.Style
	typing     lipgloss.Style
	input      lipgloss.Style
	footer     lipgloss.Style
	rating     lipgloss.Style
	starOn     lipgloss.Style
	starOff    lipgloss.Style
	alert      lipgloss.Style
	hint       lipgloss.Style

	useMarkdown bool
	markdown    *glamour.TermRenderer
}

type Option func(*Surfaces)

func WithPanelWidth(w int) Option {
	return func(s *Surfaces) {
		if w >= 24 {
			s.width = w
		}
	}
}

// WithMarkdown renders assistant replies as markdown.
func WithMarkdown(enabled bool) Option {
	return func(s *Surfaces) { s.useMarkdown = enabled }
}

func NewSurfaces(cfg api.TenantConfig, opts ...Option) *Surfaces {
	s := &Surfaces{cfg: cfg, width: DefaultPanelWidth}
	for _, opt := range opts {
		opt(s)
	}
	if s.useMarkdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(int(float64(s.width)*bubbleRatio)-4),
		)
		if err != nil {
			log.Warn().Err(err).Str("component", "render").Msg("markdown renderer unavailable, using plain text")
		} else {
			s.markdown = r
		}
	}

	primary := lipgloss.Color(cfg.PrimaryColor)
	header := lipgloss.Color(cfg.HeaderColor)
	bubble := lipgloss.Color(cfg.BubbleColor)
	text := lipgloss.Color(cfg.TextColor)
	bubbleWidth := int(float64(s.width) * bubbleRatio)

	s.panel = lipgloss.NewStyle().Width(s.width).Border(lipgloss.RoundedBorder()).BorderForeground(borderColor)
	s.userBubble = lipgloss.NewStyle().Background(bubble).Foreground(text).Padding(0, 2).MaxWidth(bubbleWidth)
	s.botBubble = lipgloss.NewStyle().Background(botBgColor).Foreground(botTextColor).Padding(0, 2).MaxWidth(bubbleWidth)
	s.typing = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 2)
	s.input = lipgloss.NewStyle().Width(s.width).Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(primary)
	s.footer = lipgloss.NewStyle().Width(s.width).Align(lipgloss.Center).Foreground(mutedColor)
	s.rating = lipgloss.NewStyle().Width(s.width).Border(lipgloss.DoubleBorder()).BorderForeground(primary).Padding(1, 2)
	s.starOn = lipgloss.NewStyle().Foreground(starColor).Bold(true)
	s.starOff = lipgloss.NewStyle().Foreground(mutedColor)
	s.alert = lipgloss.NewStyle().Foreground(alertColor).Bold(true)
	s.hint = lipgloss.NewStyle().Foreground(mutedColor)

	glyph := fallbackGlyph
	if cfg.IconURL != "" {
		glyph = iconGlyph
	}
	s.trigger = lipgloss.NewStyle().
		Background(primary).
		Foreground(text).
		Bold(true).
		Padding(1, 3).
		Render(glyph + "  " + cfg.Name)

	avatar := lipgloss.NewStyle().Background(primary).Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Padding(0, 1).
		Render(Initial(cfg.Name))
	info := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(text).Render(cfg.Name),
		lipgloss.NewStyle().Foreground(onlineColor).Render(onlineLabel),
	)
	closeHint := lipgloss.NewStyle().Foreground(text).Render("esc ×")
	left := lipgloss.JoinHorizontal(lipgloss.Center, avatar, " ", info)
	gap := s.width - lipgloss.Width(left) - lipgloss.Width(closeHint) - 2
	if gap < 1 {
		gap = 1
	}
	s.header = lipgloss.NewStyle().Background(header).Foreground(text).Width(s.width).Padding(0, 1).
		Render(lipgloss.JoinHorizontal(lipgloss.Center, left, strings.Repeat(" ", gap), closeHint))

	return s
}

// Initial is the upper-cased first letter of the tenant name, shown as the
// avatar when the tenant has no icon.
func Initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

func (s *Surfaces) Width() int { return s.width }

func (s *Surfaces) Position() api.Position { return s.cfg.Position }

// Trigger is the floating button shown while the widget is closed.
func (s *Surfaces) Trigger() string { return s.trigger }

// Messages renders the conversation list. typingFrame animates placeholders.
func (s *Surfaces) Messages(msgs []controller.Message, typingFrame string) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, s.message(m, typingFrame))
	}
	return strings.Join(lines, "\n\n")
}

func (s *Surfaces) message(m controller.Message, typingFrame string) string {
	row := lipgloss.NewStyle().Width(s.width - 2)
	if m.Typing {
		if typingFrame == "" {
			typingFrame = "• • •"
		}
		return row.Align(lipgloss.Left).Render(s.typing.Render(typingFrame))
	}
	if m.Sender == controller.SenderVisitor {
		return row.Align(lipgloss.Right).Render(s.userBubble.Render(m.Text))
	}
	text := m.Text
	if s.markdown != nil {
		if out, err := s.markdown.Render(text); err == nil {
			text = strings.Trim(out, "\n")
		}
	}
	return row.Align(lipgloss.Left).Render(s.botBubble.Render(text))
}

// Panel composes the conversation panel around an already rendered message
// list and input line.
func (s *Surfaces) Panel(messages, input string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		s.header,
		messages,
		s.input.Render(input),
		s.footer.Render(poweredBy),
	)
	return s.panel.Render(body)
}

// RatingPanel renders the rating overlay for the current snapshot.
func (s *Surfaces) RatingPanel(snap controller.Snapshot, comment string) string {
	var body string
	switch snap.RatingPhase {
	case controller.RatingThanks:
		body = lipgloss.JoinVertical(lipgloss.Center,
			s.starOn.Render("✓"),
			"Thank you for your feedback!",
		)
	default:
		parts := []string{
			lipgloss.NewStyle().Bold(true).Render("How was your experience?"),
			"",
			s.Stars(snap.Rating),
			"",
			comment,
			"",
		}
		if snap.RatingPhase == controller.RatingSubmitting {
			parts = append(parts, s.hint.Render("Submitting…"))
		} else {
			parts = append(parts, s.hint.Render("1-5 / ←→ rate · tab comment · enter submit · esc skip"))
		}
		if snap.Alert != "" {
			parts = append(parts, "", s.Alert(snap.Alert))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, parts...)
	}
	return s.rating.Render(body)
}

func (s *Surfaces) Stars(rating int) string {
	var b strings.Builder
	for i := 1; i <= 5; i++ {
		if i > 1 {
			b.WriteString(" ")
		}
		if i <= rating {
			b.WriteString(s.starOn.Render("★"))
		} else {
			b.WriteString(s.starOff.Render("☆"))
		}
	}
	return b.String()
}

func (s *Surfaces) Alert(msg string) string {
	return s.alert.Render("! " + msg)
}

// Place anchors content to the bottom corner named by the tenant position.
func (s *Surfaces) Place(termWidth, termHeight int, content string) string {
	if termWidth <= 0 || termHeight <= 0 {
		return content
	}
	h := lipgloss.Right
	if s.cfg.Position == api.PositionBottomLeft {
		h = lipgloss.Left
	}
	return lipgloss.Place(termWidth, termHeight, h, lipgloss.Bottom, content)
}
