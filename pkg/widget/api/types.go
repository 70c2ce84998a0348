package api

// Position is the screen corner the widget is anchored to. The widget is always
// bottom-anchored; only the horizontal side varies.
type Position string

const (
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// TenantConfig is the presentation config of one chatbot, as served by
// GET /api/widget/config/{tenantId}.
type TenantConfig struct {
	Name           string   `json:"name"`
	WelcomeMessage string   `json:"welcome_message"`
	PrimaryColor   string   `json:"primary_color"`
	HeaderColor    string   `json:"header_color"`
	BubbleColor    string   `json:"bubble_color"`
	TextColor      string   `json:"text_color"`
	IconURL        string   `json:"icon_url,omitempty"`
	Position       Position `json:"position"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse carries the assistant reply. SessionID is set only when the
// backend rotates the visitor's session.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id,omitempty"`
}

type UsageRequest struct {
	SessionID string `json:"session_id"`
}

type ReviewRequest struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	SessionID string `json:"session_id"`
}
