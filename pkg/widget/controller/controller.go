package controller

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
	"github.com/go-go-golems/chatwidget/pkg/widget/usage"
)

const (
	ApologyMessage      = "Sorry, something went wrong. Please try again."
	RatingRequiredAlert = "Please select a rating before submitting."
	RatingFailedAlert   = "Failed to submit your rating. Please try again."

	DefaultRatingCloseDelay = 2 * time.Second
)

// Exchanger sends one visitor message and returns the assistant reply.
type Exchanger interface {
	SendMessage(ctx context.Context, tenantID, sessionID, text string) (*api.ChatResponse, error)
}

// UsageRating records usage and submits ratings.
type UsageRating interface {
	RecordUsage(ctx context.Context, tenantID, sessionID string) error
	SubmitRating(ctx context.Context, tenantID, sessionID string, rating int, comment string) error
}

// Controller owns the widget state machine. It is confined to a single UI
// loop: every method must be called from that loop, and Tasks it returns run
// elsewhere and report back through Apply.
type Controller struct {
	tenantID    string
	sessionID   string
	cfg         api.TenantConfig
	exchanger   Exchanger
	coordinator UsageRating
	observer    Observer
	closeDelay  time.Duration
	newID       func() string
	now         func() time.Time
	logger      zerolog.Logger

	state       State
	messages    []Message
	pending     int
	episode     Episode
	ratingPhase RatingPhase
	rating      int
	comment     string
	alert       string
}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithRatingCloseDelay sets how long the rating confirmation stays visible.
func WithRatingCloseDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.closeDelay = d
		}
	}
}

func WithIDGenerator(f func() string) Option {
	return func(c *Controller) {
		if f != nil {
			c.newID = f
		}
	}
}

func New(tenantID, sessionID string, cfg api.TenantConfig, ex Exchanger, co UsageRating, opts ...Option) *Controller {
	c := &Controller{
		tenantID:    tenantID,
		sessionID:   sessionID,
		cfg:         cfg,
		exchanger:   ex,
		coordinator: co,
		closeDelay:  DefaultRatingCloseDelay,
		newID:       uuid.NewString,
		now:         time.Now,
		state:       Closed,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.With().Str("component", "controller").Str("tenant", tenantID).Logger()
	return c
}

func (c *Controller) State() State { return c.state }

// SessionID is the identifier used for the next request. It differs from the
// persisted one after a backend rotation.
func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) TenantID() string { return c.tenantID }

func (c *Controller) Episode() Episode { return c.episode }

func (c *Controller) Config() api.TenantConfig { return c.cfg }

// Snapshot copies the state needed to draw the widget.
func (c *Controller) Snapshot() Snapshot {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		State:       c.state,
		Messages:    msgs,
		RatingPhase: c.ratingPhase,
		Rating:      c.rating,
		Comment:     c.comment,
		Alert:       c.alert,
		SessionID:   c.sessionID,
		Pending:     c.pending,
		Episode:     c.episode,
	}
}

// Open reveals the conversation panel. The welcome message is added the first
// time the list is populated. If the previous episode was already reported,
// a fresh episode starts.
func (c *Controller) Open() {
	if c.state != Closed {
		return
	}
	if c.episode.UsageRecorded {
		c.episode = Episode{}
	}
	c.state = Open
	c.alert = ""
	if len(c.messages) == 0 {
		c.appendMessage(SenderAssistant, c.cfg.WelcomeMessage)
	}
	c.emit(LifecycleEvent{Kind: LifecycleOpened})
}

// RequestClose handles the close action of the conversation panel. An empty
// or already rated episode closes directly; otherwise the rating panel is
// shown.
func (c *Controller) RequestClose() []Task {
	if c.state != Open {
		return nil
	}
	if c.episode.Rated || !c.episode.HasVisitorMessage {
		c.state = Closed
		c.resetRatingPanel()
		c.emit(LifecycleEvent{Kind: LifecycleClosed})
		return c.tasks(c.recordUsage())
	}
	c.state = RatingPrompt
	c.resetRatingPanel()
	c.emit(LifecycleEvent{Kind: LifecycleRatingPrompted})
	return nil
}

// Send appends the visitor message and a typing placeholder, and returns the
// exchange task. Blank text and sends outside Open are ignored.
func (c *Controller) Send(text string) []Task {
	text = strings.TrimSpace(text)
	if c.state != Open || text == "" {
		return nil
	}
	c.appendMessage(SenderVisitor, text)
	c.episode.HasVisitorMessage = true

	placeholder := c.newID()
	c.messages = append(c.messages, Message{ID: placeholder, Sender: SenderAssistant, Typing: true})
	c.pending++
	c.emit(LifecycleEvent{Kind: LifecycleMessageSent})

	tenantID, sessionID, ex := c.tenantID, c.sessionID, c.exchanger
	return []Task{func(ctx context.Context) Event {
		resp, err := ex.SendMessage(ctx, tenantID, sessionID, text)
		if err != nil {
			return ReplyFailed{PlaceholderID: placeholder, Err: err}
		}
		return ReplyReceived{PlaceholderID: placeholder, Reply: resp.Reply, SessionID: resp.SessionID}
	}}
}

// SelectRating sets the star value shown in the rating panel.
func (c *Controller) SelectRating(n int) {
	if c.state != RatingPrompt || c.ratingPhase != RatingPick {
		return
	}
	if n < 0 {
		n = 0
	}
	if n > usage.MaxRating {
		n = usage.MaxRating
	}
	c.rating = n
	c.alert = ""
}

func (c *Controller) SetComment(s string) {
	if c.state != RatingPrompt || c.ratingPhase != RatingPick {
		return
	}
	c.comment = s
}

func (c *Controller) DismissAlert() {
	c.alert = ""
}

// SkipRating closes the rating panel and reports the episode.
func (c *Controller) SkipRating() []Task {
	if c.state != RatingPrompt || c.ratingPhase != RatingPick {
		return nil
	}
	c.state = Closed
	c.resetRatingPanel()
	c.emit(LifecycleEvent{Kind: LifecycleRatingSkipped})
	c.emit(LifecycleEvent{Kind: LifecycleClosed})
	return c.tasks(c.recordUsage())
}

// SubmitRating starts the review request. Without a selected star it only
// raises an alert.
func (c *Controller) SubmitRating() []Task {
	if c.state != RatingPrompt || c.ratingPhase != RatingPick {
		return nil
	}
	if err := usage.ValidateRating(c.rating); err != nil {
		c.alert = RatingRequiredAlert
		return nil
	}
	c.ratingPhase = RatingSubmitting
	c.alert = ""

	tenantID, sessionID, co := c.tenantID, c.sessionID, c.coordinator
	rating, comment := c.rating, c.comment
	return []Task{func(ctx context.Context) Event {
		return RatingSubmitted{Rating: rating, Err: co.SubmitRating(ctx, tenantID, sessionID, rating, comment)}
	}}
}

// Apply folds a task completion back into the state machine.
func (c *Controller) Apply(ev Event) []Task {
	switch e := ev.(type) {
	case ReplyReceived:
		c.removePlaceholder(e.PlaceholderID)
		c.appendMessage(SenderAssistant, e.Reply)
		c.emit(LifecycleEvent{Kind: LifecycleReplyReceived})
		if e.SessionID != "" && e.SessionID != c.sessionID {
			// The rotated id is used from now on but not written back to storage.
			c.logger.Debug().Str("from", c.sessionID).Str("to", e.SessionID).Msg("session rotated by backend")
			c.sessionID = e.SessionID
			c.emit(LifecycleEvent{Kind: LifecycleSessionRotated})
		}
	case ReplyFailed:
		c.logger.Warn().Err(e.Err).Msg("message exchange failed")
		c.removePlaceholder(e.PlaceholderID)
		c.appendMessage(SenderAssistant, ApologyMessage)
		c.emit(LifecycleEvent{Kind: LifecycleReplyFailed, Error: errString(e.Err)})
	case UsageRecorded:
		if e.Err != nil {
			c.emit(LifecycleEvent{Kind: LifecycleUsageFailed, SessionID: e.SessionID, Error: e.Err.Error()})
		} else {
			c.emit(LifecycleEvent{Kind: LifecycleUsageRecorded, SessionID: e.SessionID})
		}
	case RatingSubmitted:
		if c.state != RatingPrompt || c.ratingPhase != RatingSubmitting {
			return nil
		}
		if e.Err != nil {
			c.ratingPhase = RatingPick
			c.alert = RatingFailedAlert
			c.emit(LifecycleEvent{Kind: LifecycleRatingFailed, Rating: e.Rating, Error: e.Err.Error()})
			return nil
		}
		c.episode.Rated = true
		c.ratingPhase = RatingThanks
		c.emit(LifecycleEvent{Kind: LifecycleRatingSubmitted, Rating: e.Rating})
		return c.tasks(c.recordUsage(), c.closeAfter(c.closeDelay))
	case RatingCloseElapsed:
		if c.state == RatingPrompt && c.ratingPhase == RatingThanks {
			c.state = Closed
			c.resetRatingPanel()
			c.emit(LifecycleEvent{Kind: LifecycleClosed})
		}
	}
	return nil
}

// recordUsage returns the usage task for the current episode, or nil if the
// episode is empty or was already reported.
func (c *Controller) recordUsage() Task {
	if !c.episode.HasVisitorMessage || c.episode.UsageRecorded {
		return nil
	}
	c.episode.UsageRecorded = true
	tenantID, sessionID, co := c.tenantID, c.sessionID, c.coordinator
	return func(ctx context.Context) Event {
		return UsageRecorded{SessionID: sessionID, Err: co.RecordUsage(ctx, tenantID, sessionID)}
	}
}

func (c *Controller) closeAfter(d time.Duration) Task {
	return func(ctx context.Context) Event {
		if d <= 0 {
			return RatingCloseElapsed{}
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return RatingCloseElapsed{}
	}
}

func (c *Controller) tasks(ts ...Task) []Task {
	var out []Task
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (c *Controller) appendMessage(sender Sender, text string) {
	c.messages = append(c.messages, Message{ID: c.newID(), Sender: sender, Text: text})
}

func (c *Controller) removePlaceholder(id string) {
	for i, m := range c.messages {
		if m.ID == id && m.Typing {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			c.pending--
			return
		}
	}
}

func (c *Controller) resetRatingPanel() {
	c.ratingPhase = RatingPick
	c.rating = 0
	c.comment = ""
	c.alert = ""
}

func (c *Controller) emit(ev LifecycleEvent) {
	if c.observer == nil {
		return
	}
	ev.TenantID = c.tenantID
	if ev.SessionID == "" {
		ev.SessionID = c.sessionID
	}
	ev.At = c.now()
	c.observer.Observe(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
