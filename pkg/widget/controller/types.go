package controller

import (
	"context"
	"time"
)

// State is the visible mode of the widget.
type State int

const (
	// Closed shows only the trigger.
	Closed State = iota
	// Open shows the conversation panel.
	Open
	// RatingPrompt overlays the rating panel on the conversation panel.
	RatingPrompt
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case RatingPrompt:
		return "rating-prompt"
	default:
		return "unknown"
	}
}

// RatingPhase is the content of the rating panel while in RatingPrompt.
type RatingPhase int

const (
	RatingPick RatingPhase = iota
	RatingSubmitting
	RatingThanks
)

type Sender string

const (
	SenderVisitor   Sender = "user"
	SenderAssistant Sender = "bot"
)

// Message is one entry of the conversation list. Typing entries are the
// placeholders shown while an exchange is in flight.
type Message struct {
	ID     string
	Sender Sender
	Text   string
	Typing bool
}

// Episode tracks one open-to-close cycle for usage and rating decisions.
type Episode struct {
	HasVisitorMessage bool
	Rated             bool
	UsageRecorded     bool
}

// Task is detached work started by a transition. The host runs it off the UI
// loop and hands the returned Event back to Controller.Apply.
type Task func(ctx context.Context) Event

// Event is the completion of a Task.
type Event interface {
	isEvent()
}

type ReplyReceived struct {
	PlaceholderID string
	Reply         string
	SessionID     string
}

type ReplyFailed struct {
	PlaceholderID string
	Err           error
}

type UsageRecorded struct {
	SessionID string
	Err       error
}

type RatingSubmitted struct {
	Rating int
	Err    error
}

type RatingCloseElapsed struct{}

func (ReplyReceived) isEvent()      {}
func (ReplyFailed) isEvent()        {}
func (UsageRecorded) isEvent()      {}
func (RatingSubmitted) isEvent()    {}
func (RatingCloseElapsed) isEvent() {}

// LifecycleKind names an observable step of the widget.
type LifecycleKind string

const (
	LifecycleOpened          LifecycleKind = "episode.opened"
	LifecycleClosed          LifecycleKind = "episode.closed"
	LifecycleMessageSent     LifecycleKind = "message.sent"
	LifecycleReplyReceived   LifecycleKind = "message.reply"
	LifecycleReplyFailed     LifecycleKind = "message.failed"
	LifecycleSessionRotated  LifecycleKind = "session.rotated"
	LifecycleUsageRecorded   LifecycleKind = "usage.recorded"
	LifecycleUsageFailed     LifecycleKind = "usage.failed"
	LifecycleRatingPrompted  LifecycleKind = "rating.prompted"
	LifecycleRatingSubmitted LifecycleKind = "rating.submitted"
	LifecycleRatingFailed    LifecycleKind = "rating.failed"
	LifecycleRatingSkipped   LifecycleKind = "rating.skipped"
)

type LifecycleEvent struct {
	Kind      LifecycleKind `json:"kind"`
	TenantID  string        `json:"tenant_id"`
	SessionID string        `json:"session_id"`
	Rating    int           `json:"rating,omitempty"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
}

// Observer receives lifecycle events synchronously on the UI loop.
// Implementations must not block.
type Observer interface {
	Observe(ev LifecycleEvent)
}

type ObserverFunc func(ev LifecycleEvent)

func (f ObserverFunc) Observe(ev LifecycleEvent) { f(ev) }

// Snapshot is a read-only copy of the controller state for rendering.
type Snapshot struct {
	State       State
	Messages    []Message
	RatingPhase RatingPhase
	Rating      int
	Comment     string
	Alert       string
	SessionID   string
	Pending     int
	Episode     Episode
}
