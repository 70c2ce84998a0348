package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fatih/color"
	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
	"github.com/stretchr/testify/require"
)

func TestFormatEvent(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	at := time.Date(2026, 1, 2, 10, 4, 5, 0, time.UTC)
	line := formatEvent(controller.LifecycleEvent{
		Kind:      controller.LifecycleRatingSubmitted,
		TenantID:  "abc123",
		SessionID: "sess_xyz",
		Rating:    4,
		At:        at,
	})
	require.Equal(t, "10:04:05.000 rating.submitted   tenant=abc123 session=sess_xyz rating=4", line)

	line = formatEvent(controller.LifecycleEvent{
		Kind:     controller.LifecycleReplyFailed,
		TenantID: "abc123",
		Error:    "boom",
		At:       at,
	})
	require.Contains(t, line, `error="boom"`)
}

func eventMessage(t *testing.T, ev controller.LifecycleEvent) *message.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return message.NewMessage(string(ev.Kind)+"-"+ev.TenantID, b)
}

func TestCollectEvents_FilterAndLimit(t *testing.T) {
	msgs := make(chan *message.Message, 4)
	msgs <- eventMessage(t, controller.LifecycleEvent{Kind: controller.LifecycleOpened, TenantID: "other"})
	msgs <- message.NewMessage("bad", []byte("{not json"))
	msgs <- eventMessage(t, controller.LifecycleEvent{Kind: controller.LifecycleOpened, TenantID: "abc123"})
	msgs <- eventMessage(t, controller.LifecycleEvent{Kind: controller.LifecycleClosed, TenantID: "abc123"})

	var got []controller.LifecycleKind
	err := collectEvents(context.Background(), msgs, "abc123", 1, time.Second, func(ev controller.LifecycleEvent) error {
		got = append(got, ev.Kind)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []controller.LifecycleKind{controller.LifecycleOpened}, got)
}

func TestCollectEvents_StopsWhenIdle(t *testing.T) {
	msgs := make(chan *message.Message, 1)
	msgs <- eventMessage(t, controller.LifecycleEvent{Kind: controller.LifecycleOpened, TenantID: "abc123"})

	n := 0
	start := time.Now()
	err := collectEvents(context.Background(), msgs, "", 0, 20*time.Millisecond, func(controller.LifecycleEvent) error {
		n++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Less(t, time.Since(start), time.Second)
}

func TestEventRow(t *testing.T) {
	row := eventRow(controller.LifecycleEvent{
		Kind:      controller.LifecycleRatingSubmitted,
		TenantID:  "abc123",
		SessionID: "sess_xyz",
		Rating:    4,
		At:        time.Date(2026, 1, 2, 10, 4, 5, 0, time.UTC),
	})
	kind, ok := row.Get("kind")
	require.True(t, ok)
	require.Equal(t, "rating.submitted", kind)
	rating, _ := row.Get("rating")
	require.Equal(t, 4, rating)
}
