package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
	"github.com/go-go-golems/chatwidget/pkg/widget/usage"
)

type chatCall struct {
	tenantID, sessionID, text string
}

type fakeBackend struct {
	chats     []chatCall
	usage     []string
	reviews   []int
	reply     api.ChatResponse
	chatErr   error
	usageErr  error
	reviewErr error
}

func (f *fakeBackend) SendMessage(_ context.Context, tenantID, sessionID, text string) (*api.ChatResponse, error) {
	f.chats = append(f.chats, chatCall{tenantID, sessionID, text})
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	r := f.reply
	return &r, nil
}

func (f *fakeBackend) RecordUsage(_ context.Context, _, sessionID string) error {
	f.usage = append(f.usage, sessionID)
	return f.usageErr
}

func (f *fakeBackend) SubmitReview(_ context.Context, _, _ string, rating int, _ string) error {
	f.reviews = append(f.reviews, rating)
	return f.reviewErr
}

func newTestController(b *fakeBackend, opts ...Option) *Controller {
	n := 0
	ids := WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
	cfg := api.TenantConfig{Name: "Acme", WelcomeMessage: "Welcome to Acme!"}
	opts = append([]Option{ids, WithRatingCloseDelay(0)}, opts...)
	return New("abc123", "sess_xyz", cfg, b, usage.NewCoordinator(b), opts...)
}

// run executes tasks synchronously, feeding results back until quiescent.
func run(c *Controller, tasks []Task) {
	for len(tasks) > 0 {
		t := tasks[0]
		tasks = tasks[1:]
		tasks = append(tasks, c.Apply(t(context.Background()))...)
	}
}

func texts(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Typing {
			out = append(out, "<typing>")
			continue
		}
		out = append(out, string(m.Sender)+":"+m.Text)
	}
	return out
}

func TestOpen_WelcomeAppendedOnce(t *testing.T) {
	c := newTestController(&fakeBackend{})
	require.Equal(t, Closed, c.State())

	c.Open()
	require.Equal(t, Open, c.State())
	require.Equal(t, []string{"bot:Welcome to Acme!"}, texts(c.Snapshot().Messages))

	run(c, c.RequestClose())
	require.Equal(t, Closed, c.State())
	c.Open()
	require.Equal(t, []string{"bot:Welcome to Acme!"}, texts(c.Snapshot().Messages))
}

func TestOpen_IgnoredWhenAlreadyOpen(t *testing.T) {
	c := newTestController(&fakeBackend{})
	c.Open()
	c.Open()
	require.Len(t, c.Snapshot().Messages, 1)
}

func TestSend_Scenario(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "Hi there!"}}
	c := newTestController(b)
	c.Open()

	tasks := c.Send("hello")
	require.Len(t, tasks, 1)
	snap := c.Snapshot()
	require.Equal(t, []string{"bot:Welcome to Acme!", "user:hello", "<typing>"}, texts(snap.Messages))
	require.Equal(t, 1, snap.Pending)
	require.True(t, snap.Episode.HasVisitorMessage)

	run(c, tasks)
	require.Equal(t, []chatCall{{"abc123", "sess_xyz", "hello"}}, b.chats)
	snap = c.Snapshot()
	require.Equal(t, []string{"bot:Welcome to Acme!", "user:hello", "bot:Hi there!"}, texts(snap.Messages))
	require.Equal(t, 0, snap.Pending)
}

func TestSend_IgnoresBlankAndClosed(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "x"}}
	c := newTestController(b)
	require.Nil(t, c.Send("hello"))
	c.Open()
	require.Nil(t, c.Send("   "))
	require.False(t, c.Episode().HasVisitorMessage)
}

func TestSend_FailureAppendsSingleApology(t *testing.T) {
	b := &fakeBackend{chatErr: errors.New("connection refused")}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))

	require.Equal(t, Open, c.State())
	require.Equal(t, []string{"bot:Welcome to Acme!", "user:hello", "bot:" + ApologyMessage}, texts(c.Snapshot().Messages))
}

func TestSend_ConcurrentRepliesRemoveTheirOwnPlaceholder(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	c.Open()
	first := c.Send("one")
	second := c.Send("two")
	require.Equal(t, 2, c.Snapshot().Pending)

	// Replies arrive out of order.
	c.Apply(ReplyReceived{PlaceholderID: placeholderOf(t, second), Reply: "re two"})
	c.Apply(ReplyFailed{PlaceholderID: placeholderOf(t, first), Err: errors.New("x")})

	require.Equal(t, []string{"bot:Welcome to Acme!", "user:one", "user:two", "bot:re two", "bot:" + ApologyMessage},
		texts(c.Snapshot().Messages))
	require.Equal(t, 0, c.Snapshot().Pending)
}

func placeholderOf(t *testing.T, tasks []Task) string {
	t.Helper()
	require.Len(t, tasks, 1)
	ev := tasks[0](context.Background())
	switch e := ev.(type) {
	case ReplyReceived:
		return e.PlaceholderID
	case ReplyFailed:
		return e.PlaceholderID
	}
	t.Fatalf("unexpected event %T", ev)
	return ""
}

func TestSessionRotation_UsedForLaterRequests(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "ok", SessionID: "sess_rotated"}}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("first"))
	require.Equal(t, "sess_rotated", c.SessionID())

	b.reply = api.ChatResponse{Reply: "ok"}
	run(c, c.Send("second"))
	require.Equal(t, "sess_xyz", b.chats[0].sessionID)
	require.Equal(t, "sess_rotated", b.chats[1].sessionID)
	require.Equal(t, "sess_rotated", c.SessionID())
}

func TestClose_EmptyEpisodeClosesWithoutUsage(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	c.Open()
	tasks := c.RequestClose()
	require.Empty(t, tasks)
	require.Equal(t, Closed, c.State())
	require.Empty(t, b.usage)
}

func TestClose_NonEmptyEpisodePromptsRating(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))

	require.Empty(t, c.RequestClose())
	require.Equal(t, RatingPrompt, c.State())
	require.Equal(t, RatingPick, c.Snapshot().RatingPhase)
	require.Empty(t, b.usage)
}

func TestRating_ZeroRejectedWithoutNetwork(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()

	require.Nil(t, c.SubmitRating())
	require.Equal(t, RatingRequiredAlert, c.Snapshot().Alert)
	require.Equal(t, RatingPrompt, c.State())
	require.Empty(t, b.reviews)
	require.Empty(t, b.usage)

	c.SelectRating(3)
	require.Empty(t, c.Snapshot().Alert)
}

func TestRating_SubmitIssuesOneReviewAndOneUsage(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()
	c.SelectRating(5)
	c.SetComment("great")

	tasks := c.SubmitRating()
	require.Len(t, tasks, 1)
	require.Equal(t, RatingSubmitting, c.Snapshot().RatingPhase)

	// Apply the review result by hand to observe the confirmation phase.
	follow := c.Apply(tasks[0](context.Background()))
	require.Equal(t, RatingThanks, c.Snapshot().RatingPhase)
	require.Equal(t, RatingPrompt, c.State())
	require.True(t, c.Episode().Rated)
	require.Len(t, follow, 2)

	run(c, follow)
	require.Equal(t, Closed, c.State())
	require.Equal(t, []int{5}, b.reviews)
	require.Equal(t, []string{"sess_xyz"}, b.usage)
}

func TestRating_SkipIssuesOneUsageNoReview(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()

	run(c, c.SkipRating())
	require.Equal(t, Closed, c.State())
	require.Len(t, b.usage, 1)
	require.Empty(t, b.reviews)
}

func TestRating_FailureKeepsPanelOpenForRetry(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}, reviewErr: errors.New("500")}
	c := newTestController(b)
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()
	c.SelectRating(2)

	run(c, c.SubmitRating())
	snap := c.Snapshot()
	require.Equal(t, RatingPrompt, snap.State)
	require.Equal(t, RatingPick, snap.RatingPhase)
	require.Equal(t, RatingFailedAlert, snap.Alert)
	require.Equal(t, 2, snap.Rating)
	require.Empty(t, b.usage)

	b.reviewErr = nil
	run(c, c.SubmitRating())
	require.Equal(t, Closed, c.State())
	require.Equal(t, []int{2, 2}, b.reviews)
	require.Len(t, b.usage, 1)
}

func TestEpisode_ResetsOnlyAfterUsageRecorded(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}}
	c := newTestController(b)

	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()
	run(c, c.SkipRating())
	require.True(t, c.Episode().UsageRecorded)

	// Re-open starts a fresh episode; history stays.
	c.Open()
	require.Equal(t, Episode{}, c.Episode())
	require.Len(t, c.Snapshot().Messages, 3)

	// Closing the fresh, empty episode reports nothing.
	require.Empty(t, c.RequestClose())
	require.Equal(t, Closed, c.State())
	require.Len(t, b.usage, 1)

	// A second conversation is reported once more.
	c.Open()
	run(c, c.Send("again"))
	c.RequestClose()
	run(c, c.SkipRating())
	require.Len(t, b.usage, 2)
}

func TestUsage_FailureIsAbsorbed(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi"}, usageErr: errors.New("down")}
	var kinds []LifecycleKind
	c := newTestController(b, WithObserver(ObserverFunc(func(ev LifecycleEvent) { kinds = append(kinds, ev.Kind) })))
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()
	run(c, c.SkipRating())

	require.Equal(t, Closed, c.State())
	require.Len(t, b.usage, 1)
	require.Contains(t, kinds, LifecycleUsageFailed)
}

func TestObserver_SeesLifecycle(t *testing.T) {
	b := &fakeBackend{reply: api.ChatResponse{Reply: "hi", SessionID: "sess_2"}}
	var got []LifecycleEvent
	c := newTestController(b, WithObserver(ObserverFunc(func(ev LifecycleEvent) { got = append(got, ev) })))
	c.Open()
	run(c, c.Send("hello"))
	c.RequestClose()
	c.SelectRating(4)
	run(c, c.SubmitRating())

	var kinds []LifecycleKind
	for _, ev := range got {
		require.Equal(t, "abc123", ev.TenantID)
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []LifecycleKind{
		LifecycleOpened,
		LifecycleMessageSent,
		LifecycleReplyReceived,
		LifecycleSessionRotated,
		LifecycleRatingPrompted,
		LifecycleRatingSubmitted,
		LifecycleUsageRecorded,
		LifecycleClosed,
	}, kinds)
	require.Equal(t, "sess_2", got[len(got)-1].SessionID)
}

func TestCloseAfter_HonorsContext(t *testing.T) {
	c := newTestController(&fakeBackend{})
	task := c.closeAfter(DefaultRatingCloseDelay * 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, RatingCloseElapsed{}, task(ctx))
}
