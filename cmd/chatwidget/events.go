package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fatih/color"
	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
	"github.com/go-go-golems/chatwidget/pkg/widget/lifecycle"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect widget lifecycle events published to Redis Streams",
}

func addEventsCommands(root *cobra.Command) {
	listCmd, err := NewEventsListCommand()
	cobra.CheckErr(err)
	cobraListCmd, err := cli.BuildCobraCommand(listCmd)
	cobra.CheckErr(err)

	eventsCmd.AddCommand(cobraListCmd, newEventsTailCommand())
	root.AddCommand(eventsCmd)
}

func eventsSettings() lifecycle.Settings {
	s := lifecycleSettings()
	if s.Topic == "" {
		s.Topic = lifecycle.DefaultTopic
	}
	return s
}

type EventsListCommand struct {
	*cmds.CommandDescription
}

type EventsListSettings struct {
	ChatbotID   string `glazed:"chatbot-id"`
	Group       string `glazed:"group"`
	FromStart   bool   `glazed:"from-start"`
	Limit       int    `glazed:"limit"`
	IdleSeconds int    `glazed:"idle-seconds"`
}

func NewEventsListCommand() (*EventsListCommand, error) {
	glazedLayer, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsLayer, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"list",
		cmds.WithShort("List lifecycle events as rows"),
		cmds.WithLong(`List lifecycle events as rows.

Reading stops after --limit events or once no event arrived for --idle-seconds.
Without --group every run uses a fresh consumer group, so --from-start replays
the whole stream.`),
		cmds.WithFlags(
			fields.New(
				"chatbot-id",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only list events of this tenant"),
			),
			fields.New(
				"group",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Redis consumer group (default: a fresh one per run)"),
			),
			fields.New(
				"from-start",
				fields.TypeBool,
				fields.WithDefault(true),
				fields.WithHelp("Read the stream from its first entry"),
			),
			fields.New(
				"limit",
				fields.TypeInteger,
				fields.WithDefault(100),
				fields.WithHelp("Stop after this many events (0 = no limit)"),
			),
			fields.New(
				"idle-seconds",
				fields.TypeInteger,
				fields.WithDefault(2),
				fields.WithHelp("Stop when no event arrives for this long (0 = wait for ctrl-c)"),
			),
		),
		cmds.WithSections(glazedLayer, commandSettingsLayer),
	)

	return &EventsListCommand{CommandDescription: desc}, nil
}

func (c *EventsListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &EventsListSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	ls := eventsSettings()
	group := s.Group
	if group == "" {
		group = "chatwidget-list-" + uuid.NewString()[:8]
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := lifecycle.NewRedisSubscriber(ls.RedisAddr, group, "list", s.FromStart)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	msgs, err := sub.Subscribe(ctx, ls.Topic)
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	idle := time.Duration(s.IdleSeconds) * time.Second
	return collectEvents(ctx, msgs, s.ChatbotID, s.Limit, idle, func(ev controller.LifecycleEvent) error {
		return gp.AddRow(ctx, eventRow(ev))
	})
}

var _ cmds.GlazeCommand = &EventsListCommand{}

func eventRow(ev controller.LifecycleEvent) types.Row {
	return types.NewRow(
		types.MRP("at", ev.At.Format(time.RFC3339Nano)),
		types.MRP("kind", string(ev.Kind)),
		types.MRP("chatbot_id", ev.TenantID),
		types.MRP("session_id", ev.SessionID),
		types.MRP("rating", ev.Rating),
		types.MRP("error", ev.Error),
	)
}

// collectEvents acks and decodes messages and hands matching events to emit.
// It returns after limit events, after idle without a message, or when msgs
// closes. Malformed payloads are skipped.
func collectEvents(
	ctx context.Context,
	msgs <-chan *message.Message,
	tenantID string,
	limit int,
	idle time.Duration,
	emit func(controller.LifecycleEvent) error,
) error {
	var idleC <-chan time.Time
	var timer *time.Timer
	if idle > 0 {
		timer = time.NewTimer(idle)
		defer timer.Stop()
		idleC = timer.C
	}

	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idleC:
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			ev, err := lifecycle.Decode(msg)
			msg.Ack()
			if timer != nil {
				timer.Reset(idle)
			}
			if err != nil {
				log.Warn().Err(err).Str("uuid", msg.UUID).Msg("skipping malformed event")
				continue
			}
			if tenantID != "" && ev.TenantID != tenantID {
				continue
			}
			if err := emit(ev); err != nil {
				return err
			}
			n++
			if limit > 0 && n >= limit {
				return nil
			}
		}
	}
}

// newEventsTailCommand follows the stream and prints each event as it
// arrives. Glazed rows are rendered once the command returns, which never
// happens for an open-ended follow, so tail writes colored lines itself.
func newEventsTailCommand() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow lifecycle events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			ls := eventsSettings()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub, err := lifecycle.NewRedisSubscriber(ls.RedisAddr, group, "tail-"+uuid.NewString()[:8], false)
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()

			msgs, err := sub.Subscribe(ctx, ls.Topic)
			if err != nil {
				return errors.Wrap(err, "subscribe")
			}
			out := cmd.OutOrStdout()
			return collectEvents(ctx, msgs, "", 0, 0, func(ev controller.LifecycleEvent) error {
				_, err := fmt.Fprintln(out, formatEvent(ev))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "chatwidget-events", "Redis consumer group")
	return cmd
}

var (
	failColor   = color.New(color.FgRed)
	ratingColor = color.New(color.FgYellow)
	openColor   = color.New(color.FgGreen)
	plainColor  = color.New(color.FgCyan)
)

func formatEvent(ev controller.LifecycleEvent) string {
	c := plainColor
	switch ev.Kind {
	case controller.LifecycleReplyFailed, controller.LifecycleUsageFailed, controller.LifecycleRatingFailed:
		c = failColor
	case controller.LifecycleRatingPrompted, controller.LifecycleRatingSubmitted, controller.LifecycleRatingSkipped:
		c = ratingColor
	case controller.LifecycleOpened, controller.LifecycleClosed:
		c = openColor
	}
	line := fmt.Sprintf("%s %s tenant=%s session=%s",
		ev.At.Format("15:04:05.000"), c.Sprintf("%-18s", ev.Kind), ev.TenantID, ev.SessionID)
	if ev.Rating > 0 {
		line += fmt.Sprintf(" rating=%d", ev.Rating)
	}
	if ev.Error != "" {
		line += fmt.Sprintf(" error=%q", ev.Error)
	}
	return line
}
