package main

import (
	"context"

	"github.com/go-go-golems/chatwidget/pkg/widget/identity"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
)

type SessionCommand struct {
	*cmds.CommandDescription
}

type SessionSettings struct {
	ChatbotIDs []string `glazed:"chatbot-id"`
	Reset      bool     `glazed:"reset"`
}

func NewSessionCommand() (*SessionCommand, error) {
	glazedLayer, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsLayer, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"session",
		cmds.WithShort("Show or reset the stored session id for tenants"),
		cmds.WithLong("Show the session id each tenant's widget resumes with, or forget it with --reset so the next run starts a new one."),
		cmds.WithFlags(
			fields.New(
				"chatbot-id",
				fields.TypeStringList,
				fields.WithRequired(true),
				fields.WithHelp("Tenant (chatbot) ids to look up"),
			),
			fields.New(
				"reset",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Forget the stored session"),
			),
		),
		cmds.WithSections(glazedLayer, commandSettingsLayer),
	)

	return &SessionCommand{CommandDescription: desc}, nil
}

func (c *SessionCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &SessionSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	storage, err := identity.Open(storageSettings())
	if err != nil {
		return err
	}
	defer func() { _ = storage.Close() }()

	store := identity.NewStore(storage)
	for _, tenantID := range s.ChatbotIDs {
		st, err := lookupSession(ctx, store, tenantID, s.Reset)
		if err != nil {
			return err
		}
		row := types.NewRow(
			types.MRP("chatbot_id", st.TenantID),
			types.MRP("key", identity.Key(st.TenantID)),
			types.MRP("session_id", st.SessionID),
			types.MRP("stored", st.Stored),
			types.MRP("reset", st.Reset),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ cmds.GlazeCommand = &SessionCommand{}

type sessionStatus struct {
	TenantID  string
	SessionID string
	Stored    bool
	Reset     bool
}

// lookupSession reports the stored session for tenantID, forgetting it first
// when reset is set. The reported id is the one that was stored.
func lookupSession(ctx context.Context, store *identity.Store, tenantID string, reset bool) (sessionStatus, error) {
	st := sessionStatus{TenantID: tenantID}
	st.SessionID, st.Stored = store.Peek(ctx, tenantID)
	if !reset {
		return st, nil
	}
	if err := store.Forget(ctx, tenantID); err != nil {
		return st, errors.Wrapf(err, "reset session for %s", tenantID)
	}
	st.Reset = true
	return st, nil
}
