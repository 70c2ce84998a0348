package main

import (
	"context"
	"testing"

	"github.com/go-go-golems/chatwidget/pkg/widget/identity"
	"github.com/stretchr/testify/require"
)

func TestLookupSession(t *testing.T) {
	ctx := context.Background()
	storage := identity.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, identity.Key("abc123"), "sess_stored"))
	store := identity.NewStore(storage)

	st, err := lookupSession(ctx, store, "abc123", false)
	require.NoError(t, err)
	require.Equal(t, sessionStatus{TenantID: "abc123", SessionID: "sess_stored", Stored: true}, st)

	st, err = lookupSession(ctx, store, "other", false)
	require.NoError(t, err)
	require.False(t, st.Stored)
	require.Empty(t, st.SessionID)
}

func TestLookupSession_Reset(t *testing.T) {
	ctx := context.Background()
	storage := identity.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, identity.Key("abc123"), "sess_stored"))
	store := identity.NewStore(storage)

	st, err := lookupSession(ctx, store, "abc123", true)
	require.NoError(t, err)
	require.True(t, st.Reset)
	require.Equal(t, "sess_stored", st.SessionID)

	_, ok := store.Peek(ctx, "abc123")
	require.False(t, ok)
}

func TestSessionCommandDescription(t *testing.T) {
	c, err := NewSessionCommand()
	require.NoError(t, err)
	require.Equal(t, "session", c.Description().Name)
}
