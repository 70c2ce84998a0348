package devbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
)

func TestConfigEndpoint(t *testing.T) {
	h := New(nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/widget/config/demo?session_id=s", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg api.TenantConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, "Demo Assistant", cfg.Name)
	require.Equal(t, api.PositionBottomRight, cfg.Position)

	req = httptest.NewRequest(http.MethodGet, "/api/widget/config/nope", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEndpoint_CannedAndEcho(t *testing.T) {
	s := New(nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := c.SendMessage(context.Background(), "demo", "sess_1", "hello")
	require.NoError(t, err)
	require.Equal(t, "Hi there!", resp.Reply)
	require.Empty(t, resp.SessionID)

	resp, err = c.SendMessage(context.Background(), "demo", "sess_1", "what time is it")
	require.NoError(t, err)
	require.Equal(t, "You said: what time is it", resp.Reply)

	require.Equal(t, []ChatRecord{
		{TenantID: "demo", SessionID: "sess_1", Message: "hello"},
		{TenantID: "demo", SessionID: "sess_1", Message: "what time is it"},
	}, s.Chats("demo"))
}

func TestChatEndpoint_RejectsEmptyMessage(t *testing.T) {
	h := New(nil).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/widget/chat/demo", bytes.NewReader([]byte(`{"message":"  "}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpoint_Rotation(t *testing.T) {
	srv := httptest.NewServer(New(nil, WithRotateEvery(2)).Handler())
	defer srv.Close()
	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)

	r1, err := c.SendMessage(context.Background(), "demo", "s", "a")
	require.NoError(t, err)
	require.Empty(t, r1.SessionID)
	r2, err := c.SendMessage(context.Background(), "demo", "s", "b")
	require.NoError(t, err)
	require.NotEmpty(t, r2.SessionID)
}

func TestUsageAndReview(t *testing.T) {
	s := New(nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)

	require.NoError(t, c.RecordUsage(context.Background(), "demo", "sess_1"))
	require.NoError(t, c.SubmitReview(context.Background(), "demo", "sess_1", 4, "good"))
	require.Error(t, c.SubmitReview(context.Background(), "demo", "sess_1", 9, ""))

	require.Equal(t, []string{"sess_1"}, s.UsageSessions("demo"))
	reviews := s.Reviews("demo")
	require.Len(t, reviews, 1)
	require.Equal(t, 4, reviews[0].Rating)
	require.Equal(t, "good", reviews[0].Comment)
}

func TestCORSPreflight(t *testing.T) {
	h := New(nil).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/widget/chat/demo", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte(`
tenants:
  - id: abc123
    name: Acme
    position: bottom-left
    replies:
      pricing: "Plans start at $9."
`))
	require.NoError(t, err)
	require.Len(t, f.Tenants, 1)
	require.Equal(t, api.PositionBottomLeft, f.Tenants[0].Config().Position)
	require.Equal(t, "Plans start at $9.", f.Tenants[0].Replies["pricing"])

	_, err = ParseFixtures([]byte(`tenants: [{name: x}]`))
	require.Error(t, err)
}
