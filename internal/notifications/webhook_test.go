package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, status int) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	got := map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSendGeneric(t *testing.T) {
	srv, got := capture(t, http.StatusOK)
	s := NewWebhookSender()
	s.now = func() time.Time { return time.Date(2024, time.November, 7, 16, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Send(context.Background(), Channel{Type: "generic", URL: srv.URL}, "t", "m"))
	assert.Equal(t, "storydraw", (*got)["source"])
	assert.Equal(t, "2024-11-07T16:00:00Z", (*got)["timestamp"])
}

func TestSendDiscordAndSlackShapes(t *testing.T) {
	srv, got := capture(t, http.StatusNoContent)
	s := NewWebhookSender()

	require.NoError(t, s.Send(context.Background(), Channel{Type: "discord", URL: srv.URL}, "t", "m"))
	assert.Contains(t, *got, "embeds")

	require.NoError(t, s.Send(context.Background(), Channel{Type: "slack", URL: srv.URL}, "t", "m"))
	assert.Contains(t, *got, "blocks")
}

func TestSendErrors(t *testing.T) {
	srv, _ := capture(t, http.StatusBadGateway)
	s := NewWebhookSender()

	assert.Error(t, s.Send(context.Background(), Channel{Type: "generic", URL: srv.URL}, "t", "m"))
	assert.Error(t, s.Send(context.Background(), Channel{Type: "pager", URL: srv.URL}, "t", "m"))
	assert.Error(t, s.Send(context.Background(), Channel{Type: "generic"}, "t", "m"))
}

func TestEntryNotifierMessage(t *testing.T) {
	srv, got := capture(t, http.StatusOK)
	n := NewEntryNotifier(NewWebhookSender(), Channel{Type: "generic", URL: srv.URL})
	require.True(t, n.Enabled())

	require.NoError(t, n.EntryRecorded(context.Background(), "e-1", "11/07", 3))
	assert.Equal(t, "Entry e-1 joined the 11/07 drawing (3 entries so far).", (*got)["message"])

	require.NoError(t, n.DrawClosed(context.Background(), "11/07", 3))
	assert.Equal(t, "Drawing closed", (*got)["title"])

	assert.False(t, (*EntryNotifier)(nil).Enabled())
	assert.False(t, NewEntryNotifier(NewWebhookSender(), Channel{}).Enabled())
}
