package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/notifier/internal/models"
)

func TestDecodeNotificationRow(t *testing.T) {
	row, err := DecodeRow("notifications", []byte(`{
		"id":"n1","type":"comment","sender_id":"s1","receiver_id":"r1",
		"tweet_id":"t1","comment_id":"c1","is_read":false,
		"created_at":"2025-03-01T12:00:00.123456+00:00"}`))
	require.NoError(t, err)

	nr, ok := row.(NotificationRow)
	require.True(t, ok)
	assert.Equal(t, models.NotificationComment, nr.Notification.Type)
	assert.Equal(t, "c1", models.Deref(nr.Notification.CommentID))
	assert.Equal(t, "notifications", row.Table())
}

func TestDecodeMessageRow(t *testing.T) {
	row, err := DecodeRow("direct_messages", []byte(`{"id":"m1","sender_id":"s1","receiver_id":"r1","content":"hola"}`))
	require.NoError(t, err)

	mr, ok := row.(DirectMessageRow)
	require.True(t, ok)
	assert.Equal(t, "hola", mr.Message.Content)
}

func TestDecodeRowRejectsInvalidRecords(t *testing.T) {
	cases := map[string]struct {
		table  string
		record string
	}{
		"unknown table":   {"profiles", `{"id":"p1"}`},
		"unknown type":    {"notifications", `{"id":"n1","type":"poke","receiver_id":"r1"}`},
		"orphan comment":  {"notifications", `{"id":"n1","type":"comment","receiver_id":"r1","comment_id":"c1"}`},
		"missing sender":  {"direct_messages", `{"id":"m1","receiver_id":"r1"}`},
		"not json":        {"notifications", `{`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRow(tc.table, []byte(tc.record))
			assert.Error(t, err)
		})
	}
}

func TestStreamFilters(t *testing.T) {
	s := NotificationStream("p1")
	assert.Equal(t, "notifications:p1", s.Name)
	assert.Equal(t, "receiver_id=eq.p1", s.FilterString())
	assert.Equal(t, "direct_messages", MessageStream("p1").Table)
}

func TestRealtimeURL(t *testing.T) {
	assert.Equal(t, "wss://abc.example.co/realtime/v1/websocket", RealtimeURL("https://abc.example.co/"))
	assert.Equal(t, "ws://localhost:54321/realtime/v1/websocket", RealtimeURL("http://localhost:54321"))
}
