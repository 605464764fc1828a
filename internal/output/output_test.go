package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/notifier/internal/models"
)

func init() {
	color.NoColor = true
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"json", true},
		{"text", true},
		{"table", true},
		{"yaml", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidFormat(tt.format), tt.format)
	}
}

func TestNotificationsText(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, FormatText)

	err := p.Notifications([]models.Notification{
		{ID: "0123456789abcdef", Type: models.NotificationReply, SenderID: models.Ref("sender-profile"), TweetID: models.Ref("t1"), CommentID: models.Ref("c1"), CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "sys-1", Type: models.NotificationSystem, IsRead: true},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "comment c1")
	assert.Contains(t, out, "2h")
	assert.Contains(t, out, "system")
}

func TestNotificationsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).Notifications(nil))
	assert.Equal(t, "No notifications\n", buf.String())
}

func TestNotificationsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).Notifications([]models.Notification{{ID: "n1", Type: models.NotificationLike}}))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "n1", decoded[0]["id"])
}

func TestRecordKeepsKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	err := New(&buf, FormatText).Record([]string{"unread", "stored"}, map[string]interface{}{"stored": 4, "unread": 2})
	require.NoError(t, err)
	assert.Equal(t, "unread: 2\nstored: 4\n", buf.String())
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, FormatText)
	p.Success("done %d", 1)
	p.Warning("careful")
	p.Error("failed")
	assert.Equal(t, "done 1\nWarning: careful\nError: failed\n", buf.String())
}
