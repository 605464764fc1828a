package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/notifier/internal/auth"
	"github.com/lingoloop/notifier/internal/delivery"
	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/output"
	"github.com/lingoloop/notifier/internal/resolver"
)

func init() {
	color.NoColor = true
}

type stubRepo struct {
	list []models.Notification
}

func (r *stubRepo) ListNotifications(context.Context, string, int) ([]models.Notification, error) {
	return append([]models.Notification(nil), r.list...), nil
}
func (r *stubRepo) MarkRead(context.Context, string) error { return nil }
func (r *stubRepo) DeleteNotification(context.Context, string) error { return nil }
func (r *stubRepo) ClearNotifications(context.Context, string) error { return nil }
func (r *stubRepo) CommentExists(context.Context, string) (bool, error) { return true, nil }
func (r *stubRepo) ProfileIDForUser(context.Context, string) (string, error) { return "me", nil }
func (r *stubRepo) Profile(context.Context, string) (*models.Profile, error) {
	return &models.Profile{Username: "ana"}, nil
}
func (r *stubRepo) AttachmentKinds(context.Context, string) ([]models.AttachmentKind, error) {
	return nil, nil
}

func newTestListener(t *testing.T, buf *bytes.Buffer) (*delivery.Listener, *output.Printer) {
	t.Helper()
	printer := output.New(buf, output.FormatText)
	repo := &stubRepo{list: []models.Notification{
		{ID: "abc-123", Type: models.NotificationLike, SenderID: models.Ref("p2"), ReceiverID: "me", TweetID: models.Ref("t1")},
		{ID: "def-456", Type: models.NotificationFollow, SenderID: models.Ref("p3"), ReceiverID: "me", IsRead: true},
	}}
	l := delivery.NewListener(delivery.Config{
		Repo:      repo,
		Navigator: newTerminalNavigator("https://lingoloop.app/", printer),
	})
	t.Cleanup(l.Close)
	require.NoError(t, l.Load(context.Background(), &auth.Identity{UserID: "u1"}))
	return l, printer
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line, verb, arg string
	}{
		{"", "", ""},
		{"   ", "", ""},
		{"quit", "quit", ""},
		{"OPEN abc", "open", "abc"},
		{"  hold   abc  extra", "hold", "abc"},
	}
	for _, tt := range tests {
		verb, arg := parseCommand(tt.line)
		assert.Equal(t, tt.verb, verb, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestNavigatorURL(t *testing.T) {
	nav := newTerminalNavigator("https://lingoloop.app/", output.New(&bytes.Buffer{}, output.FormatText))
	assert.Equal(t, "https://lingoloop.app/post/t1?comment=c1",
		nav.URL(resolver.Route{Kind: resolver.RoutePost, ID: "t1", HighlightCommentID: "c1"}))
	assert.Equal(t, "https://lingoloop.app/profile/p1", nav.URL(resolver.Route{Kind: resolver.RouteProfile, ID: "p1"}))
}

func TestRunCommandOpen(t *testing.T) {
	var buf bytes.Buffer
	l, p := newTestListener(t, &buf)

	assert.True(t, runCommand(context.Background(), "open abc", l, p))
	assert.Contains(t, buf.String(), "→ https://lingoloop.app/post/t1")

	n, ok := l.Store().Get("abc-123")
	require.True(t, ok)
	assert.True(t, n.IsRead)
}

func TestRunCommandErrors(t *testing.T) {
	var buf bytes.Buffer
	l, p := newTestListener(t, &buf)
	ctx := context.Background()

	assert.True(t, runCommand(ctx, "open", l, p))
	assert.Contains(t, buf.String(), "open needs a notification id")

	buf.Reset()
	assert.True(t, runCommand(ctx, "frobnicate abc", l, p))
	assert.Contains(t, buf.String(), `unknown command "frobnicate"`)

	buf.Reset()
	assert.True(t, runCommand(ctx, "read zzz", l, p))
	assert.Contains(t, buf.String(), "Error:")

	buf.Reset()
	assert.True(t, runCommand(ctx, "read def", l, p))
	assert.Contains(t, buf.String(), "Already read")

	assert.False(t, runCommand(ctx, "quit", l, p))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "LingoLoop notifier v"+Version+"\n", buf.String())
}

func TestRootRegistersCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"watch", "list", "count", "open", "read", "delete", "clear", "version"} {
		assert.Contains(t, names, want)
	}
}
