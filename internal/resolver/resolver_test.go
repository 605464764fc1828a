package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/notifier/internal/models"
)

type stubComments struct {
	existing map[string]bool
	err      error
	calls    int
}

func (s *stubComments) CommentExists(_ context.Context, id string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.existing[id], nil
}

func notification(typ models.NotificationType, tweet, comment string) *models.Notification {
	return &models.Notification{
		ID:         "n1",
		Type:       typ,
		SenderID:   models.Ref("sender"),
		ReceiverID: "p1",
		TweetID:    models.Ref(tweet),
		CommentID:  models.Ref(comment),
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		n           *models.Notification
		outcome     Outcome
		path        string
		deletes     bool
		notice      string
		commentCall bool
	}{
		{"system", notification(models.NotificationSystem, "", ""), OutcomeNoOp, "", false, "", false},
		{"follow", notification(models.NotificationFollow, "", ""), OutcomeProfile, "/profile/sender", false, "", false},
		{"post gone", notification(models.NotificationLike, "", ""), OutcomeStalePost, "", true, NoticePostDeleted, false},
		{"like on post", notification(models.NotificationLike, "T", ""), OutcomePost, "/post/T", false, "", false},
		{"comment deleted", notification(models.NotificationComment, "T", ""), OutcomeStaleComment, "/post/T", true, "", false},
		{"comment exists", notification(models.NotificationComment, "T", "C"), OutcomeComment, "/post/T?comment=C", false, "", true},
		{"comment missing", notification(models.NotificationLikeComment, "T", "gone"), OutcomeStaleComment, "/post/T", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments := &stubComments{existing: map[string]bool{"C": true}}
			d := New(comments).Resolve(context.Background(), tt.n)

			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.deletes, d.Delete)
			assert.Equal(t, tt.notice, d.Notice)
			if tt.path == "" {
				assert.False(t, d.Navigates())
			} else {
				require.True(t, d.Navigates())
				assert.Equal(t, tt.path, d.Route.Path())
			}
			assert.Equal(t, tt.commentCall, comments.calls == 1)
		})
	}
}

func TestResolveCheckFailureNavigatesOptimistically(t *testing.T) {
	comments := &stubComments{err: errors.New("connection reset")}
	d := New(comments).Resolve(context.Background(), notification(models.NotificationReply, "T", "C"))

	assert.Equal(t, OutcomeCommentUnverified, d.Outcome)
	assert.False(t, d.Delete)
	require.True(t, d.Navigates())
	assert.Equal(t, "C", d.Route.HighlightCommentID)
}

func TestFollowWithoutSenderIsNoOp(t *testing.T) {
	n := notification(models.NotificationFollow, "", "")
	n.SenderID = nil
	d := New(&stubComments{}).Resolve(context.Background(), n)
	assert.Equal(t, OutcomeNoOp, d.Outcome)
	assert.False(t, d.Navigates())
}
