// Package dedup suppresses repeat delivery of the same logical notification
// when the change feed emits it more than once in quick succession.
package dedup

import (
	"context"
	"strings"

	"github.com/lingoloop/notifier/internal/models"
)

// Key identifies a logical notification event. Two events with equal keys
// inside the window are treated as one.
type Key struct {
	Sender    string
	Receiver  string
	Type      string
	SubTarget string
	Target    string
}

// String joins the parts with a separator that cannot appear in a uuid
func (k Key) String() string {
	return strings.Join([]string{k.Sender, k.Receiver, k.Type, k.SubTarget, k.Target}, "|")
}

// KeyFor builds the composite key for a notification row
func KeyFor(n *models.Notification) Key {
	return Key{
		Sender:    models.Deref(n.SenderID),
		Receiver:  n.ReceiverID,
		Type:      string(n.Type),
		SubTarget: models.Deref(n.CommentID),
		Target:    models.Deref(n.TweetID),
	}
}

// KeyForMessage builds the key for a direct message insert
func KeyForMessage(m *models.DirectMessage) Key {
	return Key{
		Sender:   m.SenderID,
		Receiver: m.ReceiverID,
		Type:     "message",
		Target:   m.ID,
	}
}

// Filter decides whether an event should be delivered
type Filter interface {
	ShouldDeliver(ctx context.Context, key Key) bool
}
