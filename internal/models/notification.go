package models

import (
	"errors"
	"fmt"
	"time"
)

// NotificationType identifies what happened to produce a notification
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationComment     NotificationType = "comment"
	NotificationRepost      NotificationType = "repost"
	NotificationMention     NotificationType = "mention"
	NotificationFollow      NotificationType = "follow"
	NotificationReply       NotificationType = "reply"
	NotificationSystem      NotificationType = "system"
	NotificationLikeComment NotificationType = "like_comment"
	NotificationLikeFeed    NotificationType = "like_feed"
)

// AllNotificationTypes lists every known type in display order
var AllNotificationTypes = []NotificationType{
	NotificationLike,
	NotificationComment,
	NotificationRepost,
	NotificationMention,
	NotificationFollow,
	NotificationReply,
	NotificationSystem,
	NotificationLikeComment,
	NotificationLikeFeed,
}

var (
	// ErrUnknownType is returned for a type string outside AllNotificationTypes
	ErrUnknownType = errors.New("unknown notification type")
	// ErrOrphanComment is returned when a comment reference has no parent post
	ErrOrphanComment = errors.New("comment reference without post reference")
)

// ParseNotificationType validates a raw type string
func ParseNotificationType(s string) (NotificationType, error) {
	switch t := NotificationType(s); t {
	case NotificationLike, NotificationComment, NotificationRepost, NotificationMention,
		NotificationFollow, NotificationReply, NotificationSystem,
		NotificationLikeComment, NotificationLikeFeed:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Notification mirrors a row of the notifications table. Content is a
// snapshot taken at creation time and may describe a post or comment that
// has since been deleted.
type Notification struct {
	ID         string           `json:"id" gorm:"primaryKey;size:36"`
	Type       NotificationType `json:"type" gorm:"size:20;index"`
	SenderID   *string          `json:"sender_id" gorm:"size:36"`
	ReceiverID string           `json:"receiver_id" gorm:"size:36;index"`
	Content    *string          `json:"content"`
	TweetID    *string          `json:"tweet_id" gorm:"size:36"`
	CommentID  *string          `json:"comment_id" gorm:"size:36"`
	IsRead     bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt  time.Time        `json:"created_at" gorm:"index"`
}

// TableName pins the table name used by the hosted schema
func (Notification) TableName() string { return "notifications" }

// Validate checks the invariants every record must satisfy
func (n *Notification) Validate() error {
	if n.ID == "" {
		return errors.New("notification id is required")
	}
	if n.ReceiverID == "" {
		return errors.New("notification receiver is required")
	}
	if _, err := ParseNotificationType(string(n.Type)); err != nil {
		return err
	}
	if HasRef(n.CommentID) && !HasRef(n.TweetID) {
		return ErrOrphanComment
	}
	return nil
}

// IsSystem reports whether the notification has no originating user
func (n *Notification) IsSystem() bool {
	return n.Type == NotificationSystem
}

// Sender returns the sender id or "" for system notifications
func (n *Notification) Sender() string {
	return Deref(n.SenderID)
}

// HasRef reports whether an optional reference is set to a non-empty id
func HasRef(ref *string) bool {
	return ref != nil && *ref != ""
}

// Deref returns the referenced string or ""
func Deref(ref *string) string {
	if ref == nil {
		return ""
	}
	return *ref
}

// Ref returns a pointer to s, or nil for the empty string
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
