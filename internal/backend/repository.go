package backend

import (
	"context"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/models"
)

// Repository is the typed API the rest of the notifier uses
type Repository struct {
	b Backend
}

// NewRepository wraps a Backend
func NewRepository(b Backend) *Repository {
	return &Repository{b: b}
}

// ListNotifications returns the receiver's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, receiverID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.b.Select(ctx, TableNotifications, Query{
		Filter:  Filter{"receiver_id": receiverID},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}, &out)
	return out, err
}

// GetNotification loads a single notification
func (r *Repository) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.b.FetchByID(ctx, TableNotifications, id, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead sets is_read on one notification
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	return r.b.Update(ctx, TableNotifications, id, map[string]interface{}{"is_read": true})
}

// DeleteNotification removes one notification
func (r *Repository) DeleteNotification(ctx context.Context, id string) error {
	return r.b.Delete(ctx, TableNotifications, id)
}

// ClearNotifications removes every notification addressed to receiverID
func (r *Repository) ClearNotifications(ctx context.Context, receiverID string) error {
	if receiverID == "" {
		return apperrors.ValidationError("receiver_id", "receiver is required")
	}
	return r.b.BulkDelete(ctx, TableNotifications, Filter{"receiver_id": receiverID})
}

// CommentExists performs the point read behind ghost detection. A missing
// row is (false, nil); any other failure is returned as an error.
func (r *Repository) CommentExists(ctx context.Context, id string) (bool, error) {
	var c models.Comment
	err := r.b.FetchByID(ctx, TableComments, id, &c)
	switch {
	case err == nil:
		return true, nil
	case apperrors.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Profile loads a profile by profile id
func (r *Repository) Profile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.b.FetchByID(ctx, TableProfiles, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileIDForUser maps an auth user id to the profile id other tables reference
func (r *Repository) ProfileIDForUser(ctx context.Context, userID string) (string, error) {
	var rows []models.Profile
	err := r.b.Select(ctx, TableProfiles, Query{
		Filter:  Filter{"user_id": userID},
		Columns: []string{"id", "user_id"},
		Limit:   1,
	}, &rows)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", apperrors.NotFound("profile")
	}
	return rows[0].ID, nil
}

// AttachmentKinds returns the distinct attachment kinds of a message in
// first-seen order
func (r *Repository) AttachmentKinds(ctx context.Context, messageID string) ([]models.AttachmentKind, error) {
	var rows []models.MessageAttachment
	err := r.b.Select(ctx, TableMessageAttachments, Query{
		Filter:  Filter{"message_id": messageID},
		Columns: []string{"id", "message_id", "file_type"},
	}, &rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.AttachmentKind]bool, len(rows))
	kinds := make([]models.AttachmentKind, 0, len(rows))
	for _, row := range rows {
		if row.Kind == "" || seen[row.Kind] {
			continue
		}
		seen[row.Kind] = true
		kinds = append(kinds, row.Kind)
	}
	return kinds, nil
}
