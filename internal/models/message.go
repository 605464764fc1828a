package models

import (
	"errors"
	"time"
)

// DirectMessage mirrors a row of the direct_messages table
type DirectMessage struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	SenderID   string    `json:"sender_id" gorm:"size:36;index"`
	ReceiverID string    `json:"receiver_id" gorm:"size:36;index"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

func (DirectMessage) TableName() string { return "direct_messages" }

// Validate checks required fields of a message row
func (m *DirectMessage) Validate() error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if m.SenderID == "" || m.ReceiverID == "" {
		return errors.New("message sender and receiver are required")
	}
	return nil
}

// AttachmentKind classifies a message attachment
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentVideo AttachmentKind = "video"
	AttachmentFile  AttachmentKind = "file"
)

// MessageAttachment is a file attached to a direct message
type MessageAttachment struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	MessageID string         `json:"message_id" gorm:"size:36;index"`
	Kind      AttachmentKind `json:"file_type" gorm:"column:file_type;size:20"`
	URL       string         `json:"file_url" gorm:"column:file_url"`
}

func (MessageAttachment) TableName() string { return "message_attachments" }
