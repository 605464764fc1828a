// Package changefeed subscribes to insert events on the notifications and
// direct_messages tables and forwards deduplicated rows to a Handler.
package changefeed

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lingoloop/notifier/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Row is a decoded change-feed record. It is one of NotificationRow or
// DirectMessageRow.
type Row interface {
	Table() string
	isRow()
}

// NotificationRow is an insert into the notifications table
type NotificationRow struct {
	Notification models.Notification
}

func (NotificationRow) Table() string { return models.Notification{}.TableName() }
func (NotificationRow) isRow()        {}

// DirectMessageRow is an insert into the direct_messages table
type DirectMessageRow struct {
	Message models.DirectMessage
}

func (DirectMessageRow) Table() string { return models.DirectMessage{}.TableName() }
func (DirectMessageRow) isRow()        {}

// Change is one event delivered by a Source
type Change struct {
	Event           string // INSERT, UPDATE or DELETE
	Table           string
	CommitTimestamp time.Time
	Row             Row
}

const EventInsert = "INSERT"

// DecodeRow narrows a raw record to the row type of its table and validates
// it. Unknown tables and invalid records are errors.
func DecodeRow(table string, record []byte) (Row, error) {
	switch table {
	case models.Notification{}.TableName():
		var n models.Notification
		if err := json.Unmarshal(record, &n); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("invalid notification %q: %w", n.ID, err)
		}
		return NotificationRow{Notification: n}, nil
	case models.DirectMessage{}.TableName():
		var m models.DirectMessage
		if err := json.Unmarshal(record, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid message %q: %w", m.ID, err)
		}
		return DirectMessageRow{Message: m}, nil
	default:
		return nil, fmt.Errorf("unsupported table %q", table)
	}
}

func parseCommitTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999Z07:00", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
