package changefeed

import (
	"context"
	"fmt"
)

// Stream names one logical subscription: inserts into Table whose Column
// equals Value.
type Stream struct {
	Name   string
	Table  string
	Column string
	Value  string
}

// FilterString renders the stream filter in PostgREST syntax
func (s Stream) FilterString() string {
	return fmt.Sprintf("%s=eq.%s", s.Column, s.Value)
}

// NotificationStream is the per-receiver notifications stream
func NotificationStream(profileID string) Stream {
	return Stream{Name: "notifications:" + profileID, Table: "notifications", Column: "receiver_id", Value: profileID}
}

// MessageStream is the per-receiver direct message stream
func MessageStream(profileID string) Stream {
	return Stream{Name: "messages:" + profileID, Table: "direct_messages", Column: "receiver_id", Value: profileID}
}

// ChangeHandler receives changes for one subscription. Calls for a single
// subscription are serialized in arrival order.
type ChangeHandler func(Change)

// Subscription is an open stream. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe() error
}

// Source opens streams. Failed subscriptions are not retried by the source.
type Source interface {
	Subscribe(ctx context.Context, stream Stream, h ChangeHandler) (Subscription, error)
	Close() error
}

// StatsReporter is implemented by sources that track connection statistics
type StatsReporter interface {
	Stats() ConnectionStats
}
