// Package backend is the notifier's view of the hosted database: point reads,
// filtered selects and the three mutations (update, delete, bulk delete).
// Two implementations exist, PostgREST over HTTP and direct gorm access.
package backend

import (
	"context"
	"sort"
	"strings"
)

const (
	TableNotifications      = "notifications"
	TableComments           = "comments"
	TableTweets             = "tweets"
	TableProfiles           = "profiles"
	TableDirectMessages     = "direct_messages"
	TableMessageAttachments = "message_attachments"
)

// Filter is a set of column equality constraints
type Filter map[string]string

// Keys returns the filter columns in a stable order
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query describes a filtered, ordered select
type Query struct {
	Filter  Filter
	Columns []string // empty means all
	OrderBy string
	Desc    bool
	Limit   int
}

func (q Query) selectList() string {
	if len(q.Columns) == 0 {
		return "*"
	}
	return strings.Join(q.Columns, ",")
}

// Backend is implemented by RESTClient and GormStore. FetchByID returns an
// error matching apperrors.ErrRecordNotFound when no row has the id.
type Backend interface {
	FetchByID(ctx context.Context, table, id string, dest interface{}) error
	Select(ctx context.Context, table string, q Query, dest interface{}) error
	Update(ctx context.Context, table, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, table, id string) error
	BulkDelete(ctx context.Context, table string, filter Filter) error
}
