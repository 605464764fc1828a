package changefeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetachedPGSource() *PGSource {
	return &PGSource{
		channel: DefaultNotifyChannel,
		subs:    make(map[int]*pgSubscription),
		done:    make(chan struct{}),
	}
}

func TestPGSourceDispatchesMatchingRows(t *testing.T) {
	src := newDetachedPGSource()
	var mine, theirs []Change
	_, err := src.Subscribe(context.Background(), NotificationStream("p1"), func(ch Change) { mine = append(mine, ch) })
	require.NoError(t, err)
	_, err = src.Subscribe(context.Background(), NotificationStream("p2"), func(ch Change) { theirs = append(theirs, ch) })
	require.NoError(t, err)

	src.handlePayload(`{"table":"notifications","type":"INSERT","commit_timestamp":"2025-03-01T12:00:00.000001Z",
		"record":{"id":"n1","type":"follow","sender_id":"s1","receiver_id":"p1"}}`)

	require.Len(t, mine, 1)
	assert.Empty(t, theirs)
	assert.Equal(t, "notifications", mine[0].Table)
	assert.False(t, mine[0].CommitTimestamp.IsZero())
	assert.Equal(t, int64(1), src.Stats().MessagesReceived)
}

func TestPGSourceIgnoresOtherTablesAndGarbage(t *testing.T) {
	src := newDetachedPGSource()
	calls := 0
	_, err := src.Subscribe(context.Background(), MessageStream("p1"), func(Change) { calls++ })
	require.NoError(t, err)

	src.handlePayload(`{"table":"notifications","type":"INSERT","record":{"id":"n1","type":"like","receiver_id":"p1"}}`)
	src.handlePayload(`not json`)
	src.handlePayload(`{"table":"direct_messages","type":"INSERT","record":{"id":"m1","receiver_id":"p1"}}`)

	assert.Equal(t, 0, calls)
}

func TestPGSourceUnsubscribeIsIdempotent(t *testing.T) {
	src := newDetachedPGSource()
	calls := 0
	sub, err := src.Subscribe(context.Background(), MessageStream("p1"), func(Change) { calls++ })
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, src.Stats().Channels)

	src.handlePayload(`{"table":"direct_messages","type":"INSERT","record":{"id":"m1","sender_id":"s1","receiver_id":"p1"}}`)
	assert.Equal(t, 0, calls)

	_, err = src.Subscribe(context.Background(), MessageStream("p1"), func(Change) {})
	assert.NoError(t, err, "stream can be reopened after unsubscribe")
}

func TestPGSourceClose(t *testing.T) {
	src := newDetachedPGSource()
	_, err := src.Subscribe(context.Background(), MessageStream("p1"), func(Change) {})
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Subscribe(context.Background(), MessageStream("p1"), func(Change) {})
	assert.Error(t, err)
}
