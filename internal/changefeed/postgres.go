package changefeed

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.uber.org/zap"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
)

// DefaultNotifyChannel is the LISTEN channel the change trigger publishes on
const DefaultNotifyChannel = "lingoloop_changes"

// TriggerSQL installs a trigger that publishes inserts on the watched tables
// as JSON on DefaultNotifyChannel. Rows larger than the 8000 byte NOTIFY
// limit are dropped by Postgres.
const TriggerSQL = `
CREATE OR REPLACE FUNCTION lingoloop_notify_change() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + DefaultNotifyChannel + `', json_build_object(
    'table', TG_TABLE_NAME,
    'type', TG_OP,
    'commit_timestamp', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'),
    'record', row_to_json(NEW)
  )::text);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS lingoloop_notifications_change ON notifications;
CREATE TRIGGER lingoloop_notifications_change AFTER INSERT ON notifications
  FOR EACH ROW EXECUTE FUNCTION lingoloop_notify_change();

DROP TRIGGER IF EXISTS lingoloop_direct_messages_change ON direct_messages;
CREATE TRIGGER lingoloop_direct_messages_change AFTER INSERT ON direct_messages
  FOR EACH ROW EXECUTE FUNCTION lingoloop_notify_change();
`

// EnsureTrigger installs TriggerSQL
func EnsureTrigger(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, TriggerSQL); err != nil {
		return fmt.Errorf("install change trigger: %w", err)
	}
	return nil
}

type pgNotification struct {
	Table           string              `json:"table"`
	Type            string              `json:"type"`
	CommitTimestamp string              `json:"commit_timestamp"`
	Record          jsoniter.RawMessage `json:"record"`
}

// PGSource reads changes from Postgres LISTEN/NOTIFY. Used when the notifier
// runs with direct database access instead of the realtime service.
type PGSource struct {
	channel  string
	listener *pq.Listener

	mu     sync.Mutex
	nextID int
	subs   map[int]*pgSubscription
	closed bool
	done   chan struct{}

	statsLock sync.RWMutex
	stats     ConnectionStats
}

// NewPGSource opens a listener on channel ("" means DefaultNotifyChannel)
func NewPGSource(databaseURL, channel string) (*PGSource, error) {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	s := &PGSource{
		channel: channel,
		subs:    make(map[int]*pgSubscription),
		done:    make(chan struct{}),
	}

	s.listener = pq.NewListener(databaseURL, 2*time.Second, time.Minute, s.onEvent)
	if err := s.listener.Listen(channel); err != nil {
		_ = s.listener.Close()
		return nil, apperrors.Subscription(channel, "listen").WithCause(err)
	}
	s.recordConnected()
	go s.loop()

	logger.Info("Listening for database changes", zap.String("channel", channel))
	return s, nil
}

func (s *PGSource) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		s.recordConnected()
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		s.recordDisconnected()
		if err != nil {
			s.recordError(err.Error())
			metrics.SubscriptionErrors.WithLabelValues("connection").Inc()
			logger.WarnWithErr("Database listener disconnected", err, zap.String("channel", s.channel))
		}
	}
}

func (s *PGSource) loop() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// nil after a reconnect; notifications in the gap are lost
				continue
			}
			s.handlePayload(n.Extra)
		case <-ping.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					logger.Debug("Listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (s *PGSource) handlePayload(extra string) {
	s.recordMessageReceived()

	var n pgNotification
	if err := json.Unmarshal([]byte(extra), &n); err != nil {
		logger.WarnWithErr("Malformed change notification", err)
		return
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(n.Record, &fields); err != nil {
		logger.WarnWithErr("Malformed change record", err, logger.WithTable(n.Table))
		return
	}

	s.mu.Lock()
	var matched []*pgSubscription
	for _, sub := range s.subs {
		if sub.matches(n.Table, fields) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()
	if len(matched) == 0 {
		return
	}

	row, err := DecodeRow(n.Table, n.Record)
	if err != nil {
		logger.WarnWithErr("Skipping change row", err, logger.WithTable(n.Table))
		return
	}
	change := Change{
		Event:           n.Type,
		Table:           n.Table,
		CommitTimestamp: parseCommitTimestamp(n.CommitTimestamp),
		Row:             row,
	}
	for _, sub := range matched {
		safeHandle(sub.handler, change, sub.stream.Name)
	}
}

// Subscribe registers a filtered stream. Streams share the one listener.
func (s *PGSource) Subscribe(_ context.Context, stream Stream, h ChangeHandler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.Subscription(stream.Name, "source closed")
	}
	for _, sub := range s.subs {
		if sub.stream.Name == stream.Name {
			return nil, apperrors.Subscription(stream.Name, "already subscribed")
		}
	}

	s.nextID++
	sub := &pgSubscription{source: s, id: s.nextID, stream: stream, handler: h}
	s.subs[sub.id] = sub
	metrics.SubscriptionsActive.Inc()
	logger.Info("Database stream subscribed", logger.WithTopic(stream.Name), logger.WithTable(stream.Table))
	return sub, nil
}

// Close stops the listener
func (s *PGSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	n := len(s.subs)
	s.subs = make(map[int]*pgSubscription)
	s.mu.Unlock()

	metrics.SubscriptionsActive.Sub(float64(n))
	close(s.done)
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Stats returns listener statistics
func (s *PGSource) Stats() ConnectionStats {
	s.mu.Lock()
	channels := len(s.subs)
	s.mu.Unlock()

	s.statsLock.RLock()
	defer s.statsLock.RUnlock()
	st := s.stats
	st.Channels = channels
	return st
}

func (s *PGSource) recordMessageReceived() {
	s.statsLock.Lock()
	s.stats.MessagesReceived++
	s.statsLock.Unlock()
}

func (s *PGSource) recordError(msg string) {
	s.statsLock.Lock()
	s.stats.LastError = msg
	s.statsLock.Unlock()
}

func (s *PGSource) recordConnected() {
	s.statsLock.Lock()
	s.stats.ConnectedAt = time.Now()
	s.statsLock.Unlock()
}

func (s *PGSource) recordDisconnected() {
	s.statsLock.Lock()
	s.stats.DisconnectedAt = time.Now()
	s.statsLock.Unlock()
}

type pgSubscription struct {
	source  *PGSource
	id      int
	stream  Stream
	handler ChangeHandler
	once    sync.Once
}

func (p *pgSubscription) matches(table string, fields map[string]interface{}) bool {
	if table != p.stream.Table {
		return false
	}
	if p.stream.Column == "" {
		return true
	}
	v, ok := fields[p.stream.Column]
	return ok && v != nil && fmt.Sprint(v) == p.stream.Value
}

func (p *pgSubscription) Unsubscribe() error {
	p.once.Do(func() {
		p.source.mu.Lock()
		_, ok := p.source.subs[p.id]
		delete(p.source.subs, p.id)
		p.source.mu.Unlock()
		if ok {
			metrics.SubscriptionsActive.Dec()
		}
	})
	return nil
}
