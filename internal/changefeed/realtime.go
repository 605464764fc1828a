package changefeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
)

// RealtimeConfig holds realtime websocket configuration
type RealtimeConfig struct {
	URL               string // ws(s)://host/realtime/v1/websocket
	APIKey            string
	AccessToken       string
	HeartbeatInterval time.Duration
	ConnectTimeout    time.Duration
}

// DefaultRealtimeConfig derives the websocket endpoint from the project url
func DefaultRealtimeConfig(projectURL, apiKey string) RealtimeConfig {
	return RealtimeConfig{
		URL:               RealtimeURL(projectURL),
		APIKey:            apiKey,
		HeartbeatInterval: 25 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
}

// RealtimeURL maps https://x.example.co to wss://x.example.co/realtime/v1/websocket
func RealtimeURL(projectURL string) string {
	u := strings.TrimRight(projectURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1/websocket"
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64     `json:"messages_received"`
	MessagesSent     int64     `json:"messages_sent"`
	Channels         int       `json:"channels"`
	LastError        string    `json:"last_error,omitempty"`
	ConnectedAt      time.Time `json:"connected_at"`
	DisconnectedAt   time.Time `json:"disconnected_at"`
}

// RealtimeClient speaks the Phoenix channel protocol of the hosted realtime
// service. One websocket carries every channel. A dropped connection is not
// re-established; open subscriptions are reported lost and the owner decides
// whether to start over.
type RealtimeClient struct {
	cfg    RealtimeConfig
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	connDone chan struct{}
	channels map[string]*channel
	pending  map[string]chan replyPayload
	closed   bool

	writeMu sync.Mutex
	ref     atomic.Uint64

	statsLock sync.RWMutex
	stats     ConnectionStats

	onLost func(error)
}

type channel struct {
	topic   string
	joinRef string
	stream  Stream
	handler ChangeHandler
}

// NewRealtimeClient creates a disconnected client. The socket is opened on
// the first Subscribe.
func NewRealtimeClient(cfg RealtimeConfig) *RealtimeClient {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &RealtimeClient{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		channels: make(map[string]*channel),
		pending:  make(map[string]chan replyPayload),
	}
}

// OnConnectionLost registers a callback for an unexpected socket drop
func (c *RealtimeClient) OnConnectionLost(fn func(error)) {
	c.mu.Lock()
	c.onLost = fn
	c.mu.Unlock()
}

// SetAccessToken changes the token sent with subsequent joins
func (c *RealtimeClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.cfg.AccessToken = token
	c.mu.Unlock()
}

// Subscribe joins a channel for stream and waits for the server to accept it
func (c *RealtimeClient) Subscribe(ctx context.Context, stream Stream, h ChangeHandler) (Subscription, error) {
	topic := topicPrefix + stream.Name
	connDone, err := c.ensureConnected(ctx)
	if err != nil {
		metrics.SubscriptionErrors.WithLabelValues("connect").Inc()
		return nil, apperrors.Subscription(topic, "connect").WithCause(err)
	}

	ref := c.nextRef()
	replies := make(chan replyPayload, 1)

	c.mu.Lock()
	if _, exists := c.channels[topic]; exists {
		c.mu.Unlock()
		return nil, apperrors.Subscription(topic, "already subscribed")
	}
	c.channels[topic] = &channel{topic: topic, joinRef: ref, stream: stream, handler: h}
	c.pending[ref] = replies
	token := c.cfg.AccessToken
	c.mu.Unlock()

	if err := c.send(Message{Topic: topic, Event: eventJoin, Ref: ref, JoinRef: ref}, newJoinPayload(stream, token)); err != nil {
		c.dropChannel(topic, ref)
		metrics.SubscriptionErrors.WithLabelValues("join").Inc()
		return nil, apperrors.Subscription(topic, "join").WithCause(err)
	}

	timer := time.NewTimer(c.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if reply.Status != "ok" {
			c.dropChannel(topic, ref)
			metrics.SubscriptionErrors.WithLabelValues("join").Inc()
			reason := reply.Response.Reason
			if reason == "" {
				reason = reply.Status
			}
			return nil, apperrors.Subscription(topic, reason)
		}
	case <-ctx.Done():
		c.dropChannel(topic, ref)
		return nil, ctx.Err()
	case <-connDone:
		c.dropChannel(topic, ref)
		return nil, apperrors.Subscription(topic, "connection closed during join")
	case <-timer.C:
		c.dropChannel(topic, ref)
		metrics.SubscriptionErrors.WithLabelValues("join_timeout").Inc()
		return nil, apperrors.Subscription(topic, "join timed out")
	}

	metrics.SubscriptionsActive.Inc()
	logger.Info("Realtime channel joined", logger.WithTopic(topic), logger.WithTable(stream.Table))
	return &realtimeSubscription{client: c, topic: topic}, nil
}

// Close leaves every channel and closes the socket
func (c *RealtimeClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	n := len(c.channels)
	c.channels = make(map[string]*channel)
	c.mu.Unlock()

	metrics.SubscriptionsActive.Sub(float64(n))
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// Stats returns connection statistics
func (c *RealtimeClient) Stats() ConnectionStats {
	c.mu.Lock()
	channels := len(c.channels)
	c.mu.Unlock()

	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	s := c.stats
	s.Channels = channels
	return s
}

func (c *RealtimeClient) ensureConnected(ctx context.Context) (chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("realtime client closed")
	}
	if c.conn != nil {
		return c.connDone, nil
	}

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", c.cfg.APIKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	conn, _, err := c.dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		c.recordError(err.Error())
		return nil, err
	}

	c.conn = conn
	c.connDone = make(chan struct{})
	c.recordConnected()

	go c.readLoop(conn, c.connDone)
	go c.heartbeatLoop(conn, c.connDone)

	logger.Debug("Realtime websocket connected", zap.String("url", c.cfg.URL))
	return c.connDone, nil
}

func (c *RealtimeClient) nextRef() string {
	return strconv.FormatUint(c.ref.Add(1), 10)
}

func (c *RealtimeClient) send(msg Message, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg.Payload = data
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	c.recordMessageSent()
	return nil
}

func (c *RealtimeClient) dropChannel(topic, ref string) {
	c.mu.Lock()
	if ch, ok := c.channels[topic]; ok && ch.joinRef == ref {
		delete(c.channels, topic)
	}
	delete(c.pending, ref)
	c.mu.Unlock()
}

func (c *RealtimeClient) leave(topic string) error {
	c.mu.Lock()
	ch, ok := c.channels[topic]
	if ok {
		delete(c.channels, topic)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}

	metrics.SubscriptionsActive.Dec()
	logger.Info("Realtime channel left", logger.WithTopic(topic))
	err := c.send(Message{Topic: topic, Event: eventLeave, Ref: c.nextRef(), JoinRef: ch.joinRef}, struct{}{})
	if err != nil {
		logger.Debug("Leave not sent", logger.WithTopic(topic), zap.Error(err))
	}
	return nil
}

func (c *RealtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, done, err)
			return
		}
		c.recordMessageReceived()

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WarnWithErr("Discarding malformed realtime frame", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *RealtimeClient) handleMessage(msg Message) {
	switch msg.Event {
	case eventReply:
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			logger.WarnWithErr("Malformed reply", err, logger.WithTopic(msg.Topic))
			return
		}
		c.mu.Lock()
		replies, ok := c.pending[msg.Ref]
		delete(c.pending, msg.Ref)
		c.mu.Unlock()
		if ok {
			replies <- reply
		}

	case eventChanges:
		c.dispatchChange(msg)

	case eventError, eventClose:
		c.mu.Lock()
		ch, ok := c.channels[msg.Topic]
		if ok && (msg.JoinRef == "" || msg.JoinRef == ch.joinRef) {
			delete(c.channels, msg.Topic)
		} else {
			ok = false
		}
		c.mu.Unlock()
		if ok {
			metrics.SubscriptionsActive.Dec()
			metrics.SubscriptionErrors.WithLabelValues("channel").Inc()
			logger.Warn("Realtime channel closed by server", logger.WithTopic(msg.Topic), zap.String("event", msg.Event))
		}

	case eventSystem:
		var sys systemPayload
		if err := json.Unmarshal(msg.Payload, &sys); err == nil && sys.Status == "error" {
			metrics.SubscriptionErrors.WithLabelValues("system").Inc()
			c.recordError(sys.Message)
			logger.Warn("Realtime system error", logger.WithTopic(msg.Topic), zap.String("message", sys.Message))
		}
	}
}

func (c *RealtimeClient) dispatchChange(msg Message) {
	c.mu.Lock()
	ch, ok := c.channels[msg.Topic]
	c.mu.Unlock()
	if !ok {
		return
	}

	var payload changesPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		logger.WarnWithErr("Malformed change payload", err, logger.WithTopic(msg.Topic))
		return
	}
	row, err := DecodeRow(payload.Data.Table, payload.Data.Record)
	if err != nil {
		logger.WarnWithErr("Skipping change row", err, logger.WithTopic(msg.Topic))
		return
	}

	change := Change{
		Event:           payload.Data.Type,
		Table:           payload.Data.Table,
		CommitTimestamp: parseCommitTimestamp(payload.Data.CommitTimestamp),
		Row:             row,
	}
	safeHandle(ch.handler, change, msg.Topic)
}

func safeHandle(h ChangeHandler, change Change, topic string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Change handler panicked", logger.WithTopic(topic), zap.Any("panic", r))
		}
	}()
	h(change)
}

func (c *RealtimeClient) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(Message{Topic: heartbeatTopic, Event: eventHeartbeat, Ref: c.nextRef()}, struct{}{}); err != nil {
				logger.Debug("Failed to send heartbeat", zap.Error(err))
			}
		}
	}
}

func (c *RealtimeClient) handleDisconnect(conn *websocket.Conn, done chan struct{}, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	closed := c.closed
	lost := len(c.channels)
	c.channels = make(map[string]*channel)
	onLost := c.onLost
	c.mu.Unlock()

	close(done)
	_ = conn.Close()
	c.recordDisconnected()

	if closed || !current {
		return
	}

	c.recordError(err.Error())
	metrics.SubscriptionsActive.Sub(float64(lost))
	metrics.SubscriptionErrors.WithLabelValues("connection").Inc()
	logger.ErrorWithErr("Realtime connection lost", err, zap.Int("channels", lost))
	if onLost != nil {
		onLost(err)
	}
}

func (c *RealtimeClient) recordMessageReceived() {
	c.statsLock.Lock()
	c.stats.MessagesReceived++
	c.statsLock.Unlock()
}

func (c *RealtimeClient) recordMessageSent() {
	c.statsLock.Lock()
	c.stats.MessagesSent++
	c.statsLock.Unlock()
}

func (c *RealtimeClient) recordError(errMsg string) {
	c.statsLock.Lock()
	c.stats.LastError = errMsg
	c.statsLock.Unlock()
}

func (c *RealtimeClient) recordConnected() {
	c.statsLock.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsLock.Unlock()
}

func (c *RealtimeClient) recordDisconnected() {
	c.statsLock.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsLock.Unlock()
}

type realtimeSubscription struct {
	client *RealtimeClient
	topic  string
	once   sync.Once
	err    error
}

func (s *realtimeSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.client.leave(s.topic)
	})
	return s.err
}
