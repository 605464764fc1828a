package changefeed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/auth"
	"github.com/lingoloop/notifier/internal/dedup"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/models"
)

// ProfileResolver maps an auth user id to the profile id rows reference
type ProfileResolver interface {
	ProfileIDForUser(ctx context.Context, userID string) (string, error)
}

// Handler receives deduplicated inserts tagged with the epoch they were
// delivered under. A handler doing async work must check Adapter.Current
// before applying results.
type Handler interface {
	HandleNotification(epoch uint64, n *models.Notification)
	HandleMessage(epoch uint64, m *models.DirectMessage)
}

// Adapter keeps exactly one subscription per stream for the current identity.
// Every Start bumps the epoch; events and async results tagged with an older
// epoch are dropped.
type Adapter struct {
	source   Source
	profiles ProfileResolver
	filter   dedup.Filter
	handler  Handler

	mu        sync.Mutex
	epoch     uint64
	identity  *auth.Identity
	profileID string
	subs      []Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewAdapter wires the adapter. filter is consulted before handler for every insert.
func NewAdapter(source Source, profiles ProfileResolver, filter dedup.Filter, handler Handler) *Adapter {
	return &Adapter{
		source:   source,
		profiles: profiles,
		filter:   filter,
		handler:  handler,
	}
}

// Start tears down any open subscriptions and, for a non-nil identity,
// resolves its profile id and opens the notification and message streams.
// Resolution is asynchronous; inserts before it completes are missed.
func (a *Adapter) Start(ctx context.Context, id *auth.Identity) {
	a.mu.Lock()
	old := a.teardownLocked()
	a.epoch++
	epoch := a.epoch
	a.identity = id
	if id != nil {
		a.ctx, a.cancel = context.WithCancel(ctx)
	}
	runCtx := a.ctx
	a.mu.Unlock()

	closeAll(old)

	if id == nil {
		logger.Info("No identity; change feed idle", logger.WithEpoch(epoch))
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.subscribe(runCtx, epoch, id)
	}()
}

// Stop closes every subscription. Events already in flight are discarded.
func (a *Adapter) Stop() {
	a.mu.Lock()
	old := a.teardownLocked()
	a.epoch++
	a.identity = nil
	a.mu.Unlock()

	closeAll(old)
}

// Wait blocks until pending profile resolution has finished
func (a *Adapter) Wait() {
	a.wg.Wait()
}

// Epoch returns the current generation
func (a *Adapter) Epoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// Current reports whether epoch is still the live generation
func (a *Adapter) Current(epoch uint64) bool {
	return a.Epoch() == epoch
}

// ProfileID returns the resolved profile id, or "" before resolution
func (a *Adapter) ProfileID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profileID
}

// Identity returns the identity passed to the last Start
func (a *Adapter) Identity() *auth.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity
}

// Subscriptions returns the number of open streams
func (a *Adapter) Subscriptions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// Stats reports adapter and source state for the health endpoint
func (a *Adapter) Stats() map[string]interface{} {
	a.mu.Lock()
	stats := map[string]interface{}{
		"epoch":         a.epoch,
		"profile_id":    a.profileID,
		"subscriptions": len(a.subs),
	}
	a.mu.Unlock()
	if r, ok := a.source.(StatsReporter); ok {
		stats["connection"] = r.Stats()
	}
	return stats
}

func (a *Adapter) teardownLocked() []Subscription {
	old := a.subs
	a.subs = nil
	a.profileID = ""
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return old
}

func closeAll(subs []Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.WarnWithErr("Unsubscribe failed", err)
		}
	}
}

func (a *Adapter) subscribe(ctx context.Context, epoch uint64, id *auth.Identity) {
	profileID, err := a.profiles.ProfileIDForUser(ctx, id.UserID)
	if err != nil {
		metrics.SubscriptionErrors.WithLabelValues("profile").Inc()
		logger.ErrorWithErr("Could not resolve profile; change feed idle", err,
			logger.WithUserID(id.UserID), logger.WithEpoch(epoch))
		return
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return
	}
	a.profileID = profileID
	a.mu.Unlock()

	var opened []Subscription
	for _, stream := range []Stream{NotificationStream(profileID), MessageStream(profileID)} {
		sub, err := a.source.Subscribe(ctx, stream, a.onChange(ctx, epoch))
		if err != nil {
			logger.ErrorWithErr("Subscription failed", err, logger.WithTopic(stream.Name), logger.WithEpoch(epoch))
			continue
		}
		opened = append(opened, sub)
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		closeAll(opened)
		return
	}
	a.subs = append(a.subs, opened...)
	a.mu.Unlock()

	logger.Info("Change feed started",
		logger.WithUserID(id.UserID),
		logger.WithProfileID(profileID),
		logger.WithEpoch(epoch),
		zap.Int("streams", len(opened)),
	)
}

func (a *Adapter) onChange(ctx context.Context, epoch uint64) ChangeHandler {
	return func(ch Change) {
		if !a.Current(epoch) || ch.Event != EventInsert {
			return
		}
		metrics.ChangeEventsTotal.WithLabelValues(ch.Table).Inc()

		switch row := ch.Row.(type) {
		case NotificationRow:
			n := row.Notification
			if !a.filter.ShouldDeliver(ctx, dedup.KeyFor(&n)) {
				return
			}
			a.handler.HandleNotification(epoch, &n)
		case DirectMessageRow:
			m := row.Message
			if !a.filter.ShouldDeliver(ctx, dedup.KeyForMessage(&m)) {
				return
			}
			a.handler.HandleMessage(epoch, &m)
		}
	}
}
