package delivery

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/auth"
	"github.com/lingoloop/notifier/internal/badge"
	"github.com/lingoloop/notifier/internal/changefeed"
	"github.com/lingoloop/notifier/internal/dedup"
	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/resolver"
	"github.com/lingoloop/notifier/internal/signals"
	"github.com/lingoloop/notifier/internal/store"
	"github.com/lingoloop/notifier/internal/toast"
)

// DefaultLoadLimit is how many notifications the initial load fetches
const DefaultLoadLimit = 50

// Repository is everything the listener reads from or writes to the backend.
// *backend.Repository satisfies it.
type Repository interface {
	store.Repository
	resolver.CommentChecker
	changefeed.ProfileResolver
	Profile(ctx context.Context, id string) (*models.Profile, error)
	AttachmentKinds(ctx context.Context, messageID string) ([]models.AttachmentKind, error)
}

// Navigator performs the side effects of a click
type Navigator interface {
	Navigate(ctx context.Context, route resolver.Route) error
	Notify(message string)
}

// Config wires a Listener
type Config struct {
	Source    changefeed.Source
	Filter    dedup.Filter
	Repo      Repository
	Bus       *signals.Bus
	Presenter *toast.Presenter
	Navigator Navigator
	LoadLimit int
}

// Listener is the composition root: change feed in, store, badges and toasts out
type Listener struct {
	repo      Repository
	bus       *signals.Bus
	presenter *toast.Presenter
	nav       Navigator
	limit     int

	adapter  *changefeed.Adapter
	store    *store.Store
	resolver *resolver.Resolver
	unread   *badge.Counter
	chat     *badge.Counter
	profiles *profileCache

	startMu sync.Mutex
	wg      sync.WaitGroup
}

// NewListener builds the listener and its components. Nothing runs until Start.
func NewListener(cfg Config) *Listener {
	if cfg.Bus == nil {
		cfg.Bus = signals.NewBus()
	}
	if cfg.Filter == nil {
		cfg.Filter = dedup.NewCache()
	}
	if cfg.Presenter == nil {
		cfg.Presenter = toast.NewPresenter(nil, 0, nil)
	}
	if cfg.LoadLimit <= 0 {
		cfg.LoadLimit = DefaultLoadLimit
	}

	l := &Listener{
		repo:      cfg.Repo,
		bus:       cfg.Bus,
		presenter: cfg.Presenter,
		nav:       cfg.Navigator,
		limit:     cfg.LoadLimit,
		store:     store.New(cfg.Repo, cfg.Bus),
		resolver:  resolver.New(cfg.Repo),
		unread:    badge.NewNotificationCounter(cfg.Bus),
		chat:      badge.NewChatCounter(cfg.Bus),
		profiles:  &profileCache{next: cfg.Repo, ids: make(map[string]string)},
	}
	l.adapter = changefeed.NewAdapter(cfg.Source, l.profiles, cfg.Filter, l)
	return l
}

// Load scopes the store and badges to id and fetches its notifications
// without opening the change feed. A nil id empties the store.
func (l *Listener) Load(ctx context.Context, id *auth.Identity) error {
	l.startMu.Lock()
	defer l.startMu.Unlock()
	_, err := l.load(ctx, id)
	return err
}

// Start is Load followed by opening the change feed for id. A nil id stops
// delivery. A failed initial load is returned but the feed is still started.
func (l *Listener) Start(ctx context.Context, id *auth.Identity) error {
	l.startMu.Lock()
	defer l.startMu.Unlock()

	scoped, err := l.load(ctx, id)
	if !scoped {
		l.adapter.Start(ctx, nil)
		return err
	}
	l.adapter.Start(ctx, id)
	return err
}

func (l *Listener) load(ctx context.Context, id *auth.Identity) (bool, error) {
	l.presenter.DismissAll(toast.ReasonCleared)
	l.chat.Reset()
	if id == nil {
		l.store.Reset("")
		l.unread.Reset()
		return false, nil
	}

	profileID, err := l.profiles.ProfileIDForUser(ctx, id.UserID)
	if err != nil {
		l.store.Reset("")
		l.unread.Reset()
		return false, err
	}

	l.store.Reset(profileID)
	loadErr := l.store.Load(ctx, l.limit)
	if loadErr != nil {
		logger.WarnWithErr("Initial notification load failed", loadErr, logger.WithProfileID(profileID))
	}
	l.unread.Set(l.store.UnreadCount())
	return true, loadErr
}

// Stop closes the change feed and waits for in-flight work
func (l *Listener) Stop() {
	l.adapter.Stop()
	l.adapter.Wait()
	l.wg.Wait()
	l.store.Wait()
}

// Close stops the listener and detaches the badges from the bus
func (l *Listener) Close() {
	l.Stop()
	l.unread.Close()
	l.chat.Close()
}

// HandleNotification stores the row and shows a toast once the sender is known
func (l *Listener) HandleNotification(epoch uint64, n *models.Notification) {
	if !l.store.Insert(n) {
		return
	}

	row := *n
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx := context.Background()

		sender := ""
		if !row.IsSystem() {
			sender = l.senderName(ctx, row.Sender())
		}
		if !l.adapter.Current(epoch) || !l.store.Has(row.ID) {
			logger.Debug("Dropping stale notification toast", logger.WithNotificationID(row.ID), logger.WithEpoch(epoch))
			return
		}
		l.presenter.Show(toast.Toast{
			Kind:           toast.KindNotification,
			NotificationID: row.ID,
			Type:           row.Type,
			Sender:         sender,
			Body:           models.Deref(row.Content),
		})
	}()
}

// HandleMessage bumps the chat badge and shows a message toast
func (l *Listener) HandleMessage(epoch uint64, m *models.DirectMessage) {
	l.bus.Emit(signals.Event{Signal: signals.MessageReceived, NotificationID: m.ID, ReceiverID: m.ReceiverID})

	msg := *m
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx := context.Background()

		sender := l.senderName(ctx, msg.SenderID)
		kinds, err := l.repo.AttachmentKinds(ctx, msg.ID)
		if err != nil {
			logger.WarnWithErr("Could not load message attachments", err, zap.String("message_id", msg.ID))
		}
		if !l.adapter.Current(epoch) {
			return
		}
		l.presenter.Show(toast.Toast{
			Kind:           toast.KindMessage,
			NotificationID: msg.ID,
			Sender:         sender,
			Body:           msg.Content,
			Attachments:    kinds,
		})
	}()
}

func (l *Listener) senderName(ctx context.Context, profileID string) string {
	if profileID == "" {
		return models.UnknownUser
	}
	p, err := l.repo.Profile(ctx, profileID)
	if err != nil {
		logger.WarnWithErr("Could not load sender profile", err, logger.WithProfileID(profileID))
		return models.UnknownUser
	}
	return p.DisplayName()
}

// Click handles a user opening a notification: mark read, resolve, navigate,
// then remove the record when it points at deleted content.
func (l *Listener) Click(ctx context.Context, id string) (resolver.Decision, error) {
	n, ok := l.store.Get(id)
	if !ok {
		return resolver.Decision{}, apperrors.NotFound("notification")
	}
	epoch := l.adapter.Epoch()

	if !n.IsSystem() {
		l.store.MarkRead(ctx, id)
	}

	d := l.resolver.Resolve(ctx, &n)
	if l.adapter.Epoch() != epoch {
		logger.Info("Identity changed during click; ignoring", logger.WithNotificationID(id))
		return d, nil
	}

	l.presenter.DismissNotification(id, toast.ReasonNavigated)

	if d.Route != nil && l.nav != nil {
		if err := l.nav.Navigate(ctx, *d.Route); err != nil {
			return d, err
		}
	}
	if d.Delete && l.store.Has(id) {
		l.store.SilentDelete(ctx, id)
	}
	if d.Notice != "" && l.nav != nil {
		l.nav.Notify(d.Notice)
	}
	return d, nil
}

// Dismiss closes the toasts of one notification
func (l *Listener) Dismiss(id string) int {
	return l.presenter.DismissNotification(id, toast.ReasonClosed)
}

// Match finds the one stored notification whose id starts with prefix
func (l *Listener) Match(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", apperrors.ValidationError("id", "id is required")
	}
	var found []string
	for _, n := range l.store.Snapshot() {
		if n.ID == prefix {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, prefix) {
			found = append(found, n.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", apperrors.NotFound("notification")
	case 1:
		return found[0], nil
	default:
		return "", apperrors.BadRequest("id prefix " + prefix + " is ambiguous")
	}
}

func (l *Listener) Store() *store.Store { return l.store }
func (l *Listener) Presenter() *toast.Presenter { return l.presenter }
func (l *Listener) Adapter() *changefeed.Adapter { return l.adapter }
func (l *Listener) UnreadBadge() *badge.Counter { return l.unread }
func (l *Listener) ChatBadge() *badge.Counter { return l.chat }

// Stats reports listener state for the health endpoint
func (l *Listener) Stats() map[string]interface{} {
	stats := l.adapter.Stats()
	stats["stored"] = l.store.Len()
	stats["unread"] = l.unread.Count()
	stats["chat_unread"] = l.chat.Count()
	stats["toasts"] = len(l.presenter.Active())
	return stats
}

// profileCache remembers user id to profile id lookups so the initial load
// and the adapter share one backend call
type profileCache struct {
	next changefeed.ProfileResolver

	mu  sync.Mutex
	ids map[string]string
}

func (c *profileCache) ProfileIDForUser(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[userID]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := c.next.ProfileIDForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.ids[userID] = id
	c.mu.Unlock()
	return id, nil
}
