// Package store holds the in-memory notification list for the current
// receiver. Mutations apply locally first and are then sent to the backend.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/signals"
)

// Repository is the backend surface the store mutates
type Repository interface {
	ListNotifications(ctx context.Context, receiverID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context, receiverID string) error
}

// Store is the local mirror of the receiver's notifications, newest first.
// No lock is held across a backend call.
type Store struct {
	repo Repository
	bus  *signals.Bus

	mu       sync.Mutex
	receiver string
	items    []models.Notification
	pending  map[string]string // delete token -> notification id

	inflight sync.WaitGroup
}

// New creates an empty store
func New(repo Repository, bus *signals.Bus) *Store {
	return &Store{
		repo:    repo,
		bus:     bus,
		pending: make(map[string]string),
	}
}

// Reset empties the store and scopes it to receiverID
func (s *Store) Reset(receiverID string) {
	s.mu.Lock()
	s.receiver = receiverID
	s.items = nil
	s.pending = make(map[string]string)
	s.updateGaugesLocked()
	s.mu.Unlock()
}

// Receiver returns the profile id the store is scoped to
func (s *Store) Receiver() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiver
}

// Load replaces the list with the receiver's notifications from the backend.
// The result is dropped if the store was reset to another receiver meanwhile.
func (s *Store) Load(ctx context.Context, limit int) error {
	receiver := s.Receiver()
	if receiver == "" {
		return apperrors.ValidationError("receiver_id", "store has no receiver")
	}

	list, err := s.repo.ListNotifications(ctx, receiver, limit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiver != receiver {
		return nil
	}
	s.items = list
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].CreatedAt.After(s.items[j].CreatedAt)
	})
	s.updateGaugesLocked()
	return nil
}

// Insert adds a delivered row. Rows normally arrive newest-last and are
// prepended; a row older than the current head is placed by CreatedAt so the
// list stays in descending order. Duplicate ids and rows for another
// receiver are ignored.
func (s *Store) Insert(n *models.Notification) bool {
	s.mu.Lock()
	if s.receiver != "" && n.ReceiverID != s.receiver {
		s.mu.Unlock()
		return false
	}
	if s.indexLocked(n.ID) >= 0 {
		s.mu.Unlock()
		return false
	}

	pos := 0
	if len(s.items) > 0 && !n.CreatedAt.IsZero() && n.CreatedAt.Before(s.items[0].CreatedAt) {
		pos = sort.Search(len(s.items), func(i int) bool {
			return !s.items[i].CreatedAt.After(n.CreatedAt)
		})
		logger.Debug("Late row placed by timestamp", logger.WithNotificationID(n.ID), zap.Int("position", pos))
	}
	s.items = append(s.items, models.Notification{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = *n
	s.updateGaugesLocked()
	unread := !n.IsRead
	s.mu.Unlock()

	if unread {
		s.emit(signals.NotificationInserted, n.ID)
	}
	return true
}

// Snapshot returns a copy of the list
func (s *Store) Snapshot() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns a copy of one record
func (s *Store) Get(id string) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return models.Notification{}, false
}

// Has reports whether id is still in the list
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// UnreadCount returns the number of unread records
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

// MarkRead flips is_read locally and sends the update without waiting.
// A record already read is left alone and no request is made. Backend
// failures are logged and not rolled back.
func (s *Store) MarkRead(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 || s.items[i].IsRead {
		s.mu.Unlock()
		return false
	}
	s.items[i].IsRead = true
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.emit(signals.NotificationRead, id)

	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.repo.MarkRead(bg, id); err != nil {
			logger.WarnWithErr("Mark read failed; local state kept", err, logger.WithNotificationID(id))
		}
	}()
	return true
}

// RequestDelete is the first phase of a user delete. It returns a token to
// pass to ConfirmDelete; nothing changes until then.
func (s *Store) RequestDelete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) < 0 {
		return "", apperrors.NotFound("notification")
	}
	token := uuid.NewString()
	s.pending[token] = id
	return token, nil
}

// CancelDelete discards a pending delete request
func (s *Store) CancelDelete(token string) {
	s.mu.Lock()
	delete(s.pending, token)
	s.mu.Unlock()
}

// ConfirmDelete removes the record locally, emits the decrement signal if it
// was unread, and deletes it on the backend. The backend error is returned
// for the caller to show; the local removal stands.
func (s *Store) ConfirmDelete(ctx context.Context, token string) error {
	s.mu.Lock()
	id, ok := s.pending[token]
	delete(s.pending, token)
	s.mu.Unlock()
	if !ok {
		return apperrors.BadRequest("unknown or expired delete request")
	}

	removed, found := s.remove(id)
	if !found {
		return nil
	}
	if !removed.IsRead {
		s.emit(signals.NotificationDeletedOne, id)
	}

	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		logger.ErrorWithErr("Delete failed", err, logger.WithNotificationID(id))
		return err
	}
	return nil
}

// SilentDelete is the system-initiated delete used for stale notifications.
// No confirmation; failures are logged only.
func (s *Store) SilentDelete(ctx context.Context, id string) {
	removed, found := s.remove(id)
	if !found {
		return
	}
	if !removed.IsRead {
		s.emit(signals.NotificationDeletedOne, id)
	}
	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		logger.WarnWithErr("Silent delete failed", err, logger.WithNotificationID(id))
	}
}

// ClearAll empties the list and bulk deletes the receiver's notifications.
// notifications:cleared is emitted exactly once, also for an empty list.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	receiver := s.receiver
	if receiver == "" {
		s.mu.Unlock()
		return apperrors.ValidationError("receiver_id", "store has no receiver")
	}
	s.items = nil
	s.pending = make(map[string]string)
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.emit(signals.NotificationsCleared, "")

	if err := s.repo.ClearNotifications(ctx, receiver); err != nil {
		logger.ErrorWithErr("Clear all failed", err, logger.WithProfileID(receiver))
		return err
	}
	return nil
}

// Wait blocks until fire-and-forget requests have finished
func (s *Store) Wait() {
	s.inflight.Wait()
}

func (s *Store) remove(id string) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.Notification{}, false
	}
	n := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	for token, pid := range s.pending {
		if pid == id {
			delete(s.pending, token)
		}
	}
	s.updateGaugesLocked()
	return n, true
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) unreadLocked() int {
	n := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			n++
		}
	}
	return n
}

func (s *Store) updateGaugesLocked() {
	metrics.StoreSize.Set(float64(len(s.items)))
	metrics.UnreadCount.Set(float64(s.unreadLocked()))
}

func (s *Store) emit(sig signals.Signal, id string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(signals.Event{Signal: sig, NotificationID: id, ReceiverID: s.Receiver()})
}
