package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/suite"

	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/signals"
)

type fakeRepo struct {
	mu        sync.Mutex
	list      []models.Notification
	markRead  []string
	deleted   []string
	cleared   []string
	failWith  error
}

func (r *fakeRepo) ListNotifications(_ context.Context, _ string, _ int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.list...), r.failWith
}

func (r *fakeRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markRead = append(r.markRead, id)
	return r.failWith
}

func (r *fakeRepo) DeleteNotification(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return r.failWith
}

func (r *fakeRepo) ClearNotifications(_ context.Context, receiver string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, receiver)
	return r.failWith
}

type StoreTestSuite struct {
	suite.Suite
	repo   *fakeRepo
	bus    *signals.Bus
	store  *Store
	events []signals.Event
	ctx    context.Context
	base   time.Time
}

func (s *StoreTestSuite) SetupTest() {
	s.repo = &fakeRepo{}
	s.bus = signals.NewBus()
	s.store = New(s.repo, s.bus)
	s.store.Reset("p1")
	s.events = nil
	s.ctx = context.Background()
	s.base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	record := func(ev signals.Event) { s.events = append(s.events, ev) }
	s.bus.Subscribe(signals.NotificationDeletedOne, record)
	s.bus.Subscribe(signals.NotificationsCleared, record)
}

func (s *StoreTestSuite) notification(offset time.Duration, read bool) *models.Notification {
	return &models.Notification{
		ID:         gofakeit.UUID(),
		Type:       models.NotificationLike,
		SenderID:   models.Ref(gofakeit.UUID()),
		ReceiverID: "p1",
		TweetID:    models.Ref(gofakeit.UUID()),
		IsRead:     read,
		CreatedAt:  s.base.Add(offset),
	}
}

func (s *StoreTestSuite) count(sig signals.Signal) int {
	n := 0
	for _, ev := range s.events {
		if ev.Signal == sig {
			n++
		}
	}
	return n
}

func (s *StoreTestSuite) ids() []string {
	var out []string
	for _, n := range s.store.Snapshot() {
		out = append(out, n.ID)
	}
	return out
}

func (s *StoreTestSuite) TestInsertPrepends() {
	a := s.notification(0, false)
	b := s.notification(time.Second, false)
	s.True(s.store.Insert(a))
	s.True(s.store.Insert(b))

	s.Equal([]string{b.ID, a.ID}, s.ids())
	s.Equal(2, s.store.UnreadCount())
}

func (s *StoreTestSuite) TestInsertPlacesLateRowByTimestamp() {
	first := s.notification(0, false)
	third := s.notification(2*time.Second, false)
	second := s.notification(time.Second, false)
	s.store.Insert(first)
	s.store.Insert(third)
	s.store.Insert(second)

	s.Equal([]string{third.ID, second.ID, first.ID}, s.ids())
}

func (s *StoreTestSuite) TestInsertIgnoresDuplicatesAndOtherReceivers() {
	n := s.notification(0, false)
	s.True(s.store.Insert(n))
	s.False(s.store.Insert(n))

	other := s.notification(time.Second, false)
	other.ReceiverID = "p2"
	s.False(s.store.Insert(other))
	s.Equal(1, s.store.Len())
}

func (s *StoreTestSuite) TestLoadOrdersNewestFirst() {
	old := s.notification(0, true)
	recent := s.notification(time.Minute, false)
	s.repo.list = []models.Notification{*old, *recent}

	s.Require().NoError(s.store.Load(s.ctx, 50))
	s.Equal([]string{recent.ID, old.ID}, s.ids())
	s.Equal(1, s.store.UnreadCount())
}

func (s *StoreTestSuite) TestMarkReadTwiceIsSingleUpdate() {
	n := s.notification(0, false)
	s.store.Insert(n)

	s.True(s.store.MarkRead(s.ctx, n.ID))
	s.False(s.store.MarkRead(s.ctx, n.ID))
	s.store.Wait()

	got, ok := s.store.Get(n.ID)
	s.Require().True(ok)
	s.True(got.IsRead)
	s.Equal([]string{n.ID}, s.repo.markRead)
}

func (s *StoreTestSuite) TestMarkReadFailureIsNotRolledBack() {
	n := s.notification(0, false)
	s.store.Insert(n)
	s.repo.failWith = errors.New("offline")

	s.store.MarkRead(s.ctx, n.ID)
	s.store.Wait()

	got, _ := s.store.Get(n.ID)
	s.True(got.IsRead)
}

func (s *StoreTestSuite) TestTwoPhaseDeleteOfUnreadEmitsDecrement() {
	n := s.notification(0, false)
	s.store.Insert(n)

	token, err := s.store.RequestDelete(n.ID)
	s.Require().NoError(err)
	s.True(s.store.Has(n.ID), "request alone changes nothing")
	s.Empty(s.repo.deleted)

	s.Require().NoError(s.store.ConfirmDelete(s.ctx, token))
	s.False(s.store.Has(n.ID))
	s.Equal([]string{n.ID}, s.repo.deleted)
	s.Equal(1, s.count(signals.NotificationDeletedOne))
}

func (s *StoreTestSuite) TestDeleteOfReadRecordDoesNotEmitDecrement() {
	n := s.notification(0, true)
	s.store.Insert(n)

	token, err := s.store.RequestDelete(n.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ConfirmDelete(s.ctx, token))

	s.Equal(0, s.count(signals.NotificationDeletedOne))
	s.Equal([]string{n.ID}, s.repo.deleted)
}

func (s *StoreTestSuite) TestCancelledDeleteCannotBeConfirmed() {
	n := s.notification(0, false)
	s.store.Insert(n)

	token, _ := s.store.RequestDelete(n.ID)
	s.store.CancelDelete(token)

	s.Error(s.store.ConfirmDelete(s.ctx, token))
	s.True(s.store.Has(n.ID))
	s.Empty(s.repo.deleted)
}

func (s *StoreTestSuite) TestConfirmDeleteSurfacesBackendError() {
	n := s.notification(0, false)
	s.store.Insert(n)
	s.repo.failWith = errors.New("500")

	token, _ := s.store.RequestDelete(n.ID)
	s.Error(s.store.ConfirmDelete(s.ctx, token))
	s.False(s.store.Has(n.ID))
}

func (s *StoreTestSuite) TestSilentDeleteGatesSignalOnUnread() {
	unread := s.notification(0, false)
	read := s.notification(time.Second, true)
	s.store.Insert(unread)
	s.store.Insert(read)
	s.repo.failWith = errors.New("offline")

	s.store.SilentDelete(s.ctx, unread.ID)
	s.store.SilentDelete(s.ctx, read.ID)
	s.store.SilentDelete(s.ctx, "missing")

	s.Equal(1, s.count(signals.NotificationDeletedOne))
	s.Equal([]string{unread.ID, read.ID}, s.repo.deleted)
	s.Equal(0, s.store.Len())
}

func (s *StoreTestSuite) TestClearAllEmitsOnceAndEmpties() {
	for i := 0; i < 3; i++ {
		s.store.Insert(s.notification(time.Duration(i)*time.Second, i == 0))
	}

	s.Require().NoError(s.store.ClearAll(s.ctx))

	s.Equal(0, s.store.Len())
	s.Equal(1, s.count(signals.NotificationsCleared))
	s.Equal(0, s.count(signals.NotificationDeletedOne))
	s.Equal([]string{"p1"}, s.repo.cleared)
}

func (s *StoreTestSuite) TestClearAllOnEmptyStoreStillEmits() {
	s.Require().NoError(s.store.ClearAll(s.ctx))
	s.Equal(1, s.count(signals.NotificationsCleared))
	s.Equal([]string{"p1"}, s.repo.cleared)
}

func (s *StoreTestSuite) TestClearAllWithoutReceiverFails() {
	s.store.Reset("")
	s.Error(s.store.ClearAll(s.ctx))
	s.Equal(0, s.count(signals.NotificationsCleared))
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
