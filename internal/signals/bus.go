// Package signals is the in-process pub/sub used to keep unread badges in step
// with store mutations without a full resync.
package signals

import (
	"sync"

	"go.uber.org/zap"

	"github.com/lingoloop/notifier/internal/logger"
)

// Signal names an application event
type Signal string

const (
	// NotificationDeletedOne fires when an unread notification is removed; badges decrement by one.
	NotificationDeletedOne Signal = "notification:deleted-one"
	// NotificationsCleared fires once per clear-all; badges reset to zero.
	NotificationsCleared Signal = "notifications:cleared"
	// NotificationInserted fires when a new unread notification is added.
	NotificationInserted Signal = "notification:inserted"
	// NotificationRead fires when a notification flips from unread to read.
	NotificationRead Signal = "notification:read"
	// MessageReceived fires for every delivered direct message insert.
	MessageReceived Signal = "message:received"
)

// Event is delivered to subscribers
type Event struct {
	Signal         Signal
	NotificationID string
	ReceiverID     string
}

// Handler receives events. Handlers run synchronously on the emitting goroutine.
type Handler func(Event)

// Bus dispatches signals to subscribers
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Signal]map[int]Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[Signal]map[int]Handler)}
}

// Subscribe registers h for sig and returns an idempotent unsubscribe func
func (b *Bus) Subscribe(sig Signal, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[sig] == nil {
		b.subs[sig] = make(map[int]Handler)
	}
	b.subs[sig][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[sig], id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev to every subscriber of ev.Signal. A panicking handler is
// logged and does not stop delivery to the others.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Signal]))
	for _, h := range b.subs[ev.Signal] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, ev)
	}
}

func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Signal handler panicked",
				zap.String("signal", string(ev.Signal)),
				zap.Any("panic", r),
			)
		}
	}()
	h(ev)
}

// Subscribers returns the number of handlers registered for sig
func (b *Bus) Subscribers(sig Signal) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sig])
}
