// Package badge keeps the unread counters shown next to the notification bell
// and the chat icon.
package badge

import (
	"sync"

	"github.com/lingoloop/notifier/internal/signals"
)

// Counter is a non-negative unread count driven by signals
type Counter struct {
	mu       sync.Mutex
	count    int
	onChange func(int)
	unsubs   []func()
}

// NewNotificationCounter follows inserts, reads, single deletes and clear-all
func NewNotificationCounter(bus *signals.Bus) *Counter {
	c := &Counter{}
	c.unsubs = []func(){
		bus.Subscribe(signals.NotificationInserted, func(signals.Event) { c.Add(1) }),
		bus.Subscribe(signals.NotificationRead, func(signals.Event) { c.Add(-1) }),
		bus.Subscribe(signals.NotificationDeletedOne, func(signals.Event) { c.Add(-1) }),
		bus.Subscribe(signals.NotificationsCleared, func(signals.Event) { c.Set(0) }),
	}
	return c
}

// NewChatCounter counts direct messages delivered since the last Reset
func NewChatCounter(bus *signals.Bus) *Counter {
	c := &Counter{}
	c.unsubs = []func(){
		bus.Subscribe(signals.MessageReceived, func(signals.Event) { c.Add(1) }),
	}
	return c
}

// OnChange registers a callback invoked with the new value after every change
func (c *Counter) OnChange(fn func(int)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Count returns the current value
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Set replaces the value, e.g. after the initial list load
func (c *Counter) Set(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	c.count = n
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Add applies delta, never going below zero
func (c *Counter) Add(delta int) {
	c.mu.Lock()
	c.count += delta
	if c.count < 0 {
		c.count = 0
	}
	n := c.count
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Reset sets the counter to zero
func (c *Counter) Reset() { c.Set(0) }

// Close detaches the counter from the bus
func (c *Counter) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
}
