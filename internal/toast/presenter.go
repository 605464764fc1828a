package toast

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingoloop/notifier/internal/clock"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/models"
)

// Kind separates notification toasts from direct message toasts
type Kind int

const (
	KindNotification Kind = iota
	KindMessage
)

// Toast is one popup
type Toast struct {
	ID             string
	Kind           Kind
	NotificationID string // notification or message id
	Type           models.NotificationType
	Sender         string
	Body           string
	Attachments    []models.AttachmentKind
	ShownAt        time.Time
}

// Reason says why a toast went away
type Reason string

const (
	ReasonExpired   Reason = "expired"
	ReasonClosed    Reason = "closed"
	ReasonNavigated Reason = "navigated"
	ReasonCleared   Reason = "cleared"
)

// Renderer draws and removes toasts. Calls are made without presenter locks held.
type Renderer interface {
	Show(t Toast)
	Hide(t Toast, reason Reason)
}

type entry struct {
	toast     Toast
	countdown Countdown
	timer     clock.Timer
	gen       uint64
}

// Presenter owns the active toasts. Each toast has its own countdown;
// hovering one never affects another.
type Presenter struct {
	clock    clock.Clock
	duration time.Duration
	renderer Renderer

	mu     sync.Mutex
	toasts map[string]*entry
}

// NewPresenter creates a presenter. duration <= 0 means DefaultDuration.
func NewPresenter(clk clock.Clock, duration time.Duration, renderer Renderer) *Presenter {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Presenter{
		clock:    clk,
		duration: duration,
		renderer: renderer,
		toasts:   make(map[string]*entry),
	}
}

// Show displays t and starts its countdown. It returns the toast id.
func (p *Presenter) Show(t Toast) string {
	t.ID = uuid.NewString()
	now := p.clock.Now()
	t.ShownAt = now

	p.mu.Lock()
	e := &entry{toast: t, countdown: StartCountdown(now, p.duration)}
	p.toasts[t.ID] = e
	p.armLocked(e)
	p.mu.Unlock()

	metrics.ToastsShown.WithLabelValues(typeLabel(t)).Inc()
	logger.Debug("Toast shown", logger.WithNotificationID(t.NotificationID))
	if p.renderer != nil {
		p.renderer.Show(t)
	}
	return t.ID
}

// Hover pauses the countdown of one toast
func (p *Presenter) Hover(id string) {
	p.mu.Lock()
	e, ok := p.toasts[id]
	if !ok || e.countdown.Phase != Running {
		p.mu.Unlock()
		return
	}
	p.disarmLocked(e)
	e.countdown = e.countdown.Pause(p.clock.Now())
	if e.countdown.Phase != Expired {
		p.mu.Unlock()
		return
	}
	// deadline passed before the timer callback ran
	delete(p.toasts, id)
	p.mu.Unlock()

	p.hidden(e.toast, ReasonExpired)
}

// Leave resumes a paused toast with its remaining time
func (p *Presenter) Leave(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.toasts[id]
	if !ok || e.countdown.Phase != Paused {
		return
	}
	e.countdown = e.countdown.Resume(p.clock.Now())
	p.armLocked(e)
}

// Dismiss removes a toast immediately
func (p *Presenter) Dismiss(id string, reason Reason) bool {
	p.mu.Lock()
	e, ok := p.toasts[id]
	if ok {
		p.disarmLocked(e)
		e.countdown = e.countdown.Dismiss()
		delete(p.toasts, id)
	}
	p.mu.Unlock()

	if ok {
		p.hidden(e.toast, reason)
	}
	return ok
}

// DismissNotification removes every toast showing notificationID
func (p *Presenter) DismissNotification(notificationID string, reason Reason) int {
	p.mu.Lock()
	var gone []Toast
	for id, e := range p.toasts {
		if e.toast.NotificationID == notificationID {
			p.disarmLocked(e)
			delete(p.toasts, id)
			gone = append(gone, e.toast)
		}
	}
	p.mu.Unlock()

	for _, t := range gone {
		p.hidden(t, reason)
	}
	return len(gone)
}

// DismissAll removes every toast
func (p *Presenter) DismissAll(reason Reason) {
	p.mu.Lock()
	gone := make([]Toast, 0, len(p.toasts))
	for id, e := range p.toasts {
		p.disarmLocked(e)
		delete(p.toasts, id)
		gone = append(gone, e.toast)
	}
	p.mu.Unlock()

	for _, t := range gone {
		p.hidden(t, reason)
	}
}

// Active returns the visible toasts, oldest first
func (p *Presenter) Active() []Toast {
	p.mu.Lock()
	out := make([]Toast, 0, len(p.toasts))
	for _, e := range p.toasts {
		out = append(out, e.toast)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ShownAt.Before(out[j].ShownAt) })
	return out
}

// State returns the countdown of one toast
func (p *Presenter) State(id string) (Countdown, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.toasts[id]
	if !ok {
		return Countdown{}, false
	}
	return e.countdown, true
}

// Find returns the id of the newest toast for notificationID
func (p *Presenter) Find(notificationID string) (string, bool) {
	var best *entry
	p.mu.Lock()
	for _, e := range p.toasts {
		if e.toast.NotificationID == notificationID && (best == nil || e.toast.ShownAt.After(best.toast.ShownAt)) {
			best = e
		}
	}
	p.mu.Unlock()
	if best == nil {
		return "", false
	}
	return best.toast.ID, true
}

func (p *Presenter) armLocked(e *entry) {
	e.gen++
	gen := e.gen
	id := e.toast.ID
	e.timer = p.clock.AfterFunc(e.countdown.RemainingAt(p.clock.Now()), func() {
		p.fire(id, gen)
	})
}

func (p *Presenter) disarmLocked(e *entry) {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (p *Presenter) fire(id string, gen uint64) {
	p.mu.Lock()
	e, ok := p.toasts[id]
	if !ok || e.gen != gen {
		p.mu.Unlock()
		return
	}
	e.countdown = e.countdown.Tick(p.clock.Now())
	if e.countdown.Phase != Expired {
		// woke early; wait out the rest
		p.armLocked(e)
		p.mu.Unlock()
		return
	}
	delete(p.toasts, id)
	p.mu.Unlock()

	p.hidden(e.toast, ReasonExpired)
}

func (p *Presenter) hidden(t Toast, reason Reason) {
	metrics.ToastsDismissed.WithLabelValues(string(reason)).Inc()
	if p.renderer != nil {
		p.renderer.Hide(t, reason)
	}
}

func typeLabel(t Toast) string {
	if t.Kind == KindMessage {
		return "message"
	}
	return string(t.Type)
}
