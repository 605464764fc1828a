package toast

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/lingoloop/notifier/internal/models"
)

// Presentation is how a notification type looks in a toast
type Presentation struct {
	Icon  string
	Label string
	Color lipgloss.Color
}

// PresentationFor maps every notification type to its icon, label and
// colour. Each type has its own case; TestEveryTypeHasPresentation fails
// when a type is added without one.
func PresentationFor(t models.NotificationType) (Presentation, bool) {
	switch t {
	case models.NotificationLike:
		return Presentation{"♥", "liked your post", "#f43f5e"}, true
	case models.NotificationLikeFeed:
		return Presentation{"♥", "liked your post in the feed", "#f43f5e"}, true
	case models.NotificationLikeComment:
		return Presentation{"♥", "liked your comment", "#fb7185"}, true
	case models.NotificationComment:
		return Presentation{"✎", "commented on your post", "#3b82f6"}, true
	case models.NotificationReply:
		return Presentation{"↩", "replied to your comment", "#6366f1"}, true
	case models.NotificationRepost:
		return Presentation{"↻", "reposted your post", "#22c55e"}, true
	case models.NotificationMention:
		return Presentation{"@", "mentioned you", "#eab308"}, true
	case models.NotificationFollow:
		return Presentation{"+", "started following you", "#a855f7"}, true
	case models.NotificationSystem:
		return Presentation{"!", "LingoLoop", "#64748b"}, true
	}
	return Presentation{"•", "sent you a notification", "245"}, false
}

// AttachmentLabel names an attachment kind for a message preview
func AttachmentLabel(k models.AttachmentKind) string {
	switch k {
	case models.AttachmentImage:
		return "Photo"
	case models.AttachmentAudio:
		return "Voice message"
	case models.AttachmentVideo:
		return "Video"
	case models.AttachmentFile:
		return "File"
	}
	return "Attachment"
}

// Headline is the first line of a toast
func Headline(t Toast) string {
	if t.Kind == KindMessage {
		return t.Sender + " sent you a message"
	}
	p, _ := PresentationFor(t.Type)
	if t.Type == models.NotificationSystem {
		return p.Label
	}
	return t.Sender + " " + p.Label
}

// Detail is the second line: the sanitized body, or an attachment summary
// for a message without text
func Detail(t Toast) string {
	if body := Sanitize(t.Body); body != "" {
		return body
	}
	if len(t.Attachments) == 0 {
		return ""
	}
	labels := make([]string, 0, len(t.Attachments))
	for _, k := range t.Attachments {
		labels = append(labels, AttachmentLabel(k))
	}
	return "[" + strings.Join(labels, ", ") + "]"
}

// TerminalRenderer prints toasts to a writer, boxed when it is a terminal
type TerminalRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styled bool
	width  int
}

// NewTerminalRenderer detects whether out is a TTY and sizes boxes to it
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	r := &TerminalRenderer{out: out, width: 60}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.styled = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			r.width = min(w-4, 72)
		}
	}
	return r
}

// Show prints the toast
func (r *TerminalRenderer) Show(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.format(t))
}

// Hide prints a one-line removal notice for explicit dismissals only
func (r *TerminalRenderer) Hide(t Toast, reason Reason) {
	if reason == ReasonExpired {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.styled {
		fmt.Fprintln(r.out, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("  ✕ "+Headline(t)))
		return
	}
	fmt.Fprintf(r.out, "dismissed %s (%s)\n", shortID(t.ID), reason)
}

func (r *TerminalRenderer) format(t Toast) string {
	p, _ := PresentationFor(t.Type)
	if t.Kind == KindMessage {
		p = Presentation{Icon: "✉", Color: "#0ea5e9"}
	}

	headline := Headline(t)
	detail := Detail(t)
	if !r.styled {
		line := fmt.Sprintf("[%s] %s %s", shortID(t.ID), p.Icon, headline)
		if detail != "" {
			line += ": " + detail
		}
		return line
	}

	title := lipgloss.NewStyle().Foreground(p.Color).Bold(true).Render(p.Icon + " " + headline)
	lines := []string{title}
	if detail != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(detail))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).Render(shortID(t.ID)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Color).
		Padding(0, 1).
		Width(r.width).
		Render(strings.Join(lines, "\n"))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
