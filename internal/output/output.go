// Package output prints command results as text, tables or JSON
package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"

	"github.com/lingoloop/notifier/internal/config"
	"github.com/lingoloop/notifier/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format is an output format name
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatText  Format = "text"
)

// ConfiguredFormat returns output.format from the config, text by default
func ConfiguredFormat() Format {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidFormat reports whether format names a known format
func ValidFormat(format string) bool {
	return format == string(FormatJSON) || format == string(FormatTable) || format == string(FormatText)
}

// Printer writes results in one format
type Printer struct {
	out    io.Writer
	format Format
}

// New creates a printer. A nil out writes to color.Output.
func New(out io.Writer, format Format) *Printer {
	if out == nil {
		out = color.Output
	}
	return &Printer{out: out, format: format}
}

// Notifications prints a notification list
func (p *Printer) Notifications(list []models.Notification) error {
	if p.format == FormatJSON {
		return p.JSON(list)
	}
	if len(list) == 0 {
		p.Info("No notifications")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	bold.Fprintln(w, "ID\tTYPE\tFROM\tTARGET\tAGE\t")
	for _, n := range list {
		id := n.ID
		if p.format == FormatText && len(id) > 8 {
			id = id[:8]
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t", id, n.Type, senderLabel(&n), target(&n), age(n.CreatedAt))
		if n.IsRead {
			fmt.Fprintln(w, line)
		} else {
			color.New(color.FgCyan).Fprintln(w, line)
		}
	}
	return w.Flush()
}

// Record prints key/value pairs in the given order
func (p *Printer) Record(keys []string, values map[string]interface{}) error {
	if p.format == FormatJSON {
		return p.JSON(values)
	}
	bold := color.New(color.Bold)
	for _, k := range keys {
		bold.Fprint(p.out, k+": ")
		fmt.Fprintf(p.out, "%v\n", values[k])
	}
	return nil
}

// JSON prints v as indented JSON
func (p *Printer) JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

// Success prints a green message
func (p *Printer) Success(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(p.out, msg+"\n", args...)
}

// Info prints a cyan message
func (p *Printer) Info(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(p.out, msg+"\n", args...)
}

// Warning prints a yellow message
func (p *Printer) Warning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(p.out, "Warning: "+msg+"\n", args...)
}

// Error prints a red message
func (p *Printer) Error(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(p.out, "Error: "+msg+"\n", args...)
}

func senderLabel(n *models.Notification) string {
	if n.IsSystem() {
		return "system"
	}
	if s := n.Sender(); s != "" {
		if len(s) > 8 {
			return s[:8]
		}
		return s
	}
	return "-"
}

func target(n *models.Notification) string {
	switch {
	case models.HasRef(n.CommentID):
		return "comment " + models.Deref(n.CommentID)
	case models.HasRef(n.TweetID):
		return "post " + models.Deref(n.TweetID)
	default:
		return "-"
	}
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
