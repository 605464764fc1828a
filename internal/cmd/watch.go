package cmd

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lingoloop/notifier/internal/changefeed"
	"github.com/lingoloop/notifier/internal/clock"
	"github.com/lingoloop/notifier/internal/config"
	"github.com/lingoloop/notifier/internal/delivery"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/output"
	"github.com/lingoloop/notifier/internal/telemetry"
	"github.com/lingoloop/notifier/internal/toast"
)

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications and messages as toasts",
	Long: `Stream new notifications and direct messages as they arrive.

While watching, type a command and press enter:
  open <id>      open a notification (id prefixes work)
  read <id>      mark a notification as read
  dismiss <id>   close its toast
  hold <id>      pause its toast countdown
  release <id>   resume its toast countdown
  list           show stored notifications
  quit           stop watching`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	filter, closeFilter, err := dedupFilter(ctx)
	if err != nil {
		return err
	}
	defer closeFilter()

	source, err := a.changeSource(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.WarnWithErr("Closing change feed failed", err)
		}
	}()
	if rc, ok := source.(*changefeed.RealtimeClient); ok {
		rc.OnConnectionLost(func(err error) {
			a.printer.Error("connection lost: %v", err)
			cancel()
		})
	}

	presenter := toast.NewPresenter(clock.Real{}, config.GetMillis("toast.duration_ms"), toast.NewTerminalRenderer(os.Stdout))
	l := a.listener(source, filter, presenter)
	defer l.Close()

	l.UnreadBadge().OnChange(func(n int) {
		a.printer.Info("● %d unread", n)
	})
	l.ChatBadge().OnChange(func(n int) {
		a.printer.Info("✉ %d new messages", n)
	})

	if metricsAddr == "" {
		metricsAddr = config.GetString("metrics.addr")
	}
	if metricsAddr != "" {
		srv := metrics.NewServer(metricsAddr, telemetry.ServiceName, l.Stats)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WarnWithErr("Metrics server shutdown failed", err)
			}
		}()
	}

	if err := l.Start(ctx, a.identity); err != nil {
		a.printer.Warning("could not load notifications: %v", err)
	}
	a.printer.Info("Watching for notifications. Type help for commands, Ctrl+C to stop.")
	a.printer.Info("● %d unread", l.UnreadBadge().Count())

	go readCommands(ctx, os.Stdin, l, a.printer, cancel)

	<-ctx.Done()
	a.printer.Info("Stopping")
	return nil
}

// readCommands runs stdin commands until quit, EOF or ctx ends
func readCommands(ctx context.Context, in io.Reader, l *delivery.Listener, p *output.Printer, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !runCommand(ctx, scanner.Text(), l, p) {
			quit()
			return
		}
	}
}

// runCommand executes one watch command. It returns false on quit.
func runCommand(ctx context.Context, line string, l *delivery.Listener, p *output.Printer) bool {
	verb, arg := parseCommand(line)
	switch verb {
	case "":
		return true
	case "quit", "exit", "q":
		return false
	case "help", "?":
		p.Info("commands: open, read, dismiss, hold, release, list, quit")
		return true
	case "list", "ls":
		if err := p.Notifications(l.Store().Snapshot()); err != nil {
			p.Error("%v", err)
		}
		return true
	}

	switch verb {
	case "open", "read", "dismiss", "hold", "release":
	default:
		p.Error("unknown command %q; type help", verb)
		return true
	}
	if arg == "" {
		p.Error("%s needs a notification id", verb)
		return true
	}
	id, err := l.Match(arg)
	if err != nil && verb != "dismiss" && verb != "hold" && verb != "release" {
		p.Error("%v", err)
		return true
	}
	if err != nil {
		// message toasts are not in the store; fall back to the raw id
		id = arg
	}

	switch verb {
	case "open":
		if _, err := l.Click(ctx, id); err != nil {
			p.Error("%v", err)
		}
	case "read":
		if !l.Store().MarkRead(ctx, id) {
			p.Info("Already read")
		}
	case "dismiss":
		if l.Dismiss(id) == 0 {
			p.Info("No toast for %s", arg)
		}
	case "hold", "release":
		toastID, ok := l.Presenter().Find(id)
		if !ok {
			p.Info("No toast for %s", arg)
			return true
		}
		if verb == "hold" {
			l.Presenter().Hover(toastID)
		} else {
			l.Presenter().Leave(toastID)
		}
	}
	return true
}

func parseCommand(line string) (verb, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	verb = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = fields[1]
	}
	return verb, arg
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address (default: metrics.addr)")
}
