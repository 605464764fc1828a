package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lingoloop/notifier/internal/delivery"
	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/prompter"
)

var (
	listUnread bool
	assumeYes  bool
)

// withListener loads the user's notifications and runs fn against them
func withListener(cmd *cobra.Command, fn func(ctx context.Context, a *app, l *delivery.Listener) error) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	l := a.listener(nil, nil, nil)
	defer l.Close()

	if err := l.Load(ctx, a.identity); err != nil {
		return err
	}
	return fn(ctx, a, l)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(_ context.Context, a *app, l *delivery.Listener) error {
			list := l.Store().Snapshot()
			if listUnread {
				unread := list[:0]
				for _, n := range list {
					if !n.IsRead {
						unread = append(unread, n)
					}
				}
				list = unread
			}
			return a.printer.Notifications(list)
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show unread notification count",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(_ context.Context, a *app, l *delivery.Listener) error {
			return a.printer.Record([]string{"unread", "total"}, map[string]interface{}{
				"unread": l.UnreadBadge().Count(),
				"total":  l.Store().Len(),
			})
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Open a notification",
	Long: `Open a notification the way clicking it would: mark it read, check
that the post or comment it points at still exists, and print where it leads.
Notifications about deleted content are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(ctx context.Context, a *app, l *delivery.Listener) error {
			id, err := l.Match(args[0])
			if err != nil {
				return err
			}
			d, err := l.Click(ctx, id)
			if err != nil {
				return err
			}
			if !d.Navigates() && d.Notice == "" {
				a.printer.Info("Nothing to open")
			}
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(ctx context.Context, a *app, l *delivery.Listener) error {
			id, err := l.Match(args[0])
			if err != nil {
				return err
			}
			if !l.Store().MarkRead(ctx, id) {
				a.printer.Info("Already read")
				return nil
			}
			a.printer.Success("Marked as read")
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(ctx context.Context, a *app, l *delivery.Listener) error {
			id, err := l.Match(args[0])
			if err != nil {
				return err
			}
			token, err := l.Store().RequestDelete(id)
			if err != nil {
				return err
			}

			if !assumeYes {
				n, _ := l.Store().Get(id)
				ok, err := prompter.Stdio().Confirm("Delete this " + describe(&n) + " notification?")
				if err != nil || !ok {
					l.Store().CancelDelete(token)
					a.printer.Info("Cancelled")
					return nil
				}
			}

			if err := l.Store().ConfirmDelete(ctx, token); err != nil {
				return err
			}
			a.printer.Success("Deleted")
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListener(cmd, func(ctx context.Context, a *app, l *delivery.Listener) error {
			if !assumeYes {
				ok, err := prompter.Stdio().Confirm("Delete all notifications?")
				if err != nil || !ok {
					a.printer.Info("Cancelled")
					return nil
				}
			}
			if err := l.Store().ClearAll(ctx); err != nil {
				return err
			}
			a.printer.Success("All notifications cleared")
			return nil
		})
	},
}

func describe(n *models.Notification) string {
	if n.Type == "" {
		return "unknown"
	}
	return string(n.Type)
}

func init() {
	listCmd.Flags().BoolVar(&listUnread, "unread", false, "Only unread notifications")
	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}
