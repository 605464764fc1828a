// Package notifier is the notification delivery client for the lingoloop
// language-learning platform.
//
// It follows a user's notification and direct-message change feeds on the
// hosted backend, suppresses duplicate deliveries, renders transient toasts,
// keeps a local mirror of the notification list with optimistic read/delete
// state, and checks for deleted posts and comments before navigating.
//
// Layout:
//
//	cmd/notifier        terminal client entry point
//	internal/changefeed realtime channel and LISTEN/NOTIFY subscriptions
//	internal/dedup      short-window duplicate suppression
//	internal/resolver   ghost-content checks on click
//	internal/toast      countdown state machine and toast rendering
//	internal/store      read/delete state store
//	internal/delivery   composition root wiring the above together
package notifier
