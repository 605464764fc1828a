// Package resolver decides at click time where a notification leads and
// whether it points at content that no longer exists.
package resolver

import (
	"context"
	"net/url"

	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/models"
	"github.com/lingoloop/notifier/internal/telemetry"
)

// NoticePostDeleted is shown when a notification's post is gone
const NoticePostDeleted = "This post has been deleted"

// RouteKind is a navigation target type
type RouteKind int

const (
	RouteProfile RouteKind = iota + 1
	RoutePost
)

// Route is a navigation target
type Route struct {
	Kind RouteKind
	ID   string
	// HighlightCommentID asks the post view to scroll to and mark a comment
	HighlightCommentID string
}

// Path renders the route as an app path
func (r Route) Path() string {
	switch r.Kind {
	case RouteProfile:
		return "/profile/" + url.PathEscape(r.ID)
	case RoutePost:
		p := "/post/" + url.PathEscape(r.ID)
		if r.HighlightCommentID != "" {
			p += "?comment=" + url.QueryEscape(r.HighlightCommentID)
		}
		return p
	default:
		return "/"
	}
}

// Outcome labels a decision for logs and metrics
type Outcome string

const (
	OutcomeNoOp              Outcome = "noop"
	OutcomeProfile           Outcome = "profile"
	OutcomePost              Outcome = "post"
	OutcomeComment           Outcome = "comment"
	OutcomeCommentUnverified Outcome = "comment_unverified"
	OutcomeStaleComment      Outcome = "stale_comment"
	OutcomeStalePost         Outcome = "stale_post"
)

// Decision is the result of resolving a click. Navigation, when present,
// happens before the delete.
type Decision struct {
	Outcome Outcome
	Route   *Route
	Delete  bool
	Notice  string
}

// Navigates reports whether the decision leads somewhere
func (d Decision) Navigates() bool { return d.Route != nil }

// CommentChecker is the point read behind ghost detection. A missing
// comment is (false, nil).
type CommentChecker interface {
	CommentExists(ctx context.Context, id string) (bool, error)
}

// Resolver runs the click state machine
type Resolver struct {
	comments CommentChecker
}

// New creates a Resolver
func New(comments CommentChecker) *Resolver {
	return &Resolver{comments: comments}
}

// Resolve classifies n. Only a notification naming both a post and a
// comment costs a backend call. If that call fails the comment is assumed
// to exist and navigation goes ahead.
func (r *Resolver) Resolve(ctx context.Context, n *models.Notification) Decision {
	ctx, span := telemetry.StartSpan(ctx, "resolver.resolve",
		telemetry.AttrNotificationID.String(n.ID),
		telemetry.AttrNotificationType.String(string(n.Type)),
	)
	d, err := r.resolve(ctx, n)
	span.SetAttributes(telemetry.AttrDecision.String(string(d.Outcome)))
	telemetry.EndSpan(span, err)

	metrics.ResolverDecisions.WithLabelValues(string(d.Outcome)).Inc()
	return d
}

func (r *Resolver) resolve(ctx context.Context, n *models.Notification) (Decision, error) {
	switch {
	case n.Type == models.NotificationSystem:
		return Decision{Outcome: OutcomeNoOp}, nil

	case n.Type == models.NotificationFollow:
		if !models.HasRef(n.SenderID) {
			return Decision{Outcome: OutcomeNoOp}, nil
		}
		return Decision{Outcome: OutcomeProfile, Route: &Route{Kind: RouteProfile, ID: *n.SenderID}}, nil

	case !models.HasRef(n.TweetID):
		return Decision{Outcome: OutcomeStalePost, Delete: true, Notice: NoticePostDeleted}, nil
	}

	post := *n.TweetID
	if !models.HasRef(n.CommentID) {
		if n.Type == models.NotificationComment {
			// a comment notification whose comment reference was nulled out
			return Decision{Outcome: OutcomeStaleComment, Route: &Route{Kind: RoutePost, ID: post}, Delete: true}, nil
		}
		return Decision{Outcome: OutcomePost, Route: &Route{Kind: RoutePost, ID: post}}, nil
	}

	comment := *n.CommentID
	exists, err := r.comments.CommentExists(ctx, comment)
	switch {
	case err != nil:
		logger.WarnWithErr("Comment check failed; navigating without verification", err,
			logger.WithNotificationID(n.ID))
		return Decision{
			Outcome: OutcomeCommentUnverified,
			Route:   &Route{Kind: RoutePost, ID: post, HighlightCommentID: comment},
		}, err
	case !exists:
		return Decision{Outcome: OutcomeStaleComment, Route: &Route{Kind: RoutePost, ID: post}, Delete: true}, nil
	default:
		return Decision{
			Outcome: OutcomeComment,
			Route:   &Route{Kind: RoutePost, ID: post, HighlightCommentID: comment},
		}, nil
	}
}
