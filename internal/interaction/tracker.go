// internal/interaction/tracker.go
// Package interaction applies likes, favorites and comments optimistically
// and reconciles them with the backend.
//
// Flags are tracked in lanes, one per (item, flag). A lane has at most one
// request in flight; taps made meanwhile only change local state, and one
// follow-up request is sent when the in-flight one settles with a value that
// differs from the local one. A failure rolls the item back to the lane's
// last confirmed value. All methods are loop-confined.
package interaction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/metrics"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
)

// historySize bounds the delta history kept for inspection.
const historySize = 100

// Flag is a per-viewer boolean on a media item.
type Flag int

const (
	// Like is the viewer's like flag; it moves the likes counter.
	Like Flag = iota
	// Favorite is the viewer's favorite flag.
	Favorite
)

func (f Flag) String() string {
	if f == Favorite {
		return "favorite"
	}
	return "like"
}

// kind returns the interaction that sets the flag to on.
func (f Flag) kind(on bool) model.InteractionKind {
	switch {
	case f == Like && on:
		return model.InteractionLike
	case f == Like:
		return model.InteractionUnlike
	case on:
		return model.InteractionFavorite
	default:
		return model.InteractionUnfavorite
	}
}

// Window gives the tracker access to loaded items.
type Window interface {
	Lookup(id string) (*model.MediaItem, bool)
	RememberFlag(id string, kind model.InteractionKind, on bool)
}

// Threads is the comment cache as seen by the tracker.
type Threads interface {
	// Refresh re-fetches the thread of a media item.
	Refresh(mediaID string)
	// ThreadOf returns the media id owning a comment or reply.
	ThreadOf(commentID string) (string, bool)
	// ClearDraft empties the input draft under key.
	ClearDraft(key string)
}

// Config holds the Tracker's collaborators.
type Config struct {
	Loop    *loop.Loop
	Backend backend.Backend
	Window  Window
	Threads Threads
	Session session.Session
	Notices model.NoticeSink // Optional
	Logger  *slog.Logger
}

type laneKey struct {
	mediaID string
	flag    Flag
}

// lane serializes requests for one flag of one item.
type lane struct {
	confirmed      bool // Last value the server accepted (or the snapshot before the first tap)
	confirmedCount int  // Likes counter matching confirmed
	desired        bool // Current local value
	inFlight       bool
	pending        []*model.InteractionDelta
}

// Tracker is the optimistic mutation tracker.
type Tracker struct {
	loop    *loop.Loop
	backend backend.Backend
	window  Window
	threads Threads
	sess    session.Session
	notices model.NoticeSink
	log     *slog.Logger
	metrics *metrics.Metrics

	lanes      map[laneKey]*lane
	history    []*model.InteractionDelta
	submitting map[string]bool // Comment and reply posts in flight, by draft key
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notices == nil {
		cfg.Notices = func(model.Notice) {}
	}
	return &Tracker{
		loop:       cfg.Loop,
		backend:    cfg.Backend,
		window:     cfg.Window,
		threads:    cfg.Threads,
		sess:       cfg.Session,
		notices:    cfg.Notices,
		log:        cfg.Logger,
		metrics:    metrics.NewMetrics(),
		lanes:      make(map[laneKey]*lane),
		submitting: make(map[string]bool),
	}
}

// ToggleLike flips the like flag of a media item.
func (t *Tracker) ToggleLike(mediaID string) (model.InteractionDelta, error) {
	return t.toggle(mediaID, Like)
}

// ToggleFavorite flips the favorite flag of a media item.
func (t *Tracker) ToggleFavorite(mediaID string) (model.InteractionDelta, error) {
	return t.toggle(mediaID, Favorite)
}

// Deltas returns the recent interaction deltas, oldest first.
func (t *Tracker) Deltas() []model.InteractionDelta {
	out := make([]model.InteractionDelta, len(t.history))
	for i, d := range t.history {
		out[i] = *d
	}
	return out
}

// InFlight reports whether a request for the flag of mediaID is outstanding.
func (t *Tracker) InFlight(mediaID string, f Flag) bool {
	l, ok := t.lanes[laneKey{mediaID, f}]
	return ok && l.inFlight
}

// Submitting reports whether a comment or reply under draft key is being posted.
func (t *Tracker) Submitting(key string) bool { return t.submitting[key] }

func (t *Tracker) toggle(mediaID string, f Flag) (model.InteractionDelta, error) {
	if err := t.requireAuth("Please log in to " + f.String() + " media"); err != nil {
		return model.InteractionDelta{}, err
	}
	item, ok := t.window.Lookup(mediaID)
	if !ok {
		return model.InteractionDelta{}, errordefs.New(errordefs.KindNotFound, "media not loaded: "+mediaID)
	}

	key := laneKey{mediaID, f}
	ln, ok := t.lanes[key]
	if !ok {
		ln = &lane{confirmed: flagOf(item, f), confirmedCount: item.Likes}
		t.lanes[key] = ln
	}

	prev, prevCount := flagOf(item, f), item.Likes
	next := !prev
	setFlag(item, f, next)
	t.window.RememberFlag(mediaID, f.kind(next), next)

	delta := &model.InteractionDelta{
		ID:        ulid.Make().String(),
		MediaID:   mediaID,
		Kind:      f.kind(next),
		Prev:      prev,
		PrevCount: prevCount,
		Status:    model.DeltaPending,
		CreatedAt: t.now(),
	}
	t.record(delta)
	ln.pending = append(ln.pending, delta)
	ln.desired = next

	if !ln.inFlight {
		t.send(key, ln)
	}
	return *delta, nil
}

// send issues the request moving the server to the lane's desired value.
func (t *Tracker) send(key laneKey, ln *lane) {
	target := ln.desired
	kind := key.flag.kind(target)
	ln.inFlight = true

	call := t.requestFor(key.flag, target)
	loop.Async(t.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx, key.mediaID)
	}, func(_ struct{}, err error) {
		ln.inFlight = false
		t.metrics.MutationTotal.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()

		if err != nil {
			t.rollback(key, ln, err)
			return
		}

		if target != ln.confirmed && key.flag == Like {
			if target {
				ln.confirmedCount++
			} else if ln.confirmedCount > 0 {
				ln.confirmedCount--
			}
		}
		ln.confirmed = target

		if ln.desired != ln.confirmed {
			t.send(key, ln)
			return
		}
		for _, d := range ln.pending {
			d.Status = model.DeltaConfirmed
		}
		delete(t.lanes, key)
	})
}

func (t *Tracker) rollback(key laneKey, ln *lane, err error) {
	if item, ok := t.window.Lookup(key.mediaID); ok {
		setFlag(item, key.flag, ln.confirmed)
		if key.flag == Like {
			item.Likes = ln.confirmedCount
		}
	}
	t.window.RememberFlag(key.mediaID, key.flag.kind(ln.confirmed), ln.confirmed)

	for _, d := range ln.pending {
		d.Status = model.DeltaFailed
		d.Error = errordefs.MessageOf(err)
	}
	delete(t.lanes, key)

	t.log.Warn("interaction rolled back", "media_id", key.mediaID, "flag", key.flag.String(), "error", err)
	t.fail(err)
}

func (t *Tracker) requestFor(f Flag, on bool) func(context.Context, string) error {
	switch {
	case f == Like && on:
		return t.backend.SetLike
	case f == Like:
		return t.backend.UnsetLike
	case on:
		return t.backend.SetFavorite
	default:
		return t.backend.UnsetFavorite
	}
}

// PostComment posts a top-level comment. The comment is not shown
// optimistically; on success the draft is cleared and the thread re-fetched.
func (t *Tracker) PostComment(mediaID, text string) (model.InteractionDelta, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.InteractionDelta{}, t.reject("Please enter a comment")
	}
	if err := t.requireAuth("Please log in to comment"); err != nil {
		return model.InteractionDelta{}, err
	}
	return t.post(model.InteractionComment, mediaID, mediaID, func(ctx context.Context) error {
		return t.backend.PostComment(ctx, mediaID, text)
	})
}

// PostReply posts a reply to a comment, with the same semantics as PostComment.
func (t *Tracker) PostReply(mediaID, commentID, text string) (model.InteractionDelta, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.InteractionDelta{}, t.reject("Please enter a reply")
	}
	if err := t.requireAuth("Please log in to reply"); err != nil {
		return model.InteractionDelta{}, err
	}
	return t.post(model.InteractionReply, mediaID, commentID, func(ctx context.Context) error {
		return t.backend.PostReply(ctx, mediaID, commentID, text)
	})
}

func (t *Tracker) post(kind model.InteractionKind, mediaID, draftKey string, call func(context.Context) error) (model.InteractionDelta, error) {
	if t.submitting[draftKey] {
		return model.InteractionDelta{}, errordefs.New(errordefs.KindValidation, "Already posting, please wait")
	}
	t.submitting[draftKey] = true

	delta := &model.InteractionDelta{
		ID:        ulid.Make().String(),
		MediaID:   mediaID,
		Kind:      kind,
		Status:    model.DeltaPending,
		CreatedAt: t.now(),
	}
	if item, ok := t.window.Lookup(mediaID); ok {
		delta.PrevCount = item.CommentCount
	}
	t.record(delta)

	loop.Async(t.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, func(_ struct{}, err error) {
		delete(t.submitting, draftKey)
		t.metrics.MutationTotal.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()
		if err != nil {
			delta.Status = model.DeltaFailed
			delta.Error = errordefs.MessageOf(err)
			t.fail(err)
			return
		}
		delta.Status = model.DeltaConfirmed
		if item, ok := t.window.Lookup(mediaID); ok {
			item.CommentCount++
		}
		t.threads.ClearDraft(draftKey)
		t.threads.Refresh(mediaID)
	})
	return *delta, nil
}

// LikeComment likes a comment or reply. It is not optimistic: on success
// the owning thread is re-fetched to pick up the new count.
func (t *Tracker) LikeComment(commentID string) (model.InteractionDelta, error) {
	if err := t.requireAuth("Please log in to like comments"); err != nil {
		return model.InteractionDelta{}, err
	}
	owner, _ := t.threads.ThreadOf(commentID)

	delta := &model.InteractionDelta{
		ID:        ulid.Make().String(),
		MediaID:   owner,
		Kind:      model.InteractionCommentLike,
		Status:    model.DeltaPending,
		CreatedAt: t.now(),
	}
	t.record(delta)

	loop.Async(t.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.backend.LikeComment(ctx, commentID)
	}, func(_ struct{}, err error) {
		t.metrics.MutationTotal.WithLabelValues(string(model.InteractionCommentLike), metrics.Outcome(err)).Inc()
		if err != nil {
			delta.Status = model.DeltaFailed
			delta.Error = errordefs.MessageOf(err)
			t.fail(err)
			return
		}
		delta.Status = model.DeltaConfirmed
		// the thread may have been collapsed or re-fetched meanwhile
		if owner, ok := t.threads.ThreadOf(commentID); ok {
			t.threads.Refresh(owner)
		}
	})
	return *delta, nil
}

// Report flags a media item with a reason. Nothing changes locally; the
// viewer is told once the backend has accepted the report.
func (t *Tracker) Report(mediaID, reason string) (model.InteractionDelta, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.InteractionDelta{}, t.reject("Please enter a reason")
	}
	if err := t.requireAuth("Please log in to report media"); err != nil {
		return model.InteractionDelta{}, err
	}

	delta := &model.InteractionDelta{
		ID:        ulid.Make().String(),
		MediaID:   mediaID,
		Kind:      model.InteractionReport,
		Status:    model.DeltaPending,
		CreatedAt: t.now(),
	}
	t.record(delta)

	loop.Async(t.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.backend.ReportMedia(ctx, mediaID, reason)
	}, func(_ struct{}, err error) {
		t.metrics.MutationTotal.WithLabelValues(string(model.InteractionReport), metrics.Outcome(err)).Inc()
		if err != nil {
			delta.Status = model.DeltaFailed
			delta.Error = errordefs.MessageOf(err)
			t.fail(err)
			return
		}
		delta.Status = model.DeltaConfirmed
		t.notices(model.Notice{Level: model.NoticeInfo, Text: "Reported successfully", At: t.now()})
	})
	return *delta, nil
}

// requireAuth fails fast without a usable credential.
func (t *Tracker) requireAuth(message string) error {
	if t.sess.Authenticated(t.now()) {
		return nil
	}
	t.notices(model.Notice{Level: model.NoticeAuth, Text: message, At: t.now()})
	return errordefs.Wrap(errordefs.KindUnauthorized, message, session.ErrMissingCredential)
}

func (t *Tracker) reject(message string) error {
	t.notices(model.Notice{Level: model.NoticeError, Text: message, At: t.now()})
	return errordefs.New(errordefs.KindValidation, message)
}

func (t *Tracker) fail(err error) {
	if errordefs.IsUnauthorized(err) {
		t.notices(model.Notice{Level: model.NoticeAuth, Text: "Please log in again", At: t.now()})
		return
	}
	t.notices(model.Notice{Level: model.NoticeError, Text: "Error: " + errordefs.MessageOf(err), At: t.now()})
}

func (t *Tracker) record(d *model.InteractionDelta) {
	t.history = append(t.history, d)
	if len(t.history) > historySize {
		t.history = t.history[len(t.history)-historySize:]
	}
}

func (t *Tracker) now() time.Time {
	return t.loop.Clock().Now()
}

func flagOf(item *model.MediaItem, f Flag) bool {
	if f == Favorite {
		return item.IsFavorited
	}
	return item.IsLiked
}

// setFlag sets a flag locally; the like flag moves the likes counter with it.
func setFlag(item *model.MediaItem, f Flag, on bool) {
	if f == Favorite {
		item.IsFavorited = on
		return
	}
	if item.IsLiked == on {
		return
	}
	item.IsLiked = on
	if on {
		item.Likes++
	} else if item.Likes > 0 {
		item.Likes--
	}
}
