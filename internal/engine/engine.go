// internal/engine/engine.go
// Package engine assembles the feed sync components around one event loop.
//
// Engine is the only type in the module that is safe to call from any
// goroutine: every method hops onto the loop with Do, runs the component
// operation there and copies the result out.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/comments"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/config"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/feed"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/interaction"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/media"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/notify"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/playback"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/search"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/storage"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errordefs.New(errordefs.KindUnavailable, "engine closed")

// Options holds everything New needs. Only Backend is required.
type Options struct {
	Config    config.Config
	Session   session.Session
	Backend   backend.Backend
	Presigner media.Presigner  // Optional; public URLs are used without it
	Transport notify.Transport // Optional; notifications fall back to REST only
	Store     storage.Store    // Optional; snapshots are not persisted without it
	Clock     clockwork.Clock  // Optional; real clock when nil
	Logger    *slog.Logger
}

// FeedView is everything a renderer needs to draw the feed.
type FeedView struct {
	feed.State
	Playback  model.PlaybackState  `json:"playback"`
	Elements  []model.ElementState `json:"elements"`
	Indicator model.IndicatorState `json:"indicator"`
}

// FilterUpdate changes the feed filters. Nil fields keep their value.
type FilterUpdate struct {
	Search    *string          `json:"search,omitempty"`
	MediaType *model.MediaType `json:"mediaType,omitempty"`
}

// Engine is the thread-safe facade over the loop-confined components.
type Engine struct {
	loop  *loop.Loop
	log   *slog.Logger
	store storage.Store

	coord    *playback.Coordinator
	pager    *feed.Pager
	comments *comments.Cache
	tracker  *interaction.Tracker
	search   *search.Resolver
	notify   *notify.Manager
	notices  *noticeBoard
}

// New wires the components and starts the loop. Call Start to load data.
//
// Parameters:
//   - opts: Configuration, session and external collaborators
//
// Returns:
//   - *Engine: Engine ready to Start
//   - error: If the loop or the notification manager cannot be created
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Config
	log := opts.Logger

	l, err := loop.New(loop.Options{Workers: cfg.Workers, Clock: opts.Clock, Logger: log})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		loop:    l,
		log:     log,
		store:   opts.Store,
		notices: newNoticeBoard(DefaultNoticeCapacity, log),
	}
	sink := e.notices.add

	resolver := media.NewResolver(opts.Presigner, cfg.PublicMediaURL, cfg.PresignTTL, log.With("component", "media"))

	e.coord = playback.New(l, log.With("component", "playback"))
	e.pager = feed.New(feed.Config{
		Loop:        l,
		Backend:     opts.Backend,
		Resolver:    resolver,
		Coordinator: e.coord,
		Session:     opts.Session,
		Notices:     sink,
		Logger:      log.With("component", "feed"),
		PageSize:    cfg.PageSize,
		Threshold:   cfg.ScrollThreshold,
		MediaType:   model.MediaType(cfg.MediaType),
	})
	e.comments = comments.New(l, opts.Backend, sink, log.With("component", "comments"))
	e.tracker = interaction.New(interaction.Config{
		Loop:    l,
		Backend: opts.Backend,
		Window:  e.pager,
		Threads: e.comments,
		Session: opts.Session,
		Notices: sink,
		Logger:  log.With("component", "interaction"),
	})
	e.search = search.New(search.Config{
		Loop:            l,
		Backend:         opts.Backend,
		Feed:            e.pager,
		Logger:          log.With("component", "search"),
		SuggestionDelay: cfg.SuggestionDelay,
		FilterDelay:     cfg.FilterDelay,
	})
	e.notify, err = notify.New(notify.Config{
		Loop:             l,
		Backend:          opts.Backend,
		Transport:        opts.Transport,
		Store:            opts.Store,
		Session:          opts.Session,
		Notices:          sink,
		Logger:           log.With("component", "notify"),
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
	})
	if err != nil {
		l.Close()
		return nil, err
	}
	return e, nil
}

// Start loads the first feed page and opens the notification channel.
func (e *Engine) Start() error {
	return e.run(func() error {
		e.pager.Start()
		e.notify.Start()
		return nil
	})
}

// Ready reports whether the engine can serve requests.
func (e *Engine) Ready(ctx context.Context) error {
	if !e.loop.Do(func() {}) {
		return ErrClosed
	}
	if e.store != nil {
		if err := e.store.Ping(ctx); err != nil {
			return errordefs.Wrap(errordefs.KindUnavailable, "snapshot store unreachable", err)
		}
	}
	return nil
}

// Close tears the components down, stops the loop and releases the store.
// A pending snapshot save is flushed first.
func (e *Engine) Close() {
	e.loop.Do(func() {
		e.search.Close()
		e.coord.Close()
		e.notify.Close()
	})
	e.loop.Close()
	<-e.loop.Done()
	if e.store != nil {
		e.store.Close()
	}
}

// Feed returns the feed window and playback state.
func (e *Engine) Feed() (FeedView, error) {
	return get(e, func() (FeedView, error) { return e.feedView(), nil })
}

// Scroll reports a scroll position.
func (e *Engine) Scroll(offset, viewport, scrollHeight float64) (FeedView, error) {
	return get(e, func() (FeedView, error) {
		e.pager.Scroll(offset, viewport, scrollHeight)
		return e.feedView(), nil
	})
}

// Swipe moves the active item one step.
func (e *Engine) Swipe(d feed.Direction) (FeedView, error) {
	if d != feed.Up && d != feed.Down {
		return FeedView{}, errordefs.New(errordefs.KindBadRequest, "direction must be up or down")
	}
	return get(e, func() (FeedView, error) {
		e.pager.Swipe(d)
		return e.feedView(), nil
	})
}

// Touch feeds a touch gesture phase ("start", "move" or "end") to the pager.
func (e *Engine) Touch(phase string, y float64) error {
	var step func()
	switch phase {
	case "start":
		step = func() { e.pager.TouchStart(y) }
	case "move":
		step = func() { e.pager.TouchMove(y) }
	case "end":
		step = e.pager.TouchEnd
	default:
		return errordefs.New(errordefs.KindBadRequest, "phase must be start, move or end")
	}
	return e.run(func() error { step(); return nil })
}

// SetFilters replaces the feed window for new filters.
func (e *Engine) SetFilters(u FilterUpdate) error {
	if u.MediaType != nil {
		switch *u.MediaType {
		case model.MediaTypeAll, model.MediaTypeVideo, model.MediaTypeMusic:
		default:
			return errordefs.New(errordefs.KindBadRequest, "mediaType must be all, video or music")
		}
	}
	return e.run(func() error {
		f := e.pager.Filters()
		if u.Search != nil {
			f.Search = strings.TrimSpace(*u.Search)
		}
		if u.MediaType != nil {
			f.MediaType = *u.MediaType
		}
		e.pager.Reset(f)
		return nil
	})
}

// TogglePlay flips play/pause of the active item.
func (e *Engine) TogglePlay() (model.PlaybackState, error) {
	return get(e, func() (model.PlaybackState, error) {
		e.coord.Toggle()
		return e.coord.State(), nil
	})
}

// ToggleMute flips the shared volume.
func (e *Engine) ToggleMute() (model.PlaybackState, error) {
	return get(e, func() (model.PlaybackState, error) {
		e.coord.ToggleMute()
		return e.coord.State(), nil
	})
}

// MediaEvent is a renderer report about one element.
type MediaEvent string

// Renderer element reports.
const (
	MediaEnded     MediaEvent = "ended"
	MediaBuffering MediaEvent = "buffering"
	MediaReady     MediaEvent = "ready"
	MediaFailed    MediaEvent = "failed"
)

// ReportMedia applies a renderer report for the element at index.
func (e *Engine) ReportMedia(ev MediaEvent, index int) (model.PlaybackState, error) {
	var apply func(int)
	switch ev {
	case MediaEnded:
		apply = e.coord.Ended
	case MediaBuffering:
		apply = e.coord.Buffering
	case MediaReady:
		apply = e.coord.Ready
	case MediaFailed:
		apply = e.coord.Failed
	default:
		return model.PlaybackState{}, errordefs.New(errordefs.KindBadRequest, "unknown media event")
	}
	return get(e, func() (model.PlaybackState, error) {
		if index < 0 || index >= e.coord.Len() {
			return model.PlaybackState{}, errordefs.New(errordefs.KindNotFound, "no element at index")
		}
		apply(index)
		return e.coord.State(), nil
	})
}

// ToggleLike flips the viewer's like of a media item.
func (e *Engine) ToggleLike(mediaID string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) { return e.tracker.ToggleLike(mediaID) })
}

// ToggleFavorite flips the viewer's favorite of a media item.
func (e *Engine) ToggleFavorite(mediaID string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) { return e.tracker.ToggleFavorite(mediaID) })
}

// Deltas returns the recent interaction history.
func (e *Engine) Deltas() ([]model.InteractionDelta, error) {
	return get(e, func() ([]model.InteractionDelta, error) { return e.tracker.Deltas(), nil })
}

// ExpandComments opens the comment thread of a media item, loading it once.
func (e *Engine) ExpandComments(mediaID string) (model.CommentThread, error) {
	return get(e, func() (model.CommentThread, error) {
		e.comments.Expand(mediaID)
		return e.comments.Thread(mediaID), nil
	})
}

// CollapseComments closes the comment thread of a media item.
func (e *Engine) CollapseComments(mediaID string) error {
	return e.run(func() error {
		e.comments.Collapse(mediaID)
		return nil
	})
}

// PostComment posts a top level comment.
func (e *Engine) PostComment(mediaID, text string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) { return e.tracker.PostComment(mediaID, text) })
}

// PostReply posts a reply to a comment.
func (e *Engine) PostReply(mediaID, commentID, text string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) {
		return e.tracker.PostReply(mediaID, commentID, text)
	})
}

// LikeComment likes a comment or reply.
func (e *Engine) LikeComment(commentID string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) { return e.tracker.LikeComment(commentID) })
}

// Report flags a media item for moderation.
func (e *Engine) Report(mediaID, reason string) (model.InteractionDelta, error) {
	return get(e, func() (model.InteractionDelta, error) { return e.tracker.Report(mediaID, reason) })
}

// SearchInput reports a keystroke in the search box.
func (e *Engine) SearchInput(raw string) (model.SearchState, error) {
	return get(e, func() (model.SearchState, error) {
		e.search.Input(raw)
		return e.search.State(), nil
	})
}

// SearchSelect picks a suggestion.
func (e *Engine) SearchSelect(s model.Suggestion) (model.SearchState, error) {
	if strings.TrimSpace(s.Title) == "" {
		return model.SearchState{}, errordefs.New(errordefs.KindBadRequest, "suggestion title is required")
	}
	return get(e, func() (model.SearchState, error) {
		e.search.Select(s)
		return e.search.State(), nil
	})
}

// Search returns the search box state.
func (e *Engine) Search() (model.SearchState, error) {
	return get(e, func() (model.SearchState, error) { return e.search.State(), nil })
}

// Notifications returns the merged notification list.
func (e *Engine) Notifications() (model.NotificationState, error) {
	return get(e, func() (model.NotificationState, error) { return e.notify.State(), nil })
}

// MarkRead asks the server to mark one notification read.
func (e *Engine) MarkRead(id string) error {
	return e.run(func() error { return e.notify.MarkRead(id) })
}

// MarkAllRead asks the server to mark every notification read.
func (e *Engine) MarkAllRead() error {
	return e.run(e.notify.MarkAllRead)
}

// UpdatePreferences sends new notification preferences.
func (e *Engine) UpdatePreferences(p model.Preferences) error {
	return e.run(func() error { return e.notify.UpdatePreferences(p) })
}

// DeleteNotification deletes a notification on the server and locally.
func (e *Engine) DeleteNotification(id string) error {
	return e.run(func() error {
		e.notify.Delete(id)
		return nil
	})
}

// Visibility reports whether the renderer is visible.
func (e *Engine) Visibility(visible bool) error {
	return e.run(func() error {
		e.notify.Visibility(visible)
		return nil
	})
}

// Notices returns the recent user-facing notices, oldest first.
func (e *Engine) Notices() ([]model.Notice, error) {
	return get(e, func() ([]model.Notice, error) { return e.notices.list(), nil })
}

func (e *Engine) feedView() FeedView {
	return FeedView{
		State:     e.pager.State(),
		Playback:  e.coord.State(),
		Elements:  e.coord.Elements(),
		Indicator: e.coord.Indicator(),
	}
}

// run executes fn on the loop.
func (e *Engine) run(fn func() error) error {
	var err error
	if !e.loop.Do(func() { err = fn() }) {
		return ErrClosed
	}
	return err
}

// get executes fn on the loop and returns its result.
func get[T any](e *Engine, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	if !e.loop.Do(func() { v, err = fn() }) {
		var zero T
		return zero, ErrClosed
	}
	return v, err
}
