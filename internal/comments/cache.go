// Package comments caches comment trees per media item.
//
// A thread is fetched once per expansion session. Collapsing ends the
// session and drops the tree; posting to a thread re-fetches it. Responses
// from a superseded fetch are dropped. All methods are loop-confined.
package comments

import (
	"context"
	"log/slog"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

type thread struct {
	comments []model.Comment
	expanded bool
	loaded   bool
	loading  bool
	gen      uint64
}

// Cache is the comment thread cache.
type Cache struct {
	loop    *loop.Loop
	backend backend.Backend
	notices model.NoticeSink
	log     *slog.Logger

	threads map[string]*thread
	owners  map[string]string // comment or reply id -> media id
	drafts  map[string]string
	gen     uint64
}

// New creates an empty cache.
func New(l *loop.Loop, b backend.Backend, notices model.NoticeSink, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if notices == nil {
		notices = func(model.Notice) {}
	}
	return &Cache{
		loop:    l,
		backend: b,
		notices: notices,
		log:     log,
		threads: make(map[string]*thread),
		owners:  make(map[string]string),
		drafts:  make(map[string]string),
	}
}

// Toggle expands a collapsed thread and collapses an expanded one.
// It reports whether the thread is expanded afterwards.
func (c *Cache) Toggle(mediaID string) bool {
	if th, ok := c.threads[mediaID]; ok && th.expanded {
		c.Collapse(mediaID)
		return false
	}
	c.Expand(mediaID)
	return true
}

// Expand starts an expansion session, fetching the thread unless it is
// already loaded or loading.
func (c *Cache) Expand(mediaID string) {
	th := c.thread(mediaID)
	th.expanded = true
	if th.loaded || th.loading {
		return
	}
	c.fetch(mediaID, th)
}

// Collapse ends the expansion session and drops the cached tree.
func (c *Cache) Collapse(mediaID string) {
	if _, ok := c.threads[mediaID]; !ok {
		return
	}
	c.forget(mediaID)
	delete(c.threads, mediaID)
}

// Refresh re-fetches a thread whether or not it is expanded.
func (c *Cache) Refresh(mediaID string) {
	c.fetch(mediaID, c.thread(mediaID))
}

// Thread returns the current view of a thread.
func (c *Cache) Thread(mediaID string) model.CommentThread {
	th, ok := c.threads[mediaID]
	if !ok {
		return model.CommentThread{MediaID: mediaID, Comments: []model.Comment{}}
	}
	comments := th.comments
	if comments == nil {
		comments = []model.Comment{}
	}
	return model.CommentThread{
		MediaID:  mediaID,
		Comments: comments,
		Expanded: th.expanded,
		Loaded:   th.loaded,
		Loading:  th.loading,
	}
}

// Expanded reports whether the thread of mediaID is in an expansion session.
func (c *Cache) Expanded(mediaID string) bool {
	th, ok := c.threads[mediaID]
	return ok && th.expanded
}

// ThreadOf returns the media id owning a loaded comment or reply.
func (c *Cache) ThreadOf(commentID string) (string, bool) {
	id, ok := c.owners[commentID]
	return id, ok
}

// SetDraft stores the input draft under key: a media id for comments,
// a comment id for replies.
func (c *Cache) SetDraft(key, text string) {
	if text == "" {
		delete(c.drafts, key)
		return
	}
	c.drafts[key] = text
}

// Draft returns the input draft under key.
func (c *Cache) Draft(key string) string { return c.drafts[key] }

// ClearDraft empties the draft under key.
func (c *Cache) ClearDraft(key string) { delete(c.drafts, key) }

func (c *Cache) thread(mediaID string) *thread {
	th, ok := c.threads[mediaID]
	if !ok {
		th = &thread{}
		c.threads[mediaID] = th
	}
	return th
}

func (c *Cache) fetch(mediaID string, th *thread) {
	c.gen++
	gen := c.gen
	th.gen = gen
	th.loading = true

	loop.Async(c.loop, func(ctx context.Context) ([]model.Comment, error) {
		return c.backend.Comments(ctx, mediaID)
	}, func(comments []model.Comment, err error) {
		cur, ok := c.threads[mediaID]
		if !ok || cur.gen != gen {
			c.log.Debug("dropping superseded comment fetch", "media_id", mediaID)
			return
		}
		cur.loading = false
		if err != nil {
			c.log.Warn("failed to load comments", "media_id", mediaID, "error", err)
			c.notices(model.Notice{
				Level: model.NoticeError,
				Text:  "Failed to load comments: " + errordefs.MessageOf(err),
				At:    c.loop.Clock().Now(),
			})
			return
		}
		c.forget(mediaID)
		cur.comments = comments
		cur.loaded = true
		c.index(mediaID, comments)
	})
}

func (c *Cache) index(mediaID string, comments []model.Comment) {
	for _, cm := range comments {
		c.owners[cm.ID] = mediaID
		c.index(mediaID, cm.Replies)
	}
}

func (c *Cache) forget(mediaID string) {
	for id, owner := range c.owners {
		if owner == mediaID {
			delete(c.owners, id)
		}
	}
}
