package engine

import (
	"log/slog"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// DefaultNoticeCapacity is how many notices are kept for renderers.
const DefaultNoticeCapacity = 50

// noticeBoard keeps the most recent notices. It is loop-confined: the
// components post to it from the loop and the engine reads it through Do.
type noticeBoard struct {
	capacity int
	items    []model.Notice
	log      *slog.Logger
}

func newNoticeBoard(capacity int, log *slog.Logger) *noticeBoard {
	return &noticeBoard{capacity: capacity, log: log}
}

// add is the model.NoticeSink handed to every component.
func (b *noticeBoard) add(n model.Notice) {
	b.log.Info("notice", "level", n.Level, "text", n.Text)
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, n)
}

func (b *noticeBoard) list() []model.Notice {
	out := make([]model.Notice, len(b.items))
	copy(out, b.items)
	return out
}
