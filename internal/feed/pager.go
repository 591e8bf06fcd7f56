// internal/feed/pager.go
// Package feed maintains the feed window and decides when to page.
//
// The Pager turns scroll, swipe and touch input into index changes for the
// playback coordinator and requests the next page near the bottom of the
// window. Filter changes replace the window. All methods are loop-confined.
package feed

import (
	"context"
	"log/slog"
	"math"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/media"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/metrics"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/playback"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
)

// Defaults for paging and gestures.
const (
	DefaultPageSize  = 10
	DefaultThreshold = 100.0 // Distance from the bottom that triggers the next page
	MinSwipeDistance = 50.0  // Minimum touch travel recognized as a swipe
)

// Fetch modes for metrics.
const (
	fetchModeReset    = "reset"
	fetchModeNextPage = "next"
)

// Direction is a swipe or keyboard direction.
type Direction string

const (
	// Up moves to the next item.
	Up Direction = "up"
	// Down moves to the previous item.
	Down Direction = "down"
)

// Config holds the Pager's collaborators and settings.
type Config struct {
	Loop        *loop.Loop
	Backend     backend.Backend
	Resolver    *media.Resolver // Optional
	Coordinator *playback.Coordinator
	Session     session.Session
	Notices     model.NoticeSink // Optional
	Logger      *slog.Logger
	PageSize    int
	Threshold   float64
	MediaType   model.MediaType
}

// State is a snapshot of the feed window for renderers.
type State struct {
	Items   []model.MediaItem `json:"items"`
	Filters model.Filters     `json:"filters"`
	Total   int               `json:"total,omitempty"`
	Loading bool              `json:"loading"`
	HasMore bool              `json:"hasMore"`
}

// Pager owns the feed window.
type Pager struct {
	loop     *loop.Loop
	backend  backend.Backend
	resolver *media.Resolver
	coord    *playback.Coordinator
	sess     session.Session
	notices  model.NoticeSink
	log      *slog.Logger
	metrics  *metrics.Metrics

	threshold float64

	items    []*model.MediaItem // Append-only within one filter context
	index    map[string]int     // Item id to window position
	filters  model.Filters      // Filters of the displayed window; Page is the last loaded page
	total    int                // Total available, zero when unknown
	lastFull bool               // Whether the last loaded page was full
	loading  bool               // A page fetch is in flight
	gen      uint64             // Bumped on reset; stale responses are dropped

	liked     map[string]bool
	favorited map[string]bool

	touch struct {
		start, end       float64
		hasStart, hasEnd bool
	}
}

// New creates a Pager with an empty window.
func New(cfg Config) *Pager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MediaType == "" {
		cfg.MediaType = model.MediaTypeAll
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notices == nil {
		cfg.Notices = func(model.Notice) {}
	}
	return &Pager{
		loop:      cfg.Loop,
		backend:   cfg.Backend,
		resolver:  cfg.Resolver,
		coord:     cfg.Coordinator,
		sess:      cfg.Session,
		notices:   cfg.Notices,
		log:       cfg.Logger,
		metrics:   metrics.NewMetrics(),
		threshold: cfg.Threshold,
		index:     make(map[string]int),
		filters: model.Filters{
			Page:      1,
			Limit:     cfg.PageSize,
			MediaType: cfg.MediaType,
		},
		liked:     make(map[string]bool),
		favorited: make(map[string]bool),
	}
}

// Start loads the viewer's liked and favorited sets and the first page.
func (p *Pager) Start() {
	if p.sess.Authenticated(p.loop.Clock().Now()) {
		p.loadViewerSets()
	}
	p.Reset(p.filters)
}

// Filters returns the filters of the displayed window.
func (p *Pager) Filters() model.Filters { return p.filters }

// Len returns the number of loaded items.
func (p *Pager) Len() int { return len(p.items) }

// Loading reports whether a page fetch is in flight.
func (p *Pager) Loading() bool { return p.loading }

// State returns a snapshot of the window.
func (p *Pager) State() State {
	items := make([]model.MediaItem, len(p.items))
	for i, it := range p.items {
		items[i] = *it
	}
	return State{
		Items:   items,
		Filters: p.filters,
		Total:   p.total,
		Loading: p.loading,
		HasMore: p.hasMore(),
	}
}

// Lookup returns the loaded item with the given id.
// The returned pointer is only valid on the loop.
func (p *Pager) Lookup(id string) (*model.MediaItem, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.items[i], true
}

// RememberFlag records a per-viewer flag so items loaded later carry it.
func (p *Pager) RememberFlag(id string, kind model.InteractionKind, on bool) {
	switch kind {
	case model.InteractionLike, model.InteractionUnlike:
		p.liked[id] = on
	case model.InteractionFavorite, model.InteractionUnfavorite:
		p.favorited[id] = on
	}
}

// Reset replaces the window with page 1 of the given filters.
// Responses of earlier fetches are dropped. On failure the window and
// filters stay as they were.
func (p *Pager) Reset(f model.Filters) {
	if f.Limit <= 0 {
		f.Limit = p.filters.Limit
	}
	if f.MediaType == "" {
		f.MediaType = p.filters.MediaType
	}
	f.Page = 1

	p.gen++
	gen := p.gen
	p.loading = true

	loop.Async(p.loop, p.fetch(f), func(page model.MediaPage, err error) {
		if gen != p.gen {
			return
		}
		p.loading = false
		p.metrics.FeedFetchTotal.WithLabelValues(fetchModeReset, metrics.Outcome(err)).Inc()
		if err != nil {
			p.fail(err)
			return
		}

		p.items = nil
		p.index = make(map[string]int, len(page.Items))
		p.filters = f
		p.total = page.Total
		p.lastFull = len(page.Items) >= f.Limit
		kinds := p.append(page.Items)
		p.coord.Replace(kinds)
		p.log.Debug("feed reset", "search", f.Search, "media_type", f.MediaType, "items", len(p.items))
	})
}

// SetSearch resets the window for a committed search string.
func (p *Pager) SetSearch(search string) {
	f := p.filters
	f.Search = search
	p.Reset(f)
}

// SetMediaType resets the window for another media type.
func (p *Pager) SetMediaType(t model.MediaType) {
	f := p.filters
	f.MediaType = t
	p.Reset(f)
}

// Scroll handles a scroll position report.
// Parameters:
//   - offset: Scroll offset from the top of the feed
//   - viewport: Height of one feed item (the viewport)
//   - scrollHeight: Total scrollable height
func (p *Pager) Scroll(offset, viewport, scrollHeight float64) {
	if viewport <= 0 || len(p.items) == 0 {
		return
	}
	// clamped before conversion; huge offsets overflow int
	idx := math.Round(offset / viewport)
	idx = max(0, min(idx, float64(len(p.items)-1)))
	p.coord.Focus(int(idx))

	if offset+viewport >= scrollHeight-p.threshold {
		p.NextPage()
	}
}

// NextPage requests the page after the last loaded one, unless a fetch is
// already in flight or no more items are believed available.
// It reports whether a request was issued.
func (p *Pager) NextPage() bool {
	if p.loading || !p.hasMore() {
		return false
	}

	next := p.filters
	next.Page++
	gen := p.gen
	p.loading = true

	loop.Async(p.loop, p.fetch(next), func(page model.MediaPage, err error) {
		if gen != p.gen {
			return
		}
		p.loading = false
		p.metrics.FeedFetchTotal.WithLabelValues(fetchModeNextPage, metrics.Outcome(err)).Inc()
		if err != nil {
			p.fail(err)
			return
		}

		p.filters.Page = next.Page
		if page.Total > 0 {
			p.total = page.Total
		}
		p.lastFull = len(page.Items) >= next.Limit
		p.coord.Append(p.append(page.Items))
		p.log.Debug("feed page appended", "page", next.Page, "items", len(p.items))
	})
	return true
}

// Swipe moves the active item one step, saturating at both ends.
func (p *Pager) Swipe(d Direction) {
	active, ok := p.coord.State().Active()
	if !ok {
		return
	}
	switch d {
	case Up:
		if active < len(p.items)-1 {
			p.coord.Focus(active + 1)
		}
	case Down:
		if active > 0 {
			p.coord.Focus(active - 1)
		}
	}
}

// TouchStart records where a touch began.
func (p *Pager) TouchStart(y float64) {
	p.touch.start, p.touch.hasStart = y, true
	p.touch.hasEnd = false
}

// TouchMove records the latest touch position.
func (p *Pager) TouchMove(y float64) {
	p.touch.end, p.touch.hasEnd = y, true
}

// TouchEnd turns the recorded touch into a swipe when it travelled far enough.
func (p *Pager) TouchEnd() {
	defer func() { p.touch.hasStart, p.touch.hasEnd = false, false }()
	if !p.touch.hasStart || !p.touch.hasEnd {
		return
	}
	distance := p.touch.start - p.touch.end
	switch {
	case distance > MinSwipeDistance:
		p.Swipe(Up)
	case distance < -MinSwipeDistance:
		p.Swipe(Down)
	}
}

func (p *Pager) hasMore() bool {
	if p.total > 0 {
		return p.filters.Page*p.filters.Limit < p.total
	}
	return p.lastFull
}

// fetch returns the async work loading one page and resolving its sources.
func (p *Pager) fetch(f model.Filters) func(ctx context.Context) (model.MediaPage, error) {
	return func(ctx context.Context) (model.MediaPage, error) {
		page, err := p.backend.ListMedia(ctx, f)
		if err != nil {
			return page, err
		}
		if p.resolver != nil {
			p.resolver.Apply(ctx, page.Items)
		}
		return page, nil
	}
}

// append adds items to the window, applying viewer flags, and returns their kinds.
// Items already in the window are skipped.
func (p *Pager) append(items []model.MediaItem) []model.Kind {
	kinds := make([]model.Kind, 0, len(items))
	for i := range items {
		it := items[i]
		if _, dup := p.index[it.ID]; dup {
			p.log.Debug("skipping duplicate feed item", "media_id", it.ID)
			continue
		}
		it.IsLiked = p.liked[it.ID]
		it.IsFavorited = p.favorited[it.ID]
		p.index[it.ID] = len(p.items)
		p.items = append(p.items, &it)
		kinds = append(kinds, it.Kind)
	}
	return kinds
}

func (p *Pager) fail(err error) {
	p.log.Warn("feed fetch failed", "error", err)
	p.notices(model.Notice{
		Level: model.NoticeError,
		Text:  "Failed to load media: " + errordefs.MessageOf(err),
		At:    p.loop.Clock().Now(),
	})
}

// loadViewerSets fetches liked and favorited ids and applies them to the window.
func (p *Pager) loadViewerSets() {
	loop.Async(p.loop, p.backend.LikedMediaIDs, func(ids []string, err error) {
		if err != nil {
			p.log.Warn("loading liked media failed", "error", err)
			return
		}
		for _, id := range ids {
			// a tap that landed first already knows better
			if _, known := p.liked[id]; known {
				continue
			}
			p.liked[id] = true
			if it, ok := p.Lookup(id); ok {
				it.IsLiked = true
			}
		}
	})
	loop.Async(p.loop, p.backend.FavoritedMediaIDs, func(ids []string, err error) {
		if err != nil {
			p.log.Warn("loading favorited media failed", "error", err)
			return
		}
		for _, id := range ids {
			if _, known := p.favorited[id]; known {
				continue
			}
			p.favorited[id] = true
			if it, ok := p.Lookup(id); ok {
				it.IsFavorited = true
			}
		}
	})
}
