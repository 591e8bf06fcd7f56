// internal/search/resolver.go
// Package search debounces search box input into suggestion lookups and
// committed feed filters.
//
// Two timers run off the same raw input. The short suggestion timer looks up
// suggestions for inputs of at least MinQueryLength characters; the longer
// filter timer commits the input to the feed. A keystroke restarts both.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

const (
	DefaultSuggestionDelay = 300 * time.Millisecond
	DefaultFilterDelay     = 500 * time.Millisecond
	MinQueryLength         = 2
)

// Feed receives committed search strings.
type Feed interface {
	Filters() model.Filters
	SetSearch(search string)
}

// Config holds the Resolver's collaborators and timings.
type Config struct {
	Loop            *loop.Loop
	Backend         backend.Backend
	Feed            Feed
	Logger          *slog.Logger
	SuggestionDelay time.Duration
	FilterDelay     time.Duration
}

// Resolver is the debounced query resolver. All methods are loop-confined.
type Resolver struct {
	loop    *loop.Loop
	backend backend.Backend
	feed    Feed
	log     *slog.Logger

	suggest *loop.Debouncer
	filter  *loop.Debouncer
	state   model.SearchState
	seq     uint64 // Bumped by every input change; stale lookups compare against it
}

// New creates a Resolver with an empty input.
func New(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SuggestionDelay <= 0 {
		cfg.SuggestionDelay = DefaultSuggestionDelay
	}
	if cfg.FilterDelay <= 0 {
		cfg.FilterDelay = DefaultFilterDelay
	}
	return &Resolver{
		loop:    cfg.Loop,
		backend: cfg.Backend,
		feed:    cfg.Feed,
		log:     cfg.Logger,
		suggest: loop.NewDebouncer(cfg.Loop, cfg.SuggestionDelay),
		filter:  loop.NewDebouncer(cfg.Loop, cfg.FilterDelay),
		state:   model.SearchState{Suggestions: []model.Suggestion{}},
	}
}

// State returns the current search box state.
func (r *Resolver) State() model.SearchState {
	st := r.state
	st.Suggestions = append([]model.Suggestion{}, r.state.Suggestions...)
	return st
}

// Input records a keystroke and restarts both timers.
func (r *Resolver) Input(raw string) {
	r.seq++
	r.state.Raw = raw
	r.suggest.Trigger(func() { r.lookup(raw) })
	r.filter.Trigger(func() { r.commit(raw) })
}

// Select takes a suggestion: the input becomes its title, the panel closes
// and the title is committed without waiting for either timer.
func (r *Resolver) Select(s model.Suggestion) {
	r.suggest.Cancel()
	r.filter.Cancel()
	r.seq++
	r.state.Raw = s.Title
	r.hide()
	r.commit(s.Title)
}

// Close stops both timers.
func (r *Resolver) Close() {
	r.suggest.Cancel()
	r.filter.Cancel()
}

func (r *Resolver) lookup(raw string) {
	q := strings.TrimSpace(raw)
	if utf8.RuneCountInString(q) < MinQueryLength {
		r.state.SuggestionQuery = ""
		r.hide()
		return
	}
	r.state.SuggestionQuery = q
	mediaType := r.feed.Filters().MediaType
	seq := r.seq

	loop.Async(r.loop, func(ctx context.Context) ([]model.Suggestion, error) {
		return r.backend.Suggestions(ctx, q, mediaType)
	}, func(suggestions []model.Suggestion, err error) {
		if seq != r.seq {
			r.log.Debug("dropping stale suggestions", "query", q)
			return
		}
		if err != nil {
			r.log.Warn("suggestion lookup failed", "query", q, "error", err)
			r.hide()
			return
		}
		if suggestions == nil {
			suggestions = []model.Suggestion{}
		}
		r.state.Suggestions = suggestions
		r.state.PanelOpen = len(suggestions) > 0
	})
}

func (r *Resolver) commit(raw string) {
	q := strings.TrimSpace(raw)
	r.state.Committed = q
	if q == r.feed.Filters().Search {
		return
	}
	r.feed.SetSearch(q)
}

func (r *Resolver) hide() {
	r.state.Suggestions = []model.Suggestion{}
	r.state.PanelOpen = false
}
