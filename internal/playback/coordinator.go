// internal/playback/coordinator.go
// Package playback keeps exactly one media element eligible to play.
//
// The Coordinator owns the authoritative PlaybackState. Every change of the
// active index goes through Focus; after any change the coordinator drives
// every bound element to the state the PlaybackState implies. All methods
// are loop-confined.
package playback

import (
	"log/slog"
	"time"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// Indicator timings after resuming playback.
const (
	IndicatorVisibleFor = 2 * time.Second
	IndicatorFadeFor    = 300 * time.Millisecond
)

// Element is a renderer-side media element the coordinator drives.
type Element interface {
	// Play starts or resumes playback. Renderers may refuse (autoplay policy).
	Play() error
	// Pause stops playback, keeping the position.
	Pause()
	// SetVolume sets the output volume, 0 or 1.
	SetVolume(v int)
}

// slot is the coordinator's view of one feed position.
type slot struct {
	kind   model.Kind
	el     Element // nil until the renderer binds one
	state  model.ElementState
	volume int
}

// Coordinator is the playback state machine over the feed window.
type Coordinator struct {
	loop  *loop.Loop
	log   *slog.Logger
	state model.PlaybackState
	slots []slot

	indicator model.IndicatorState
	indTimer  *loop.Timer
}

// New creates a coordinator for an empty feed. Playback starts unmuted and playing.
func New(l *loop.Loop, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		loop: l,
		log:  log,
		state: model.PlaybackState{
			ActiveIndex: model.NoActive,
			IsPlaying:   true,
			Volume:      1,
		},
		indicator: model.IndicatorHidden,
	}
}

// State returns a copy of the playback state.
func (c *Coordinator) State() model.PlaybackState { return c.state }

// Len returns the number of tracked feed positions.
func (c *Coordinator) Len() int { return len(c.slots) }

// Elements returns the per-position element states.
func (c *Coordinator) Elements() []model.ElementState {
	out := make([]model.ElementState, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.state
	}
	return out
}

// Indicator returns the transient pause indicator state.
func (c *Coordinator) Indicator() model.IndicatorState { return c.indicator }

// Replace resets the tracked positions to kinds, as after a filter change.
// Bound elements are dropped; the first item becomes active.
func (c *Coordinator) Replace(kinds []model.Kind) {
	for i := range c.slots {
		if el := c.slots[i].el; el != nil {
			el.Pause()
		}
	}
	c.slots = make([]slot, 0, len(kinds))
	c.state.ActiveIndex = model.NoActive
	c.state.Loading = false
	c.Append(kinds)
}

// Append tracks newly appended feed positions without moving the active index,
// except that the first item of an empty feed becomes active.
func (c *Coordinator) Append(kinds []model.Kind) {
	for _, k := range kinds {
		c.slots = append(c.slots, slot{kind: k, state: model.ElementIdle})
	}
	if c.state.ActiveIndex == model.NoActive && len(c.slots) > 0 {
		c.state.ActiveIndex = 0
	}
	c.apply()
}

// Focus makes index i the active item, clamped to the feed.
// It is the only way the active index changes. It reports whether it changed.
func (c *Coordinator) Focus(i int) bool {
	if len(c.slots) == 0 {
		return false
	}
	if i < 0 {
		i = 0
	}
	if i > len(c.slots)-1 {
		i = len(c.slots) - 1
	}
	if i == c.state.ActiveIndex {
		return false
	}
	c.state.ActiveIndex = i
	c.state.Loading = false
	c.apply()
	return true
}

// Toggle flips between playing and paused.
func (c *Coordinator) Toggle() {
	c.state.IsPlaying = !c.state.IsPlaying
	c.apply()
	if c.state.IsPlaying {
		c.showIndicator()
	} else {
		c.hideIndicator()
	}
}

// ToggleMute flips the volume between 0 and 1. Only the active element hears it.
func (c *Coordinator) ToggleMute() {
	c.state.Volume = 1 - c.state.Volume
	c.apply()
}

// Ended handles the natural end of the element at i: the next item becomes
// active, wrapping to the first after the last.
func (c *Coordinator) Ended(i int) {
	if i != c.state.ActiveIndex || len(c.slots) == 0 {
		return
	}
	next := i + 1
	if next >= len(c.slots) {
		next = 0
	}
	if next == i {
		// single item feed: restart it in place
		c.slots[i].state = model.ElementPaused
		c.apply()
		return
	}
	c.Focus(next)
}

// Buffering marks the active element as loading. Events of other elements are ignored.
func (c *Coordinator) Buffering(i int) {
	if i != c.state.ActiveIndex {
		return
	}
	c.state.Loading = true
	c.apply()
}

// Ready clears the loading flag when the active element can play.
func (c *Coordinator) Ready(i int) {
	if i != c.state.ActiveIndex {
		return
	}
	c.state.Loading = false
	c.apply()
}

// Failed clears the loading flag when the active element errors.
func (c *Coordinator) Failed(i int) {
	if i != c.state.ActiveIndex {
		return
	}
	c.log.Warn("active media element failed", "index", i)
	c.state.Loading = false
	c.apply()
}

// Bind attaches a renderer element to position i and drives it to its state.
func (c *Coordinator) Bind(i int, el Element) {
	if i < 0 || i >= len(c.slots) {
		return
	}
	c.slots[i].el = el
	c.slots[i].state = model.ElementIdle
	c.slots[i].volume = -1
	c.apply()
}

// Unbind detaches the element at position i.
func (c *Coordinator) Unbind(i int) {
	if i < 0 || i >= len(c.slots) {
		return
	}
	c.slots[i].el = nil
}

// Close stops pending indicator timers.
func (c *Coordinator) Close() {
	c.indTimer.Stop()
	c.indTimer = nil
}

// apply drives every element to the state implied by the playback state.
func (c *Coordinator) apply() {
	for i := range c.slots {
		s := &c.slots[i]
		if s.kind == nil || !s.kind.Playable() {
			s.state = model.ElementIdle
			continue
		}

		want, volume := model.ElementPaused, 0
		if i == c.state.ActiveIndex {
			volume = c.state.Volume
			if c.state.IsPlaying {
				want = model.ElementPlaying
				if c.state.Loading {
					want = model.ElementLoading
				}
			}
		}

		if s.el != nil && s.volume != volume {
			s.el.SetVolume(volume)
		}
		s.volume = volume

		prev := s.state
		s.state = want
		if s.el == nil {
			continue
		}
		switch want {
		case model.ElementPlaying, model.ElementLoading:
			if prev != model.ElementPlaying && prev != model.ElementLoading {
				if err := s.el.Play(); err != nil {
					c.log.Debug("element refused to play", "index", i, "error", err)
					s.state = model.ElementPaused
				}
			}
		case model.ElementPaused:
			if prev != model.ElementPaused {
				s.el.Pause()
			}
		}
	}
}

func (c *Coordinator) showIndicator() {
	c.indTimer.Stop()
	c.indicator = model.IndicatorVisible
	c.indTimer = c.loop.AfterFunc(IndicatorVisibleFor, func() {
		c.indicator = model.IndicatorFading
		c.indTimer = c.loop.AfterFunc(IndicatorFadeFor, func() {
			c.indicator = model.IndicatorHidden
			c.indTimer = nil
		})
	})
}

func (c *Coordinator) hideIndicator() {
	c.indTimer.Stop()
	c.indTimer = nil
	c.indicator = model.IndicatorHidden
}
