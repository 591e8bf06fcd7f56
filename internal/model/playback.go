package model

import "encoding/json"

// ElementState is the state of one loaded media element.
type ElementState string

const (
	ElementIdle    ElementState = "idle"
	ElementPlaying ElementState = "playing"
	ElementPaused  ElementState = "paused"
	ElementLoading ElementState = "loading"
)

// NoActive marks an empty feed in PlaybackState.ActiveIndex.
const NoActive = -1

// PlaybackState is the single authoritative playback state.
// ActiveIndex is NoActive exactly when the feed is empty.
type PlaybackState struct {
	ActiveIndex int  `json:"-"`
	IsPlaying   bool `json:"isPlaying"`
	Volume      int  `json:"volume"` // 0 or 1
	Loading     bool `json:"loading"`
}

// Active returns the active index and whether there is one.
func (s PlaybackState) Active() (int, bool) {
	return s.ActiveIndex, s.ActiveIndex != NoActive
}

// MarshalJSON renders ActiveIndex as null for an empty feed.
func (s PlaybackState) MarshalJSON() ([]byte, error) {
	type alias PlaybackState
	var active *int
	if i, ok := s.Active(); ok {
		active = &i
	}
	return json.Marshal(struct {
		alias
		ActiveIndex *int `json:"activeIndex"`
	}{alias(s), active})
}

// IndicatorState is the transient pause indicator shown after resuming.
type IndicatorState string

const (
	IndicatorHidden  IndicatorState = "hidden"
	IndicatorVisible IndicatorState = "visible"
	IndicatorFading  IndicatorState = "fading"
)
