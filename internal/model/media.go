// internal/model/media.go
// Package model defines the data structures used throughout the feed sync engine.
// These structures represent media items, playback state, interaction deltas,
// comment threads, notifications, and search state.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the media kind of a feed item.
// It is a closed set: every kind must declare how it plays and where its
// objects live, so adding a kind without that behavior does not compile.
type Kind interface {
	// Name is the wire name of the kind ("video", "audio", "image").
	Name() string
	// Playable reports whether the kind has a media element that plays.
	Playable() bool
	// Bucket is the object storage bucket holding files of this kind.
	Bucket() string

	sealed()
}

// Video is a playable video item.
type Video struct{}

// Audio is a playable audio item.
type Audio struct{}

// Image is a still image; it never plays.
type Image struct{}

func (Video) Name() string   { return "video" }
func (Video) Playable() bool { return true }
func (Video) Bucket() string { return "videos" }
func (Video) sealed()        {}

func (Audio) Name() string   { return "audio" }
func (Audio) Playable() bool { return true }
func (Audio) Bucket() string { return "audio" }
func (Audio) sealed()        {}

func (Image) Name() string   { return "image" }
func (Image) Playable() bool { return false }
func (Image) Bucket() string { return "images" }
func (Image) sealed()        {}

// ParseKind converts a wire media type into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "video":
		return Video{}, nil
	case "audio":
		return Audio{}, nil
	case "image":
		return Image{}, nil
	default:
		return nil, fmt.Errorf("unknown media kind %q", s)
	}
}

// Source references the playable object of a media item.
type Source struct {
	SignedURL string // Pre-signed URL from the backend, preferred when set
	FilePath  string // Object key inside the kind's bucket
	URL       string // Resolved URL handed to the renderer
}

// MediaItem is one entry of the feed.
// IsLiked and IsFavorited are per-viewer flags derived on the client and are
// only authoritative once reconciled with the server.
type MediaItem struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"-"`
	Source       Source    `json:"-"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Creator      Creator   `json:"creator"`
	Likes        int       `json:"likes"`
	CommentCount int       `json:"commentCount"`
	IsLiked      bool      `json:"isLiked"`
	IsFavorited  bool      `json:"isFavorited"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MarshalJSON adds the kind name and resolved URL to the item.
func (m MediaItem) MarshalJSON() ([]byte, error) {
	type alias MediaItem
	kind := ""
	if m.Kind != nil {
		kind = m.Kind.Name()
	}
	return json.Marshal(struct {
		alias
		Kind string `json:"kind"`
		URL  string `json:"url"`
	}{alias(m), kind, m.Source.URL})
}

// Creator identifies who uploaded a media item.
type Creator struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// MediaType selects which kinds a feed shows.
type MediaType string

const (
	MediaTypeAll   MediaType = "all"
	MediaTypeVideo MediaType = "video"
	MediaTypeMusic MediaType = "music"
)

// Filters are the feed query parameters.
type Filters struct {
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	Search    string            `json:"search"`
	MediaType MediaType         `json:"mediaType"`
	Extra     map[string]string `json:"extra,omitempty"` // Free-form filters passed through to the backend
}

// MediaPage is one page of a feed fetch.
type MediaPage struct {
	Items []MediaItem
	Total int // Total available items, zero when the backend did not say
}
