package model

import "time"

// InteractionKind is a user interaction that mutates a media item.
type InteractionKind string

const (
	InteractionLike        InteractionKind = "like"
	InteractionUnlike      InteractionKind = "unlike"
	InteractionFavorite    InteractionKind = "favorite"
	InteractionUnfavorite  InteractionKind = "unfavorite"
	InteractionComment     InteractionKind = "comment"
	InteractionReply       InteractionKind = "reply"
	InteractionCommentLike InteractionKind = "comment_like"
	InteractionReport      InteractionKind = "report"
)

// DeltaStatus is the lifecycle of an optimistic change.
type DeltaStatus string

const (
	DeltaPending   DeltaStatus = "pending"
	DeltaConfirmed DeltaStatus = "confirmed"
	DeltaFailed    DeltaStatus = "failed"
)

// InteractionDelta is an optimistic change awaiting the server.
type InteractionDelta struct {
	ID        string          `json:"id"`
	MediaID   string          `json:"mediaId"`
	Kind      InteractionKind `json:"kind"`
	Prev      bool            `json:"prev"`      // Flag value before the change
	PrevCount int             `json:"prevCount"` // Counter value before the change
	Status    DeltaStatus     `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Comment is a top-level comment or a reply.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	Replies   []Comment `json:"replies,omitempty"`
}

// CommentThread is the comment tree of one media item.
type CommentThread struct {
	MediaID  string    `json:"mediaId"`
	Comments []Comment `json:"comments"`
	Expanded bool      `json:"expanded"`
	Loaded   bool      `json:"loaded"`
	Loading  bool      `json:"loading"`
}

// Suggestion is a search suggestion.
type Suggestion struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

// SearchState is the observable state of the search box.
type SearchState struct {
	Raw             string       `json:"raw"`
	Committed       string       `json:"committed"`
	SuggestionQuery string       `json:"suggestionQuery"`
	Suggestions     []Suggestion `json:"suggestions"`
	PanelOpen       bool         `json:"panelOpen"`
}

// NoticeLevel grades a user-visible message.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
	NoticeAuth  NoticeLevel = "auth"
)

// Notice is a non-fatal message surfaced to the user.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

// NoticeSink receives user-visible messages.
type NoticeSink func(Notice)
