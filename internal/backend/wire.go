package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts counters sent either as numbers or numeric strings
// (aggregate counts often arrive as strings).
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexTime accepts RFC 3339 timestamps, with or without a zone, and empty values.
type flexTime time.Time

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		*f = flexTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	*f = flexTime{}
	return nil
}

type mediaDTO struct {
	MediaID           flexID   `json:"media_id"`
	MediaType         string   `json:"media_type"`
	SignedURL         string   `json:"signed_url"`
	FilePath          string   `json:"file_path"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CreatorName       string   `json:"creator_name"`
	CreatorProfilePic string   `json:"creator_profile_pic"`
	Likes             flexInt  `json:"likes"`
	Comments          flexInt  `json:"comments"`
	CreatedAt         flexTime `json:"created_at"`
}

type mediaListResponse struct {
	Media []mediaDTO `json:"media"`
	Total *flexInt   `json:"total"`
}

func (d mediaDTO) toModel() (model.MediaItem, error) {
	kind, err := model.ParseKind(strings.ToLower(d.MediaType))
	if err != nil {
		return model.MediaItem{}, err
	}
	return model.MediaItem{
		ID:   string(d.MediaID),
		Kind: kind,
		Source: model.Source{
			SignedURL: d.SignedURL,
			FilePath:  d.FilePath,
		},
		Title:        d.Title,
		Description:  d.Description,
		Creator:      model.Creator{Name: d.CreatorName, ProfilePic: d.CreatorProfilePic},
		Likes:        int(d.Likes),
		CommentCount: int(d.Comments),
		CreatedAt:    time.Time(d.CreatedAt),
	}, nil
}

type commentDTO struct {
	CommentID     flexID       `json:"comment_id"`
	CommentText   string       `json:"comment_text"`
	CommenterName string       `json:"commenter_name"`
	Likes         flexInt      `json:"likes"`
	CreatedAt     flexTime     `json:"created_at"`
	Replies       []commentDTO `json:"replies"`
}

type commentsResponse struct {
	Comments []commentDTO `json:"comments"`
}

func (d commentDTO) toModel() model.Comment {
	c := model.Comment{
		ID:        string(d.CommentID),
		Text:      d.CommentText,
		Author:    d.CommenterName,
		Likes:     int(d.Likes),
		CreatedAt: time.Time(d.CreatedAt),
	}
	for _, r := range d.Replies {
		c.Replies = append(c.Replies, r.toModel())
	}
	return c
}

type suggestionDTO struct {
	ID    flexID `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type suggestionsResponse struct {
	Suggestions []suggestionDTO `json:"suggestions"`
}

type notificationDTO struct {
	NotificationID   flexID   `json:"notification_id"`
	NotificationType string   `json:"notification_type"`
	ActionType       string   `json:"action_type"`
	Message          string   `json:"message"`
	IsRead           bool     `json:"is_read"`
	Priority         string   `json:"priority"`
	CreatedAt        flexTime `json:"created_at"`
}

type notificationsResponse struct {
	Notifications []notificationDTO `json:"notifications"`
}

// toRecord converts a wire notification into a record from the given source.
func (d notificationDTO) toRecord(src model.NotificationSource) model.NotificationRecord {
	return model.NotificationRecord{
		ID:        string(d.NotificationID),
		Type:      d.NotificationType,
		Action:    d.ActionType,
		Message:   d.Message,
		Read:      d.IsRead,
		Priority:  d.Priority,
		CreatedAt: time.Time(d.CreatedAt),
		Source:    src,
	}
}

// DecodeNotification parses one wire notification.
// The push channel carries the same shape as the REST list.
func DecodeNotification(raw json.RawMessage, src model.NotificationSource) (model.NotificationRecord, error) {
	var d notificationDTO
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.NotificationRecord{}, err
	}
	return d.toRecord(src), nil
}

// DecodeNotifications parses a wire notification array.
func DecodeNotifications(raw json.RawMessage, src model.NotificationSource) ([]model.NotificationRecord, error) {
	var ds []notificationDTO
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, err
	}
	out := make([]model.NotificationRecord, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.toRecord(src))
	}
	return out, nil
}

type likedResponse struct {
	LikedMediaIDs []flexID `json:"likedMediaIds"`
}

type favoritedResponse struct {
	FavoritedMediaIDs []flexID `json:"favoritedMediaIds"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func ids(in []flexID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		out = append(out, string(id))
	}
	return out
}
