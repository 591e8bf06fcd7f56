package model

import "time"

// NotificationSource records which path delivered a notification.
type NotificationSource string

const (
	SourcePush     NotificationSource = "push"
	SourceREST     NotificationSource = "rest"
	SourceSnapshot NotificationSource = "snapshot"
)

// NotificationRecord is a single notification. IDs are globally unique.
type NotificationRecord struct {
	ID        string             `json:"notification_id"`
	Type      string             `json:"notification_type"` // LIKE, FAVORITE, COMMENT, REPLY, DOWNLOAD, ...
	Action    string             `json:"action_type,omitempty"`
	Message   string             `json:"message"`
	Read      bool               `json:"is_read"`
	Priority  string             `json:"priority,omitempty"` // urgent, high, normal, low
	CreatedAt time.Time          `json:"created_at"`
	Source    NotificationSource `json:"source,omitempty"`
}

// Preferences are the user's notification settings, opaque to the engine.
type Preferences map[string]any

// NotificationState is the observable state of the notification channel.
type NotificationState struct {
	Records     []NotificationRecord `json:"notifications"`
	Unread      int                  `json:"unreadCount"`
	Connected   bool                 `json:"connected"`
	Loading     bool                 `json:"loading"`
	Preferences Preferences          `json:"preferences,omitempty"`
}
