// internal/notify/envelope.go
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the version stamped on outgoing commands.
const EnvelopeVersion = "1.0.0"

// Server to client event types.
const (
	EventNewNotification    = "new_notification"
	EventUnreadCount        = "unread_count"
	EventNotificationsList  = "notifications_list"
	EventMarkedRead         = "notification_marked_read"
	EventAllMarkedRead      = "all_notifications_marked_read"
	EventPreferences        = "notification_preferences"
	EventPreferencesUpdated = "notification_preferences_updated"
	EventError              = "error"
)

// Client to server command types.
const (
	CommandGetNotifications  = "get_notifications"
	CommandGetPreferences    = "get_notification_preferences"
	CommandMarkRead          = "mark_notification_read"
	CommandMarkAllRead       = "mark_all_read"
	CommandUpdatePreferences = "update_notification_preferences"
)

// Envelope wraps every message on the push channel in both directions.
type Envelope struct {
	Type          string          `json:"type"`          // Event or command type
	Version       string          `json:"version"`       // Envelope schema version
	OccurredAt    time.Time       `json:"occurredAt"`    // When the message was produced
	CorrelationID string          `json:"correlationId"` // Correlation ID for tracing
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewCommand wraps a command payload in an envelope with a fresh correlation id.
// A nil payload is sent without a payload field.
func NewCommand(kind string, payload any, now time.Time) (Envelope, error) {
	env := Envelope{
		Type:          kind,
		Version:       EnvelopeVersion,
		OccurredAt:    now.UTC(),
		CorrelationID: uuid.New().String(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Payload = b
	}
	return env, nil
}

// idString decodes an id sent either as a JSON string or a JSON number.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
