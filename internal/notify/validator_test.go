package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		kind    string
		payload string
		wantErr bool
	}{
		{"notification with string id", EventNewNotification, `{"notification_id":"a1","message":"hi"}`, false},
		{"notification with numeric id", EventNewNotification, `{"notification_id":12}`, false},
		{"notification without id", EventNewNotification, `{"message":"hi"}`, true},
		{"notification with bad read flag", EventNewNotification, `{"notification_id":"a","is_read":"yes"}`, true},
		{"unread count", EventUnreadCount, `{"count":3}`, false},
		{"negative unread count", EventUnreadCount, `{"count":-2}`, true},
		{"list", EventNotificationsList, `{"notifications":[{"notification_id":1}]}`, false},
		{"list of non objects", EventNotificationsList, `{"notifications":[1,2]}`, true},
		{"marked read", EventMarkedRead, `{"notificationId":"x"}`, false},
		{"missing payload", EventMarkedRead, ``, true},
		{"preferences must be an object", EventPreferences, `[]`, true},
		{"all read takes anything", EventAllMarkedRead, ``, false},
		{"unknown events are not validated", "whatever", `42`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.kind, []byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewCommand(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	env, err := NewCommand(CommandMarkRead, map[string]string{"notificationId": "n1"}, now)
	require.NoError(t, err)
	require.Equal(t, CommandMarkRead, env.Type)
	require.Equal(t, now.UTC(), env.OccurredAt)
	require.Len(t, env.CorrelationID, 36)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.Contains(t, string(b), `"payload":{"notificationId":"n1"}`)

	bare, err := NewCommand(CommandGetNotifications, nil, now)
	require.NoError(t, err)
	require.Nil(t, bare.Payload)
	b, err = json.Marshal(bare)
	require.NoError(t, err)
	require.NotContains(t, string(b), "payload")
}

func TestIDString(t *testing.T) {
	require.Equal(t, "abc", idString(json.RawMessage(`"abc"`)))
	require.Equal(t, "42", idString(json.RawMessage(` 42 `)))
	require.Empty(t, idString(json.RawMessage(`{}`)))
}

func TestSubjects(t *testing.T) {
	tr := NewNATSTransport("nats://localhost:4222", "feedsync.notifications", nil)
	events, commands := tr.Subjects("jane.doe@example.com")
	require.Equal(t, "feedsync.notifications.jane_doe@example_com.events", events)
	require.Equal(t, "feedsync.notifications.jane_doe@example_com.commands", commands)

	events, _ = tr.Subjects("")
	require.Equal(t, "feedsync.notifications.anonymous.events", events)
}
