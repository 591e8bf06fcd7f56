// internal/notify/validator.go
package notify

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// payloadSchemas holds the JSON schema of each event payload that carries data.
// Events without an entry are accepted with any payload.
var payloadSchemas = map[string]string{
	EventNewNotification:    `{"type":"object","required":["notification_id"],"properties":{"notification_id":{"type":["string","integer"]},"notification_type":{"type":"string"},"message":{"type":"string"},"is_read":{"type":"boolean"}}}`,
	EventUnreadCount:        `{"type":"object","required":["count"],"properties":{"count":{"type":"integer","minimum":0}}}`,
	EventNotificationsList:  `{"type":"object","required":["notifications"],"properties":{"notifications":{"type":"array","items":{"type":"object","required":["notification_id"]}}}}`,
	EventMarkedRead:         `{"type":"object","required":["notificationId"],"properties":{"notificationId":{"type":["string","integer"]}}}`,
	EventPreferences:        `{"type":"object"}`,
	EventPreferencesUpdated: `{"type":"object"}`,
}

// Validator checks event payloads against their schemas before they are applied.
type Validator struct {
	schemas map[string]*gojsonschema.Schema // Map of event type to compiled schema
}

// NewValidator compiles the payload schemas.
// Returns:
//   - *Validator: Initialized validator instance
//   - error: Any error that occurred while compiling a schema
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(payloadSchemas))}
	for kind, doc := range payloadSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", kind, err)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// Validate checks the payload of an event.
// Parameters:
//   - kind: The event type
//   - payload: The raw JSON payload
//
// Returns:
//   - error: nil if valid or if the event type has no schema, details otherwise
func (v *Validator) Validate(kind string, payload []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return nil
	}
	if len(payload) == 0 {
		return fmt.Errorf("validation failed: %s event has no payload", kind)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
