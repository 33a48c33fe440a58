package event

import (
	"strings"
	"time"
)

// Event types this service turns into notifications. Comparison always
// goes through NormalizeType so USER_CREATED and user.created are the
// same type.
const (
	TypeUserCreated    = "user.created"
	TypeUserDisabled   = "user.disabled"
	TypeTeacherCreated = "teacher.created"
	TypeUnknown        = "unknown"
)

// CanonicalEvent is the normalized internal representation of an inbound
// bus record. Immutable once built by Decode.
type CanonicalEvent struct {
	EventID   string                 `json:"eventId"`
	EventType string                 `json:"eventType"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NormalizeType lowercases the event type and maps snake_case onto the
// dotted spelling.
func NormalizeType(eventType string) string {
	return strings.ReplaceAll(strings.ToLower(eventType), "_", ".")
}

// ShouldNotify reports whether records of the given type become
// notifications.
func ShouldNotify(eventType string) bool {
	switch NormalizeType(eventType) {
	case TypeUserCreated, TypeUserDisabled, TypeTeacherCreated:
		return true
	default:
		return false
	}
}

// StringField returns data[key] rendered as a string, or "" when absent.
func (e CanonicalEvent) StringField(key string) string {
	return stringValue(e.Data, key)
}
