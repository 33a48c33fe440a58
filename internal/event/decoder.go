package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// fallbackFields is the fixed list of top-level keys lifted into the data
// payload when a producer sends a flat record instead of a nested data
// object.
var fallbackFields = []string{"userEmail", "email", "firstName", "lastName", "userName"}

// Decode normalizes a raw bus record into a CanonicalEvent. It is total:
// malformed or ambiguous input degrades to best-effort field extraction
// with sentinel defaults, never an error.
func Decode(raw []byte) CanonicalEvent {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return withDefaults(CanonicalEvent{})
	}

	ev := CanonicalEvent{
		EventID:   stringValue(fields, "eventId"),
		EventType: stringValue(fields, "eventType"),
		Source:    stringValue(fields, "source"),
		Version:   stringValue(fields, "version"),
		Timestamp: timeValue(fields, "timestamp"),
	}

	if data, ok := fields["data"].(map[string]interface{}); ok {
		ev.Data = data
	} else {
		ev.Data = extractFlat(fields)
	}

	if metadata, ok := fields["metadata"].(map[string]interface{}); ok {
		ev.Metadata = metadata
	}

	return withDefaults(ev)
}

func withDefaults(ev CanonicalEvent) CanonicalEvent {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.EventType == "" {
		ev.EventType = TypeUnknown
	}
	if ev.Source == "" {
		ev.Source = TypeUnknown
	}
	if ev.Version == "" {
		ev.Version = "1.0"
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Data == nil {
		ev.Data = map[string]interface{}{}
	}
	return ev
}

func extractFlat(fields map[string]interface{}) map[string]interface{} {
	data := make(map[string]interface{})
	for _, key := range fallbackFields {
		if v, ok := fields[key]; ok {
			data[key] = v
		}
	}
	return data
}

func stringValue(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers land as float64; render integers without the
		// trailing ".000000".
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func timeValue(fields map[string]interface{}, key string) time.Time {
	raw, ok := fields[key].(string)
	if !ok || raw == "" {
		return time.Time{}
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
