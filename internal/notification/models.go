package notification

import (
	"encoding/json"
	"strconv"
	"time"
)

// Notification is the persisted projection of a bus event. EventID carries
// the unique constraint that makes ingestion idempotent.
type Notification struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      string    `json:"data,omitempty"`
	Read      bool      `json:"read"`
	EventTime time.Time `json:"eventTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DTO is the wire projection shared by the REST API and the streaming
// envelopes: string id, ISO-8601 timestamp, data parsed back into JSON.
type DTO struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
	Read      bool        `json:"read"`
	Data      interface{} `json:"data"`
}

func (n *Notification) DTO() DTO {
	dto := DTO{
		ID:        strconv.FormatInt(n.ID, 10),
		Type:      n.EventType,
		Title:     n.Title,
		Message:   n.Message,
		Timestamp: n.EventTime.Format(time.RFC3339),
		Read:      n.Read,
	}

	if n.Data != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(n.Data), &parsed); err == nil {
			dto.Data = parsed
		}
	}

	return dto
}

func ToDTOs(notifications []Notification) []DTO {
	dtos := make([]DTO, 0, len(notifications))
	for i := range notifications {
		dtos = append(dtos, notifications[i].DTO())
	}
	return dtos
}
