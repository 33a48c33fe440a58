package stream

import (
	"encoding/json"
	"time"

	"notifier/internal/auth"
	"notifier/internal/notification"
)

// Message types on the streaming socket. Inbound types come from the
// client, the rest are server-sent.
const (
	MessageTypePing         = "ping"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeWelcome      = "welcome"
	MessageTypePong         = "pong"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeNotification = "notification"
)

// inboundMessage only carries a type; payloads on client messages are
// ignored.
type inboundMessage struct {
	Type string `json:"type"`
}

func welcomeMessage(subject auth.Subject) []byte {
	return mustEncode(map[string]interface{}{
		"type":          MessageTypeWelcome,
		"message":       "Connected to notifications service",
		"authenticated": true,
		"userId":        subject.UserID,
		"email":         subject.Email,
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

func pongMessage() []byte {
	return mustEncode(map[string]interface{}{
		"type":      MessageTypePong,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func subscribedMessage() []byte {
	return mustEncode(map[string]interface{}{
		"type":      MessageTypeSubscribed,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func notificationMessage(n *notification.Notification) []byte {
	return mustEncode(map[string]interface{}{
		"type": MessageTypeNotification,
		"data": n.DTO(),
	})
}

// mustEncode is safe here: every message is a map of plain strings,
// bools, and a DTO, none of which can fail to marshal.
func mustEncode(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
