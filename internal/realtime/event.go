package realtime

import (
	"encoding/json"
	"log"

	"foodline/internal/chat"
)

// Client-to-server event kinds. A closed set: anything else is a protocol
// error.
const (
	EventSendMessage = "send-message"
	EventJoinTopic   = "join-topic"
	EventLeaveTopic  = "leave-topic"
	EventPing        = "ping"
)

// Server-to-client event kinds.
const (
	EventMessage   = "message"
	EventAck       = "ack"
	EventError     = "error"
	EventPong      = "pong"
	EventBroadcast = "broadcast"
)

// ClientEvent is the decoded form of every inbound frame. Fields beyond
// Type are populated per kind; validation happens before dispatch.
type ClientEvent struct {
	Type       string `json:"type"`
	ReceiverID int    `json:"receiverId,omitempty"`
	Content    string `json:"content,omitempty"`
	Topic      string `json:"topic,omitempty"`
}

// ServerEvent is the wire shape of every outbound frame.
type ServerEvent struct {
	Type        string        `json:"type"`
	Success     bool          `json:"success,omitempty"`
	Message     *chat.Message `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	Status      string        `json:"status,omitempty"`
	Topic       string        `json:"topic,omitempty"`
	ContentType string        `json:"contentType,omitempty"`
	Body        string        `json:"body,omitempty"`
}

func errorFrame(msg string) []byte {
	return mustMarshal(ServerEvent{Type: EventError, Error: msg})
}

func pongFrame() []byte {
	return mustMarshal(ServerEvent{Type: EventPong, Status: "pong"})
}

// mustMarshal is safe here: ServerEvent contains nothing json can reject.
func mustMarshal(ev ServerEvent) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("marshal server event: %v", err)
		return []byte(`{"type":"error","error":"internal error"}`)
	}
	return payload
}
