package chat

import (
	"context"
	"time"
)

// Message is the canonical message representation. The live websocket push
// and the REST history read both serialize this exact struct, so clients
// see one shape regardless of which path delivered it.
type Message struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"senderId"`
	ReceiverID int       `json:"receiverId"`
	SenderName string    `json:"senderName"` // Denormalized for UI speed (fetched via JOIN)
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the persistence boundary of the realtime core. The router calls
// CreateMessage before any fan-out; a message that was pushed but never
// stored must be impossible.
type Store interface {
	CreateMessage(ctx context.Context, senderID, receiverID int, content string) (*Message, error)
	GetMessages(ctx context.Context, userID, peerID, limit, offset int) ([]*Message, error)
}
