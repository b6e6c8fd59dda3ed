package realtime

import (
	"context"
	"log"
	"time"

	"foodline/internal/chat"
)

// Router is the per-user message path: validate, persist, fan out. The
// sender identity always comes from the authenticated connection, never
// from the payload.
type Router struct {
	registry        *Registry
	store           chat.Store
	maxContentBytes int
	storeTimeout    time.Duration
}

func NewRouter(registry *Registry, store chat.Store, maxContentBytes int, storeTimeout time.Duration) *Router {
	return &Router{
		registry:        registry,
		store:           store,
		maxContentBytes: maxContentBytes,
		storeTimeout:    storeTimeout,
	}
}

// Route processes one send-message request and returns the frame to
// deliver to the originating connection: an ack carrying the canonical
// message on success, an error frame otherwise.
//
// Ordering is the core contract: nothing is fanned out unless the store
// call succeeded first, so a delivered-but-unrecorded message cannot
// exist. The reverse (recorded but nobody connected) is fine; the history
// read path covers it.
func (r *Router) Route(ctx context.Context, sender *Client, ev ClientEvent) []byte {
	if ev.ReceiverID <= 0 || ev.Content == "" {
		return errorFrame("Missing receiverId or content")
	}
	if len(ev.Content) > r.maxContentBytes {
		return errorFrame("Content exceeds maximum size")
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	msg, err := r.store.CreateMessage(ctx, sender.UserID, ev.ReceiverID, ev.Content)
	if err != nil {
		log.Printf("store message [%s -> %d]: %v", sender.ID, ev.ReceiverID, err)
		return errorFrame("Failed to store message")
	}

	// Canonical frame, built exactly once, shared by every recipient.
	frame := mustMarshal(ServerEvent{Type: EventMessage, Message: msg})

	// Receiver's and sender's identity channels, deduplicated so a
	// self-send still delivers once per connection. The originating
	// connection gets the ack instead of an echo.
	recipients := make(map[*Client]struct{})
	for _, c := range r.registry.Lookup(ev.ReceiverID) {
		recipients[c] = struct{}{}
	}
	for _, c := range r.registry.Lookup(sender.UserID) {
		recipients[c] = struct{}{}
	}
	delete(recipients, sender)

	for c := range recipients {
		c.enqueue(frame)
	}

	return mustMarshal(ServerEvent{Type: EventAck, Success: true, Message: msg})
}
