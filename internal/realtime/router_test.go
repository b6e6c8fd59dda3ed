package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"foodline/internal/chat"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	created []*chat.Message
	fail    error
}

func (f *fakeStore) CreateMessage(ctx context.Context, senderID, receiverID int, content string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.nextID++
	msg := &chat.Message{
		ID:         f.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		SenderName: fmt.Sprintf("user-%d", senderID),
		Content:    content,
		CreatedAt:  time.Now(),
	}
	f.created = append(f.created, msg)
	return msg, nil
}

func (f *fakeStore) GetMessages(ctx context.Context, userID, peerID, limit, offset int) ([]*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*chat.Message
	for _, m := range f.created {
		if (m.SenderID == userID && m.ReceiverID == peerID) || (m.SenderID == peerID && m.ReceiverID == userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newTestRouter(store chat.Store) (*Router, *Registry) {
	reg := NewRegistry()
	return NewRouter(reg, store, 1024, time.Second), reg
}

// decodeFrame parses a single outbound frame.
func decodeFrame(t *testing.T, raw []byte) ServerEvent {
	t.Helper()
	var ev ServerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("bad frame %q: %v", raw, err)
	}
	return ev
}

// pendingFrames drains everything currently queued on a client.
func pendingFrames(t *testing.T, c *Client) []ServerEvent {
	t.Helper()
	var out []ServerEvent
	for {
		select {
		case raw := <-c.send:
			out = append(out, decodeFrame(t, raw))
		default:
			return out
		}
	}
}

func TestRouteFanOutToAllReceiverConnections(t *testing.T) {
	store := &fakeStore{}
	router, reg := newTestRouter(store)

	// User 1 has two tabs open; user 2 has the sending connection plus
	// one more device.
	tabA := testClient("tab-a", 1)
	tabB := testClient("tab-b", 1)
	sender := testClient("sender", 2)
	senderTab := testClient("sender-tab", 2)
	for _, c := range []*Client{tabA, tabB, sender, senderTab} {
		reg.Admit(c)
	}

	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 1, Content: "hi",
	}))

	if resp.Type != EventAck || !resp.Success {
		t.Fatalf("sender response = %+v, want successful ack", resp)
	}
	if resp.Message == nil || resp.Message.Content != "hi" || resp.Message.ID == 0 {
		t.Fatalf("ack message = %+v, want stored canonical message", resp.Message)
	}

	for _, c := range []*Client{tabA, tabB, senderTab} {
		frames := pendingFrames(t, c)
		if len(frames) != 1 {
			t.Fatalf("%s received %d frames, want 1", c.ID, len(frames))
		}
		if frames[0].Type != EventMessage || frames[0].Message.Content != "hi" {
			t.Errorf("%s received %+v, want message event", c.ID, frames[0])
		}
		if frames[0].Message.ID != resp.Message.ID {
			t.Errorf("%s saw message id %d, ack saw %d", c.ID, frames[0].Message.ID, resp.Message.ID)
		}
	}

	// The originating connection gets the ack only, no echo frame.
	if frames := pendingFrames(t, sender); len(frames) != 0 {
		t.Errorf("originating connection received %d extra frames", len(frames))
	}
}

func TestRouteValidation(t *testing.T) {
	tests := []struct {
		name string
		ev   ClientEvent
	}{
		{name: "missing receiver", ev: ClientEvent{Type: EventSendMessage, Content: "hi"}},
		{name: "missing content", ev: ClientEvent{Type: EventSendMessage, ReceiverID: 1}},
		{name: "negative receiver", ev: ClientEvent{Type: EventSendMessage, ReceiverID: -1, Content: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			router, reg := newTestRouter(store)
			receiver := testClient("r", 1)
			sender := testClient("s", 2)
			reg.Admit(receiver)
			reg.Admit(sender)

			resp := decodeFrame(t, router.Route(context.Background(), sender, tt.ev))

			if resp.Type != EventError || resp.Error != "Missing receiverId or content" {
				t.Errorf("response = %+v, want structured validation error", resp)
			}
			if store.count() != 0 {
				t.Error("validation failure still hit the store")
			}
			if frames := pendingFrames(t, receiver); len(frames) != 0 {
				t.Errorf("receiver got %d frames from an invalid send", len(frames))
			}
		})
	}
}

func TestRouteOversizedContent(t *testing.T) {
	store := &fakeStore{}
	router, reg := newTestRouter(store)
	sender := testClient("s", 2)
	reg.Admit(sender)

	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 1, Content: strings.Repeat("x", 2048),
	}))

	if resp.Type != EventError {
		t.Fatalf("response = %+v, want error", resp)
	}
	if store.count() != 0 {
		t.Error("oversized content reached the store")
	}
}

func TestRouteStoreFailureSuppressesFanOut(t *testing.T) {
	store := &fakeStore{fail: errors.New("db down")}
	router, reg := newTestRouter(store)
	receiver := testClient("r", 1)
	sender := testClient("s", 2)
	reg.Admit(receiver)
	reg.Admit(sender)

	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 1, Content: "hi",
	}))

	if resp.Type != EventError {
		t.Fatalf("response = %+v, want error on store failure", resp)
	}
	// Store-before-publish: nothing may have been fanned out.
	if frames := pendingFrames(t, receiver); len(frames) != 0 {
		t.Errorf("receiver got %d frames despite store failure", len(frames))
	}
}

// blockedStore never returns until its context does, simulating a hung
// database.
type blockedStore struct{}

func (b *blockedStore) CreateMessage(ctx context.Context, senderID, receiverID int, content string) (*chat.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockedStore) GetMessages(ctx context.Context, userID, peerID, limit, offset int) ([]*chat.Message, error) {
	return nil, nil
}

func TestRouteStoreTimeout(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg, &blockedStore{}, 1024, 50*time.Millisecond)
	receiver := testClient("r", 1)
	sender := testClient("s", 2)
	reg.Admit(receiver)
	reg.Admit(sender)

	start := time.Now()
	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 1, Content: "hi",
	}))

	// A hung store call is bounded and surfaces as a failure to the
	// sender, never left pending.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Route blocked for %v on a hung store", elapsed)
	}
	if resp.Type != EventError {
		t.Fatalf("response = %+v, want error on store timeout", resp)
	}
	if frames := pendingFrames(t, receiver); len(frames) != 0 {
		t.Errorf("receiver got %d frames despite store timeout", len(frames))
	}
}

func TestRouteOfflineReceiver(t *testing.T) {
	store := &fakeStore{}
	router, reg := newTestRouter(store)
	sender := testClient("s", 2)
	reg.Admit(sender)

	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 99, Content: "hi",
	}))

	// Offline receiver is a no-op fan-out, not a failure; the message is
	// still durably stored for the history read path.
	if resp.Type != EventAck || !resp.Success {
		t.Fatalf("response = %+v, want successful ack", resp)
	}
	if store.count() != 1 {
		t.Errorf("store has %d messages, want 1", store.count())
	}
}

func TestRouteSelfSend(t *testing.T) {
	store := &fakeStore{}
	router, reg := newTestRouter(store)
	sender := testClient("s", 2)
	otherTab := testClient("s2", 2)
	reg.Admit(sender)
	reg.Admit(otherTab)

	resp := decodeFrame(t, router.Route(context.Background(), sender, ClientEvent{
		Type: EventSendMessage, ReceiverID: 2, Content: "note to self",
	}))

	if resp.Type != EventAck {
		t.Fatalf("response = %+v, want ack", resp)
	}
	// Sender and receiver channels coincide; the other tab must still see
	// the message exactly once.
	frames := pendingFrames(t, otherTab)
	if len(frames) != 1 || frames[0].Type != EventMessage {
		t.Fatalf("other tab frames = %+v, want exactly one message event", frames)
	}
	if frames := pendingFrames(t, sender); len(frames) != 0 {
		t.Errorf("originating connection got %d frames beyond the ack", len(frames))
	}
}
