package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foodline/internal/auth"
	myMiddleware "foodline/internal/middleware"
)

type stubStore struct {
	messages []*Message
	lastUser int
	lastPeer int
}

func (s *stubStore) CreateMessage(ctx context.Context, senderID, receiverID int, content string) (*Message, error) {
	return nil, nil
}

func (s *stubStore) GetMessages(ctx context.Context, userID, peerID, limit, offset int) ([]*Message, error) {
	s.lastUser = userID
	s.lastPeer = peerID
	return s.messages, nil
}

func historyRequest(target string, ident auth.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := context.WithValue(req.Context(), myMiddleware.IdentityKey, ident)
	return req.WithContext(ctx)
}

func TestGetChatHistory(t *testing.T) {
	store := &stubStore{messages: []*Message{{
		ID: 3, SenderID: 2, ReceiverID: 1, SenderName: "bob",
		Content: "order is ready", CreatedAt: time.Now(),
	}}}
	handler := NewHandler(store)

	req := historyRequest("/api/messages?peer_id=2", auth.Identity{ID: 1, Name: "alice"})
	resp := httptest.NewRecorder()
	handler.GetChatHistory(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	if store.lastUser != 1 || store.lastPeer != 2 {
		t.Errorf("queried user=%d peer=%d, identity not taken from context", store.lastUser, store.lastPeer)
	}

	var msgs []*Message
	if err := json.Unmarshal(resp.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "order is ready" || msgs[0].SenderName != "bob" {
		t.Errorf("history = %+v, want the canonical message shape", msgs)
	}
}

func TestGetChatHistoryEmpty(t *testing.T) {
	handler := NewHandler(&stubStore{})

	req := historyRequest("/api/messages?peer_id=2", auth.Identity{ID: 1})
	resp := httptest.NewRecorder()
	handler.GetChatHistory(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	// Empty history is a JSON array, never null.
	if got := resp.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestGetChatHistoryValidation(t *testing.T) {
	handler := NewHandler(&stubStore{})

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing peer_id", target: "/api/messages"},
		{name: "non-numeric peer_id", target: "/api/messages?peer_id=abc"},
		{name: "negative peer_id", target: "/api/messages?peer_id=-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := historyRequest(tt.target, auth.Identity{ID: 1})
			resp := httptest.NewRecorder()
			handler.GetChatHistory(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.Code)
			}
		})
	}
}

func TestGetChatHistoryUnauthenticated(t *testing.T) {
	handler := NewHandler(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?peer_id=2", nil)
	resp := httptest.NewRecorder()
	handler.GetChatHistory(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.Code)
	}
}
