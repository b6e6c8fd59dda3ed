package chat

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateMessage inserts the message and returns it in canonical form.
// Single statement so the returned row is exactly what a later history
// read would produce.
func (r *Repository) CreateMessage(ctx context.Context, senderID, receiverID int, content string) (*Message, error) {
	query := `
		WITH inserted AS (
			INSERT INTO messages (sender_id, receiver_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, sender_id, receiver_id, content, created_at
		)
		SELECT i.id, i.sender_id, i.receiver_id, u.username, i.content, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.sender_id
	`

	msg := &Message{}
	err := r.db.QueryRowContext(ctx, query, senderID, receiverID, content).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.SenderName, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessages returns the conversation between userID and peerID, newest
// first. Serves the history read path; same shape as the live push.
func (r *Repository) GetMessages(ctx context.Context, userID, peerID, limit, offset int) ([]*Message, error) {
	query := `
		SELECT m.id, m.sender_id, m.receiver_id, u.username, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, peerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.SenderName, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
