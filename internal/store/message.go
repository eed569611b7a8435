package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertMessage stores m, assigning ID and CreatedAt.
func (db *DB) InsertMessage(m *Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Conversation returns every message exchanged between a and b, oldest first.
func (db *DB) Conversation(a, b string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY rowid`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
