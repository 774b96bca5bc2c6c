package store

import (
	"context"
	"fmt"
	"time"
)

// SaveMessage persists one inbound message. Duplicate message IDs are
// ignored so transport redeliveries stay idempotent.
func (s *Store) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		return fmt.Errorf("save message: missing id")
	}

	var groupJID *string
	if msg.Group != nil {
		groupJID = &msg.Group.JID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_jid, sender_jid, push_name, text, timestamp, group_jid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.ChatJID, msg.SenderJID, msg.PushName, msg.Text, msg.Timestamp, groupJID)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit messages for a chat, newest first.
// Callers that render prompts must reverse into chronological order.
func (s *Store) RecentHistory(ctx context.Context, chatJID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_jid, sender_jid, push_name, text, timestamp
		FROM messages
		WHERE chat_jid = $1
		ORDER BY timestamp DESC, id
		LIMIT $2
	`, chatJID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.SenderJID, &m.PushName, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent history rows: %w", err)
	}
	return history, nil
}

// MessagesSince returns all messages for a chat after the cutoff, oldest
// first. Used by the daily summary sweep.
func (s *Store) MessagesSince(ctx context.Context, chatJID string, since time.Time) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_jid, sender_jid, push_name, text, timestamp
		FROM messages
		WHERE chat_jid = $1 AND timestamp >= $2
		ORDER BY timestamp, id
	`, chatJID, since)
	if err != nil {
		return nil, fmt.Errorf("messages since: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.SenderJID, &m.PushName, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages since rows: %w", err)
	}
	return msgs, nil
}
