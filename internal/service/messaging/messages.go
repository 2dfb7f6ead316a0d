package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aimessage/internal/models"
)

// SaveInbound stores a message arriving from a user and returns the record.
func (s *Service) SaveInbound(ctx context.Context, msg models.Message) (*models.Message, error) {
	if msg.SenderID == 0 {
		return nil, errors.New("sender_id is required")
	}
	if msg.ConversationID == "" {
		msg.ConversationID = ConversationID(msg.SenderID, msg.RecipientID)
	}
	return s.insert(ctx, msg)
}

// SaveReply stores a pipeline-produced reply addressed to the user.
func (s *Service) SaveReply(ctx context.Context, botID, userID int64, conversationID string, channel models.Channel, content string) (*models.Message, error) {
	if conversationID == "" {
		conversationID = ConversationID(botID, userID)
	}
	return s.insert(ctx, models.Message{
		SenderID:       botID,
		RecipientID:    userID,
		Content:        content,
		ConversationID: conversationID,
		Channel:        channel,
	})
}

func (s *Service) insert(ctx context.Context, msg models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	channel := msg.Channel
	if channel == "" {
		channel = models.ChannelWeb
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, content, conversation_id, channel, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.SenderID, msg.RecipientID, msg.Content, msg.ConversationID, channel, msg.IsRead, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	msg.ID = id
	msg.Channel = channel
	msg.CreatedAt = now
	return &msg, nil
}

// ListConversation returns the messages of one conversation, oldest first,
// restricted to conversations the user takes part in.
func (s *Service) ListConversation(ctx context.Context, userID int64, conversationID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, content, conversation_id, channel, is_read, created_at
		 FROM messages
		 WHERE conversation_id = ? AND (sender_id = ? OR recipient_id = ?)
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		conversationID, userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.ConversationID, &m.Channel, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UnreadCount returns the number of unread messages addressed to the user.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM messages WHERE recipient_id = ? AND is_read = ?`,
		userID, false,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkConversationRead marks all messages the user received in a conversation
// as read.
func (s *Service) MarkConversationRead(ctx context.Context, userID int64, conversationID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = ? WHERE conversation_id = ? AND recipient_id = ? AND is_read = ?`,
		true, conversationID, userID, false,
	); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

// GetMessage fetches one message the user can see.
func (s *Service) GetMessage(ctx context.Context, userID, messageID int64) (*models.Message, error) {
	m := new(models.Message)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, recipient_id, content, conversation_id, channel, is_read, created_at
		 FROM messages WHERE id = ? AND (sender_id = ? OR recipient_id = ?)`,
		messageID, userID, userID,
	).Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.ConversationID, &m.Channel, &m.IsRead, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}
