package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/pkg/database"
)

// chatRepository implements ChatRepository interface
type chatRepository struct {
	db *database.Postgres
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *database.Postgres) ChatRepository {
	return &chatRepository{db: db}
}

// GetSession retrieves a chat session by id
func (r *chatRepository) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`

	session := &domain.ChatSession{}
	err := r.db.DB.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat session %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}

	return session, nil
}

// ListMessages returns a chat session's messages in creation order
func (r *chatRepository) ListMessages(ctx context.Context, chatSessionID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, chat_session_id, role, content, created_at
		FROM chat_messages
		WHERE chat_session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, chatSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		msg := &domain.ChatMessage{}
		err := rows.Scan(
			&msg.ID,
			&msg.ChatSessionID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}

	return messages, nil
}
