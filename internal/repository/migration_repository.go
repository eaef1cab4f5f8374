package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/pkg/database"
	"github.com/google/uuid"
)

// migrationRepository implements MigrationRepository interface
type migrationRepository struct {
	db *database.Postgres
}

// NewMigrationRepository creates a new migration repository
func NewMigrationRepository(db *database.Postgres) MigrationRepository {
	return &migrationRepository{db: db}
}

// MigrateGuest runs the whole guest-to-user transfer in one
// transaction. A missing guest session means it was already migrated
// or never existed, so the result is (nil, nil) rather than an error:
// retries and double-invocation from UI races must be no-ops. Any
// failure rolls back and leaves the guest session untouched.
func (r *migrationRepository) MigrateGuest(ctx context.Context, guestID, userID string, limit int) (*domain.ChatSession, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the guest row so a concurrent migration of the same guest
	// blocks here and then sees the deletion.
	var guestCount int
	err = tx.QueryRowContext(ctx,
		`SELECT message_count FROM anonymous_sessions WHERE id = $1 FOR UPDATE`,
		guestID,
	).Scan(&guestCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock anonymous session: %w", err)
	}

	now := time.Now()
	chatSession := &domain.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     "Migrated conversation",
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		chatSession.ID, chatSession.UserID, chatSession.Title, chatSession.CreatedAt, chatSession.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	// Copy the most recent limit messages, preserving original order.
	copyMessages := `
		INSERT INTO chat_messages (id, chat_session_id, role, content, created_at)
		SELECT gen_random_uuid(), $1, role, content, created_at
		FROM (
			SELECT role, content, created_at
			FROM anonymous_messages
			WHERE anonymous_session_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`
	if _, err := tx.ExecContext(ctx, copyMessages, chatSession.ID, guestID, limit); err != nil {
		return nil, fmt.Errorf("failed to copy guest messages: %w", err)
	}

	// Consume the guest session; cascade removes its messages.
	if _, err := tx.ExecContext(ctx, `DELETE FROM anonymous_sessions WHERE id = $1`, guestID); err != nil {
		return nil, fmt.Errorf("failed to delete anonymous session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit migration: %w", err)
	}

	return chatSession, nil
}
