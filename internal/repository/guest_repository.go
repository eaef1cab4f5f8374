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

// guestRepository implements GuestRepository interface
type guestRepository struct {
	db *database.Postgres
}

// NewGuestRepository creates a new guest repository
func NewGuestRepository(db *database.Postgres) GuestRepository {
	return &guestRepository{db: db}
}

// Create creates a new anonymous session
func (r *guestRepository) Create(ctx context.Context, guest *domain.AnonymousSession) error {
	query := `
		INSERT INTO anonymous_sessions (id, message_count, created_at, last_activity)
		VALUES ($1, $2, $3, $4)
	`

	if guest.ID == "" {
		guest.ID = uuid.New().String()
	}

	now := time.Now()
	if guest.CreatedAt.IsZero() {
		guest.CreatedAt = now
	}
	if guest.LastActivity.IsZero() {
		guest.LastActivity = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		guest.ID,
		guest.MessageCount,
		guest.CreatedAt,
		guest.LastActivity,
	)

	if err != nil {
		return fmt.Errorf("failed to create anonymous session: %w", err)
	}

	return nil
}

// GetByID retrieves an anonymous session by id
func (r *guestRepository) GetByID(ctx context.Context, id string) (*domain.AnonymousSession, error) {
	query := `
		SELECT id, message_count, created_at, last_activity
		FROM anonymous_sessions
		WHERE id = $1
	`

	guest := &domain.AnonymousSession{}
	err := r.db.DB.QueryRowContext(ctx, query, id).Scan(
		&guest.ID,
		&guest.MessageCount,
		&guest.CreatedAt,
		&guest.LastActivity,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("anonymous session %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get anonymous session: %w", err)
	}

	return guest, nil
}

// RecordMessage performs the increment-with-ceiling as a conditional
// UPDATE so concurrent submissions cannot push the count past the
// quota. The message row is stored in the same transaction as the
// increment, keeping count and stored messages consistent.
func (r *guestRepository) RecordMessage(ctx context.Context, guestID string, quota int, msg *domain.AnonymousMessage) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update := `
		UPDATE anonymous_sessions
		SET message_count = message_count + 1, last_activity = $3
		WHERE id = $1 AND message_count < $2
		RETURNING message_count
	`

	now := time.Now()
	var count int
	err = tx.QueryRowContext(ctx, update, guestID, quota, now).Scan(&count)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, fmt.Errorf("failed to increment message count: %w", err)
		}

		// Either the session does not exist or the ceiling was reached.
		// A refused attempt still counts as activity, so the refresh
		// keeps a retrying guest clear of the idle sweep.
		var existing int
		err = tx.QueryRowContext(ctx,
			`UPDATE anonymous_sessions SET last_activity = $2 WHERE id = $1 RETURNING message_count`,
			guestID, now,
		).Scan(&existing)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, false, fmt.Errorf("anonymous session %s not found: %w", guestID, ErrNotFound)
			}
			return 0, false, fmt.Errorf("failed to check anonymous session: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("failed to commit activity refresh: %w", err)
		}
		return existing, false, nil
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.AnonymousSessionID = guestID

	insert := `
		INSERT INTO anonymous_messages (id, anonymous_session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, insert, msg.ID, msg.AnonymousSessionID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return 0, false, fmt.Errorf("failed to store anonymous message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit message record: %w", err)
	}

	return count, true, nil
}

// DeleteIdleSince deletes anonymous sessions idle since before cutoff.
// Associated messages go with them via cascade.
func (r *guestRepository) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM anonymous_sessions WHERE last_activity < $1`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle anonymous sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
