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

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

// Replace deletes any existing session for the user and inserts the new
// one in a single transaction. The unique index on user_id makes two
// concurrent replacements serialize; the later commit wins and the
// earlier jti becomes stale.
func (r *sessionRepository) Replace(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, session.UserID); err != nil {
		return fmt.Errorf("failed to delete previous session: %w", err)
	}

	insert := `
		INSERT INTO sessions (id, user_id, jti, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insert,
		session.ID,
		session.UserID,
		session.JTI,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session replacement: %w", err)
	}

	return nil
}

// GetByJTI retrieves a session by its token id
func (r *sessionRepository) GetByJTI(ctx context.Context, jti string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, jti, expires_at, created_at, updated_at
		FROM sessions
		WHERE jti = $1
	`

	session := &domain.Session{}
	err := r.db.DB.QueryRowContext(ctx, query, jti).Scan(
		&session.ID,
		&session.UserID,
		&session.JTI,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by jti: %w", err)
	}

	return session, nil
}

// DeleteByUserID deletes the user's session (logout). Deleting a
// session that does not exist is not an error.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired sessions
func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	if _, err := r.db.DB.ExecContext(ctx, query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}
