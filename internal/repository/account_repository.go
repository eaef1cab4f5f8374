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
	"github.com/lib/pq"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new provider account linkage
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token, refresh_token, token_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation on (provider, provider_account_id)
				return fmt.Errorf("account for %s already linked: %w", account.Provider, ErrDuplicateAccount)
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByProvider retrieves an account by its provider identity pair
func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, token_expires_at, created_at, updated_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
	`

	account := &domain.Account{}
	var accessToken, refreshToken sql.NullString
	var tokenExpiresAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, provider, providerAccountID).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&accessToken,
		&refreshToken,
		&tokenExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account for %s not found: %w", provider, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.AccessToken = accessToken.String
	account.RefreshToken = refreshToken.String
	if tokenExpiresAt.Valid {
		account.TokenExpiresAt = &tokenExpiresAt.Time
	}

	return account, nil
}

// UpdateTokens stores refreshed provider tokens on an existing linkage
func (r *accountRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	query := `
		UPDATE accounts
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}

	return nil
}
