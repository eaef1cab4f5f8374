package repository

import (
	"context"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
)

// UserRepository defines methods for user records
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

// AccountRepository defines methods for OAuth provider linkages
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

// SessionRepository defines methods for the single active session per user
type SessionRepository interface {
	// Replace deletes any existing session row for the user and inserts
	// the new one in a single transaction, so concurrent logins
	// serialize and the later commit wins.
	Replace(ctx context.Context, session *domain.Session) error
	GetByJTI(ctx context.Context, jti string) (*domain.Session, error)
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) error
}

// GuestRepository defines methods for anonymous guest sessions
type GuestRepository interface {
	Create(ctx context.Context, guest *domain.AnonymousSession) error
	GetByID(ctx context.Context, id string) (*domain.AnonymousSession, error)
	// RecordMessage increments the message count only while it is below
	// quota, storing the message in the same transaction. The returned
	// count is the value after the attempt; allowed is false when the
	// ceiling was already reached (count unchanged, no message stored).
	RecordMessage(ctx context.Context, guestID string, quota int, msg *domain.AnonymousMessage) (count int, allowed bool, err error)
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// MigrationRepository moves guest conversation state into a user's chat
type MigrationRepository interface {
	// MigrateGuest atomically creates a chat session for the user,
	// copies the most recent limit messages in original order, and
	// deletes the guest session. Returns (nil, nil) when the guest
	// session does not exist.
	MigrateGuest(ctx context.Context, guestID, userID string, limit int) (*domain.ChatSession, error)
}

// ChatRepository exposes read access to migrated chat state
type ChatRepository interface {
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)
	ListMessages(ctx context.Context, chatSessionID string) ([]*domain.ChatMessage, error)
}
