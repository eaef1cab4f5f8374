package service

import (
	"context"
	"fmt"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MigrationService transfers a guest session's recent conversation
// into a newly authenticated user's chat storage. The transfer is
// all-or-nothing and consumable exactly once: a second call for the
// same guest id finds nothing and returns (nil, nil).
type MigrationService struct {
	repo         repository.MigrationRepository
	keepMessages int
	logger       *zap.Logger
}

// NewMigrationService creates a new migration service
func NewMigrationService(repo repository.MigrationRepository, keepMessages int, logger *zap.Logger) *MigrationService {
	return &MigrationService{
		repo:         repo,
		keepMessages: keepMessages,
		logger:       logger,
	}
}

// Migrate moves the guest session's most recent messages into a new
// chat session owned by the user. A nil, nil return means there was
// nothing to migrate, which callers treat as success: retries and
// double-invocation from UI races are expected.
func (m *MigrationService) Migrate(ctx context.Context, guestID, userID string) (*domain.ChatSession, error) {
	// A missing or malformed guest id means there is nothing to migrate.
	if uuid.Validate(guestID) != nil {
		return nil, nil
	}

	chatSession, err := m.repo.MigrateGuest(ctx, guestID, userID, m.keepMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate guest session: %w", err)
	}

	if chatSession == nil {
		return nil, nil
	}

	m.logger.Info("migrated guest session",
		zap.String("guest_id", guestID),
		zap.String("user_id", userID),
		zap.String("chat_session_id", chatSession.ID),
	)

	return chatSession, nil
}
