package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore enforces at most one live session per user. Sessions
// live as rows keyed by user_id in Postgres, never as in-process
// state, so the invariant holds across service instances.
type SessionStore struct {
	sessions repository.SessionRepository
	codec    *TokenCodec
	logger   *zap.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(sessions repository.SessionRepository, codec *TokenCodec, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions: sessions,
		codec:    codec,
		logger:   logger,
	}
}

// TTL returns the session token lifetime
func (s *SessionStore) TTL() time.Duration {
	return s.codec.TTL()
}

// Create replaces any existing session for the user with a fresh one
// and returns a token bound to the new jti. Tokens issued against the
// previous session fail validation with ErrSessionSuperseded.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	jti := uuid.New().String()

	session := &domain.Session{
		UserID:    userID,
		JTI:       jti,
		ExpiresAt: time.Now().Add(s.codec.TTL()),
	}

	if err := s.sessions.Replace(ctx, session); err != nil {
		return "", fmt.Errorf("failed to replace session: %w", err)
	}

	token, err := s.codec.Issue(userID, jti)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}

	return token, nil
}

// Validate checks the token cryptographically, then confirms its jti
// is still the user's current session row.
func (s *SessionStore) Validate(ctx context.Context, token string) (*domain.SessionClaims, error) {
	claims, err := s.codec.Validate(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByJTI(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionSuperseded
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.UserID != claims.UserID {
		s.logger.Warn("session jti bound to different user",
			zap.String("jti", claims.JTI),
			zap.String("token_user", claims.UserID),
		)
		return nil, domain.ErrSessionSuperseded
	}

	return claims, nil
}

// Revoke deletes the user's session (logout); any outstanding token
// for that user fails validation afterwards.
func (s *SessionStore) Revoke(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
