package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Lockout tracks repeated login failures per email
type Lockout interface {
	// Failed records a failure and reports whether the account is now locked
	Failed(ctx context.Context, email string) (bool, error)
	IsLocked(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
}

// CredentialAuthenticator validates email+password sign-in and sign-up
type CredentialAuthenticator struct {
	users      repository.UserRepository
	lockout    Lockout
	bcryptCost int
	logger     *zap.Logger
}

// NewCredentialAuthenticator creates a new credential authenticator
func NewCredentialAuthenticator(users repository.UserRepository, lockout Lockout, bcryptCost int, logger *zap.Logger) *CredentialAuthenticator {
	return &CredentialAuthenticator{
		users:      users,
		lockout:    lockout,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a new user with a salted password hash
func (a *CredentialAuthenticator) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = sanitizeEmail(email)

	if !emailRegex.MatchString(email) {
		return nil, fmt.Errorf("invalid email format")
	}
	if !validPassword(password) {
		return nil, fmt.Errorf("password must be at least 8 characters long and contain uppercase, lowercase, and number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: string(hash),
	}

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login verifies the password against the stored hash. Unknown email
// and wrong password produce the same error.
func (a *CredentialAuthenticator) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = sanitizeEmail(email)

	locked, err := a.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check lockout: %w", err)
	}
	if locked {
		return nil, domain.ErrAccountLocked
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, a.recordFailure(ctx, email)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, a.recordFailure(ctx, email)
	}

	if err := a.lockout.Reset(ctx, email); err != nil {
		a.logger.Warn("failed to reset lockout counter", zap.Error(err))
	}

	if err := a.users.UpdateLastLogin(ctx, user.ID); err != nil {
		a.logger.Warn("failed to update last login", zap.Error(err))
	}

	return user, nil
}

func (a *CredentialAuthenticator) recordFailure(ctx context.Context, email string) error {
	locked, err := a.lockout.Failed(ctx, email)
	if err != nil {
		a.logger.Warn("failed to record login failure", zap.Error(err))
		return domain.ErrInvalidCredentials
	}
	if locked {
		return domain.ErrAccountLocked
	}
	return domain.ErrInvalidCredentials
}

func sanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validPassword requires at least 8 characters with one uppercase
// letter, one lowercase letter, and one number.
func validPassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}
