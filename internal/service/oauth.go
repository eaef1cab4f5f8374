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
	"golang.org/x/oauth2"
)

// Profile is the provider identity fetched after a code exchange
type Profile struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
}

// Provider is one OAuth provider strategy. Implementations are
// registered by name instead of branching on provider strings.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// StateStore persists one-shot OAuth state nonces
type StateStore interface {
	Put(ctx context.Context, state, provider string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (string, error)
}

// OAuthBroker runs the authorization-code flow and maps provider
// identities onto local users and accounts.
type OAuthBroker struct {
	providers       map[string]Provider
	states          StateStore
	users           repository.UserRepository
	accounts        repository.AccountRepository
	stateTTL        time.Duration
	requireVerified bool
	logger          *zap.Logger
}

// NewOAuthBroker creates a new OAuth broker
func NewOAuthBroker(
	states StateStore,
	users repository.UserRepository,
	accounts repository.AccountRepository,
	stateTTL time.Duration,
	requireVerified bool,
	logger *zap.Logger,
) *OAuthBroker {
	return &OAuthBroker{
		providers:       make(map[string]Provider),
		states:          states,
		users:           users,
		accounts:        accounts,
		stateTTL:        stateTTL,
		requireVerified: requireVerified,
		logger:          logger,
	}
}

// RegisterProvider adds a provider to the registry
func (b *OAuthBroker) RegisterProvider(p Provider) {
	b.providers[p.Name()] = p
}

// Begin issues a random state nonce, persists it with a short TTL, and
// returns the provider authorization URL carrying it. The echoed state
// on the callback proves the flow originated here.
func (b *OAuthBroker) Begin(ctx context.Context, providerName string) (string, error) {
	p, ok := b.providers[providerName]
	if !ok {
		return "", domain.ErrUnknownProvider
	}

	state := uuid.New().String()
	if err := b.states.Put(ctx, state, providerName, b.stateTTL); err != nil {
		return "", fmt.Errorf("failed to persist oauth state: %w", err)
	}

	return p.AuthCodeURL(state), nil
}

// Complete verifies the callback state, exchanges the code, fetches
// the profile, and resolves it to a local user, creating the
// user+account pair on first login with this provider.
func (b *OAuthBroker) Complete(ctx context.Context, providerName, code, state string) (*domain.User, error) {
	p, ok := b.providers[providerName]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}

	issuedFor, err := b.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrStateUnknown) {
			b.logger.Warn("oauth callback with unknown state",
				zap.String("provider", providerName),
			)
			return nil, domain.ErrInvalidState
		}
		// A store failure says nothing about the state's validity.
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if issuedFor != providerName {
		b.logger.Warn("oauth callback with mismatched state",
			zap.String("provider", providerName),
			zap.String("issued_for", issuedFor),
		)
		return nil, domain.ErrInvalidState
	}

	token, err := b.exchange(ctx, p, code)
	if err != nil {
		return nil, err
	}

	profile, err := p.FetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching profile: %v", domain.ErrProvider, err)
	}

	if b.requireVerified && !profile.EmailVerified {
		return nil, domain.ErrEmailUnverified
	}

	user, err := b.resolveUser(ctx, p.Name(), profile, token)
	if err != nil {
		return nil, err
	}

	if err := b.users.UpdateLastLogin(ctx, user.ID); err != nil {
		b.logger.Warn("failed to update last login", zap.Error(err))
	}

	return user, nil
}

// exchange swaps the authorization code for provider tokens. A
// provider HTTP response (4xx included) is final: an invalid or
// expired code will not become valid on retry. Transport failures get
// exactly one retry.
func (b *OAuthBroker) exchange(ctx context.Context, p Provider, code string) (*oauth2.Token, error) {
	token, err := p.Exchange(ctx, code)
	if err == nil {
		return token, nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return nil, fmt.Errorf("%w: code exchange rejected: %v", domain.ErrProvider, err)
	}

	token, err = p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", domain.ErrProvider, err)
	}

	return token, nil
}

func (b *OAuthBroker) resolveUser(ctx context.Context, providerName string, profile *Profile, token *oauth2.Token) (*domain.User, error) {
	account, err := b.accounts.GetByProvider(ctx, providerName, profile.ID)
	if err == nil {
		if err := b.accounts.UpdateTokens(ctx, account.ID, token.AccessToken, token.RefreshToken, tokenExpiry(token)); err != nil {
			b.logger.Warn("failed to update provider tokens", zap.Error(err))
		}
		return b.users.GetByID(ctx, account.UserID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	user, err := b.findOrCreateUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	newAccount := &domain.Account{
		UserID:            user.ID,
		Provider:          providerName,
		ProviderAccountID: profile.ID,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		TokenExpiresAt:    tokenExpiry(token),
	}
	if err := b.accounts.Create(ctx, newAccount); err != nil {
		// A concurrent callback may have linked the account first.
		if errors.Is(err, repository.ErrDuplicateAccount) {
			existing, lookupErr := b.accounts.GetByProvider(ctx, providerName, profile.ID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to resolve linked account: %w", lookupErr)
			}
			return b.users.GetByID(ctx, existing.UserID)
		}
		return nil, fmt.Errorf("failed to link account: %w", err)
	}

	return user, nil
}

// findOrCreateUser creates a user for the profile, or links to the
// existing user when the email is already registered.
func (b *OAuthBroker) findOrCreateUser(ctx context.Context, profile *Profile) (*domain.User, error) {
	user := &domain.User{
		Email:           sanitizeEmail(profile.Email),
		DisplayName:     profile.Name,
		IsEmailVerified: profile.EmailVerified,
	}

	err := b.users.Create(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	existing, err := b.users.GetByEmail(ctx, sanitizeEmail(profile.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing user: %w", err)
	}

	return existing, nil
}

func tokenExpiry(token *oauth2.Token) *time.Time {
	if token.Expiry.IsZero() {
		return nil
	}
	expiry := token.Expiry
	return &expiry
}
