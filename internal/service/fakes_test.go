package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User // by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate: %w", repository.ErrDuplicateEmail)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no user: %w", repository.ErrNotFound)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("no user: %w", repository.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("no user: %w", repository.ErrNotFound)
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

type fakeSessionRepo struct {
	mu     sync.Mutex
	byUser map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byUser: make(map[string]*domain.Session)}
}

func (f *fakeSessionRepo) Replace(ctx context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	copied := *session
	f.byUser[session.UserID] = &copied
	return nil
}

func (f *fakeSessionRepo) GetByJTI(ctx context.Context, jti string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.byUser {
		if s.JTI == jti {
			copied := *s
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no session: %w", repository.ErrNotFound)
}

func (f *fakeSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.byUser, userID)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for userID, s := range f.byUser {
		if s.ExpiresAt.Before(time.Now()) {
			delete(f.byUser, userID)
		}
	}
	return nil
}

type fakeGuestRepo struct {
	mu       sync.Mutex
	guests   map[string]*domain.AnonymousSession
	messages map[string][]*domain.AnonymousMessage
}

func newFakeGuestRepo() *fakeGuestRepo {
	return &fakeGuestRepo{
		guests:   make(map[string]*domain.AnonymousSession),
		messages: make(map[string][]*domain.AnonymousMessage),
	}
}

func (f *fakeGuestRepo) Create(ctx context.Context, guest *domain.AnonymousSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if guest.ID == "" {
		guest.ID = uuid.New().String()
	}
	now := time.Now()
	guest.CreatedAt = now
	guest.LastActivity = now
	copied := *guest
	f.guests[guest.ID] = &copied
	return nil
}

func (f *fakeGuestRepo) GetByID(ctx context.Context, id string) (*domain.AnonymousSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.guests[id]
	if !ok {
		return nil, fmt.Errorf("no guest: %w", repository.ErrNotFound)
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGuestRepo) RecordMessage(ctx context.Context, guestID string, quota int, msg *domain.AnonymousMessage) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.guests[guestID]
	if !ok {
		return 0, false, fmt.Errorf("no guest: %w", repository.ErrNotFound)
	}

	if g.MessageCount >= quota {
		g.LastActivity = time.Now()
		return g.MessageCount, false, nil
	}

	g.MessageCount++
	g.LastActivity = time.Now()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.AnonymousSessionID = guestID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	f.messages[guestID] = append(f.messages[guestID], &copied)

	return g.MessageCount, true, nil
}

func (f *fakeGuestRepo) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for id, g := range f.guests {
		if g.LastActivity.Before(cutoff) {
			delete(f.guests, id)
			delete(f.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeMigrationRepo struct {
	guests *fakeGuestRepo
	chats  map[string][]*domain.ChatMessage
}

func newFakeMigrationRepo(guests *fakeGuestRepo) *fakeMigrationRepo {
	return &fakeMigrationRepo{
		guests: guests,
		chats:  make(map[string][]*domain.ChatMessage),
	}
}

func (f *fakeMigrationRepo) MigrateGuest(ctx context.Context, guestID, userID string, limit int) (*domain.ChatSession, error) {
	f.guests.mu.Lock()
	defer f.guests.mu.Unlock()

	if _, ok := f.guests.guests[guestID]; !ok {
		return nil, nil
	}

	source := f.guests.messages[guestID]
	if len(source) > limit {
		source = source[len(source)-limit:]
	}

	now := time.Now()
	chatSession := &domain.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     "Migrated conversation",
		CreatedAt: now,
		UpdatedAt: now,
	}

	var copied []*domain.ChatMessage
	for _, m := range source {
		copied = append(copied, &domain.ChatMessage{
			ID:            uuid.New().String(),
			ChatSessionID: chatSession.ID,
			Role:          m.Role,
			Content:       m.Content,
			CreatedAt:     m.CreatedAt,
		})
	}
	f.chats[chatSession.ID] = copied

	delete(f.guests.guests, guestID)
	delete(f.guests.messages, guestID)

	return chatSession, nil
}

type fakeLockout struct {
	mu       sync.Mutex
	failures map[string]int
	max      int
}

func newFakeLockout(max int) *fakeLockout {
	return &fakeLockout{failures: make(map[string]int), max: max}
}

func (f *fakeLockout) Failed(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[email]++
	return f.failures[email] >= f.max, nil
}

func (f *fakeLockout) IsLocked(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failures[email] >= f.max, nil
}

func (f *fakeLockout) Reset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failures, email)
	return nil
}

type fakeStateStore struct {
	mu         sync.Mutex
	states     map[string]string
	consumeErr error // when set, Consume fails with it
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]string)}
}

func (f *fakeStateStore) Put(ctx context.Context, state, provider string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.states[state] = provider
	return nil
}

func (f *fakeStateStore) Consume(ctx context.Context, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.consumeErr != nil {
		return "", f.consumeErr
	}
	provider, ok := f.states[state]
	if !ok {
		return "", ErrStateUnknown
	}
	delete(f.states, state)
	return provider, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account // by provider+provider_account_id
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*domain.Account)}
}

func accountKey(provider, providerAccountID string) string {
	return provider + ":" + providerAccountID
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := accountKey(account.Provider, account.ProviderAccountID)
	if _, ok := f.accounts[key]; ok {
		return fmt.Errorf("duplicate: %w", repository.ErrDuplicateAccount)
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	copied := *account
	f.accounts[key] = &copied
	return nil
}

func (f *fakeAccountRepo) GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.accounts[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, fmt.Errorf("no account: %w", repository.ErrNotFound)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.accounts {
		if a.ID == id {
			a.AccessToken = accessToken
			a.RefreshToken = refreshToken
			a.TokenExpiresAt = expiresAt
			return nil
		}
	}
	return fmt.Errorf("no account: %w", repository.ErrNotFound)
}

// fakeProvider scripts exchange outcomes for the broker tests
type fakeProvider struct {
	name          string
	profile       *Profile
	exchangeErrs  []error // consumed per call; nil means success
	exchangeCalls int
}

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	call := p.exchangeCalls
	p.exchangeCalls++
	if call < len(p.exchangeErrs) && p.exchangeErrs[call] != nil {
		return nil, p.exchangeErrs[call]
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (p *fakeProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	return p.profile, nil
}
