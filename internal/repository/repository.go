package repository

import (
	"github.com/chatterhq/identity-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User      UserRepository
	Account   AccountRepository
	Session   SessionRepository
	Guest     GuestRepository
	Migration MigrationRepository
	Chat      ChatRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		Account:   NewAccountRepository(db),
		Session:   NewSessionRepository(db),
		Guest:     NewGuestRepository(db),
		Migration: NewMigrationRepository(db),
		Chat:      NewChatRepository(db),
	}
}
