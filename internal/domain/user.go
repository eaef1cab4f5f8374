package domain

import "time"

// User represents a registered user
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	DisplayName     string     `json:"display_name" db:"display_name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}

// Account links a user to an OAuth provider identity. The pair
// (provider, provider_account_id) is unique across the table.
type Account struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Provider          string     `json:"provider" db:"provider"` // google, github
	ProviderAccountID string     `json:"provider_account_id" db:"provider_account_id"`
	AccessToken       string     `json:"-" db:"access_token"`
	RefreshToken      string     `json:"-" db:"refresh_token"`
	TokenExpiresAt    *time.Time `json:"-" db:"token_expires_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}
