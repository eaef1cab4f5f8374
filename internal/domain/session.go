package domain

import "time"

// Session is the single active authenticated session for a user.
// The user_id column is unique: creating a session replaces the
// previous row, which invalidates any token bound to the old jti.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	JTI       string    `json:"-" db:"jti"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SessionClaims is the validated content of a session token
type SessionClaims struct {
	UserID    string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AnonymousSession tracks a pre-authentication guest. It is not owned
// by any user; migration consumes it exactly once and deletes it.
type AnonymousSession struct {
	ID           string    `json:"id" db:"id"`
	MessageCount int       `json:"message_count" db:"message_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
}

// AnonymousMessage is a message sent within a guest session
type AnonymousMessage struct {
	ID                 string    `json:"id" db:"id"`
	AnonymousSessionID string    `json:"anonymous_session_id" db:"anonymous_session_id"`
	Role               string    `json:"role" db:"role"` // user or assistant
	Content            string    `json:"content" db:"content"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
