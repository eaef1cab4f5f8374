package dto

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"max=100"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GuestMessageRequest represents a message sent by a guest session
type GuestMessageRequest struct {
	Role    string `json:"role" binding:"omitempty,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=8192"`
}

// MigrateRequest represents an explicit guest migration request.
// GuestID is optional; the guest cookie is used when absent.
type MigrateRequest struct {
	GuestID string `json:"guest_id" binding:"omitempty,uuid"`
}

// AuthResponse represents a successful authentication response
type AuthResponse struct {
	User UserInfo `json:"user"`
}

// UserInfo represents user information in a response
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserResponse represents the current user profile
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	IsEmailVerified bool    `json:"is_email_verified"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastLoginAt     *string `json:"last_login_at"`
}

// GuestMessageResponse reports the quota verdict for a guest message
type GuestMessageResponse struct {
	GuestID   string `json:"guest_id"`
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
}

// MigrateResponse reports the outcome of a guest migration
type MigrateResponse struct {
	Migrated         bool   `json:"migrated"`
	ChatSessionID    string `json:"chat_session_id,omitempty"`
	MigratedMessages int    `json:"migrated_messages,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
