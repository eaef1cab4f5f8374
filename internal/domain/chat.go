package domain

import "time"

// ChatSession belongs to exactly one user. The identity core only
// writes these during guest migration; the chat subsystem owns them.
type ChatSession struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ChatMessage belongs to exactly one chat session, ordered by creation time
type ChatMessage struct {
	ID            string    `json:"id" db:"id"`
	ChatSessionID string    `json:"chat_session_id" db:"chat_session_id"`
	Role          string    `json:"role" db:"role"`
	Content       string    `json:"content" db:"content"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
