package domain

// Identity is the per-request caller identity resolved by the identity
// middleware. Downstream services consume it instead of parsing
// credentials themselves.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	GuestID       string `json:"guest_id,omitempty"`
}

// Anonymous returns an unauthenticated identity, optionally carrying a
// guest session id.
func Anonymous(guestID string) Identity {
	return Identity{GuestID: guestID}
}

// Authenticated returns an identity for a signed-in user
func Authenticated(userID string) Identity {
	return Identity{Authenticated: true, UserID: userID}
}
