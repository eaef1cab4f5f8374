package domain

import "errors"

// Token errors. Validation is stateless: revocation is the session
// store's job via jti lookup.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token malformed")
)

// Session errors
var (
	// ErrSessionSuperseded means a newer session exists for the user,
	// the "logged in elsewhere" case.
	ErrSessionSuperseded = errors.New("session superseded")
)

// OAuth errors
var (
	// ErrInvalidState is a CSRF signal: the callback state was never
	// issued by this server or was already consumed.
	ErrInvalidState    = errors.New("oauth state invalid")
	ErrProvider        = errors.New("oauth provider error")
	ErrEmailUnverified = errors.New("oauth email not verified")
	ErrUnknownProvider = errors.New("unknown oauth provider")
)

// Credential errors
var (
	// ErrInvalidCredentials is deliberately identical for unknown email
	// and wrong password to avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountLocked      = errors.New("account temporarily locked")
)
