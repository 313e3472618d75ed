package auth

import "time"

// Usuario is a row of the usuarios credential table. Senha is stored as a
// bcrypt hash, never plaintext.
type Usuario struct {
	ID        string
	Usuario   string
	Email     string
	SenhaHash string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginResult is what a successful login hands back to the handler.
type LoginResult struct {
	Usuario   string
	Token     string
	ExpiresIn int64
}

// LoginAttempt tracks consecutive failures for one username.
type LoginAttempt struct {
	Usuario        string
	FailedAttempts int
	LockedUntil    *time.Time
}

// Sessao is an audit record of an issued access token.
type Sessao struct {
	ID        string
	UsuarioID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
