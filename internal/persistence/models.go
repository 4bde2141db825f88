package persistence

import "time"

// User represents an account registered with the identity provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile holds the display attributes of a user.
type Profile struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session represents a refresh-token session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Translation is an immutable record of one completed transformation.
//
// CreatedAt is assigned by the store. A stored value that cannot be parsed is returned as
// the zero time rather than failing the whole read.
type Translation struct {
	ID         string
	UserID     string
	InputText  string
	OutputText string
	Persona    string
	CreatedAt  time.Time
}
