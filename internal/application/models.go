package application

import (
	"time"

	"github.com/example/genmode/internal/persona"
	"github.com/example/genmode/internal/stats"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID    string
	SessionID string
	Email     string
}

// Authenticated reports whether the principal carries a user.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// User represents an account exposed by the application services.
type User struct {
	ID        string
	Email     string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents a refresh-token session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AccessToken is a signed, short-lived bearer credential.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// SignUpParams captures the data required to register an account.
type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful sign-up or sign-in.
type AuthenticateResult struct {
	User    User
	Session Session
	Access  AccessToken
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	User    User
	Session Session
	Access  AccessToken
}

// Profile holds the display attributes of a user.
type Profile struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetProfileParams wraps the data required to read a profile.
type GetProfileParams struct {
	Principal Principal
	ProfileID string
}

// CreateProfileParams wraps the data required to create a profile.
type CreateProfileParams struct {
	Principal Principal
	ProfileID string
	Name      string
}

// Translation is an immutable record of one completed transformation.
type Translation struct {
	ID         string
	UserID     string
	InputText  string
	OutputText string
	Persona    persona.ID
	CreatedAt  time.Time
}

// SaveTranslationParams wraps the data required to record a transformation.
type SaveTranslationParams struct {
	Principal  Principal
	UserID     string
	InputText  string
	OutputText string
	Persona    persona.ID
}

// ListTranslationsParams wraps the data required to list a user's history.
type ListTranslationsParams struct {
	Principal Principal
	UserID    string
}

// StatsParams wraps the data required to compute usage statistics. A nil Location uses
// the service default.
type StatsParams struct {
	Principal Principal
	UserID    string
	Location  *time.Location
}

// TranslateParams wraps a transformation request.
type TranslateParams struct {
	Principal Principal
	Text      string
	Mode      string
	Persona   persona.ID
	// Save records the result in the principal's history when a principal is present.
	Save bool
}

// TranslateResult is the outcome of a successful transformation. Saved is false when the
// history write failed; Warning then explains why.
type TranslateResult struct {
	Output      string
	Persona     persona.ID
	Saved       bool
	Translation *Translation
	Warning     string
}

// DashboardParams wraps the data required to assemble a dashboard.
type DashboardParams struct {
	Principal Principal
	Location  *time.Location
}

// Dashboard combines usage statistics with the most recent history entries.
type Dashboard struct {
	Usage  stats.Usage
	Recent []Translation
	// PersonasAvailable is the number of stylistic personas a user can unlock.
	PersonasAvailable int
}
