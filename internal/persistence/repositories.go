package persistence

import (
	"context"
	"time"
)

// UserRepository stores identity provider accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// ProfileRepository stores display profiles keyed by user id.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	GetSessionByID(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// TranslationRepository stores transformation history.
type TranslationRepository interface {
	CreateTranslation(ctx context.Context, translation Translation) (Translation, error)
	// ListTranslationsByUser returns the owner's records, newest first.
	ListTranslationsByUser(ctx context.Context, userID string) ([]Translation, error)
}
