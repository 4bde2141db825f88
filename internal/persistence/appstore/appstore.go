// Package appstore adapts the persistence repositories to the store interfaces consumed by
// the application services, translating models and error sentinels on the way.
package appstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/persistence"
	"github.com/example/genmode/internal/persona"
)

// mapError rewrites persistence sentinels into their application counterparts while
// keeping the original error in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %w", application.ErrConstraint, err)
	case errors.Is(err, persistence.ErrNotProvisioned):
		return fmt.Errorf("%w: %w", application.ErrNotProvisioned, err)
	default:
		return err
	}
}

// UserStore implements application.UserStore.
type UserStore struct {
	repo persistence.UserRepository
}

func NewUserStore(repo persistence.UserRepository) *UserStore {
	return &UserStore{repo: repo}
}

func (a *UserStore) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds.User, creds.PasswordHash)); err != nil {
		return application.User{}, mapError(err)
	}
	stored, err := a.repo.GetUser(ctx, creds.User.ID)
	if err != nil {
		return application.User{}, mapError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *UserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *UserStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapError(err)
	}
	return toApplicationUser(stored), nil
}

// SessionStore implements application.SessionRepository.
type SessionStore struct {
	repo persistence.SessionRepository
}

func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (a *SessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) GetSessionByID(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSessionByID(ctx, id)
	if err != nil {
		return application.Session{}, mapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, id, revokedAt)
	if err != nil {
		return application.Session{}, mapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapError(a.repo.DeleteExpiredSessions(ctx, reference))
}

// ProfileStore implements application.ProfileStore.
type ProfileStore struct {
	repo persistence.ProfileRepository
}

func NewProfileStore(repo persistence.ProfileRepository) *ProfileStore {
	return &ProfileStore{repo: repo}
}

func (a *ProfileStore) CreateProfile(ctx context.Context, profile application.Profile) (application.Profile, error) {
	stored, err := a.repo.CreateProfile(ctx, persistence.Profile{ID: profile.ID, Name: profile.Name})
	if err != nil {
		return application.Profile{}, mapError(err)
	}
	return toApplicationProfile(stored), nil
}

func (a *ProfileStore) GetProfile(ctx context.Context, id string) (application.Profile, error) {
	stored, err := a.repo.GetProfile(ctx, id)
	if err != nil {
		return application.Profile{}, mapError(err)
	}
	return toApplicationProfile(stored), nil
}

// TranslationStore implements application.TranslationStore.
type TranslationStore struct {
	repo persistence.TranslationRepository
}

func NewTranslationStore(repo persistence.TranslationRepository) *TranslationStore {
	return &TranslationStore{repo: repo}
}

func (a *TranslationStore) CreateTranslation(ctx context.Context, t application.Translation) (application.Translation, error) {
	stored, err := a.repo.CreateTranslation(ctx, persistence.Translation{
		ID:         t.ID,
		UserID:     t.UserID,
		InputText:  t.InputText,
		OutputText: t.OutputText,
		Persona:    string(t.Persona),
	})
	if err != nil {
		return application.Translation{}, mapError(err)
	}
	return toApplicationTranslation(stored), nil
}

func (a *TranslationStore) ListTranslationsByUser(ctx context.Context, userID string) ([]application.Translation, error) {
	stored, err := a.repo.ListTranslationsByUser(ctx, userID)
	if err != nil {
		return nil, mapError(err)
	}
	list := make([]application.Translation, 0, len(stored))
	for _, t := range stored {
		list = append(list, toApplicationTranslation(t))
	}
	return list, nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Email:     model.Email,
		Metadata:  cloneMetadata(model.Metadata),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: passwordHash,
		Metadata:     cloneMetadata(user.Metadata),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func toApplicationProfile(model persistence.Profile) application.Profile {
	return application.Profile{
		ID:        model.ID,
		Name:      model.Name,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toApplicationTranslation(model persistence.Translation) application.Translation {
	return application.Translation{
		ID:         model.ID,
		UserID:     model.UserID,
		InputText:  model.InputText,
		OutputText: model.OutputText,
		Persona:    persona.ID(model.Persona),
		CreatedAt:  model.CreatedAt,
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

var (
	_ application.UserStore         = (*UserStore)(nil)
	_ application.SessionRepository = (*SessionStore)(nil)
	_ application.ProfileStore      = (*ProfileStore)(nil)
	_ application.TranslationStore  = (*TranslationStore)(nil)
)
