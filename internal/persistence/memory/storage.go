// Package memory provides an in-process implementation of every persistence repository.
// It backs tests and the `serve --db memory` mode.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/genmode/internal/persistence"
)

// Storage keeps users, profiles, sessions and translations in maps guarded by one lock.
type Storage struct {
	mu           sync.RWMutex
	users        map[string]persistence.User
	profiles     map[string]persistence.Profile
	sessions     map[string]persistence.Session
	translations map[string]persistence.Translation

	now   func() time.Time
	newID func() string
	// failTranslations simulates an unprovisioned translations table.
	failTranslations error
}

// Option customises a Storage.
type Option func(*Storage)

// WithClock overrides the clock used for store-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for store-assigned identifiers.
func WithIDGenerator(newID func() string) Option {
	return func(s *Storage) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New returns an empty Storage.
func New(opts ...Option) *Storage {
	s := &Storage{
		users:        make(map[string]persistence.User),
		profiles:     make(map[string]persistence.Profile),
		sessions:     make(map[string]persistence.Session),
		translations: make(map[string]persistence.Translation),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// FailTranslations makes every translation operation return err until called with nil.
func (s *Storage) FailTranslations(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTranslations = err
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" || user.Email == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s already exists", persistence.ErrConflict, user.ID)
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email %s already exists", persistence.ErrConflict, user.Email)
		}
	}

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.users {
		if user.Email == lower {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// --- ProfileRepository implementation ---

// CreateProfile stores the profile of an existing user.
func (s *Storage) CreateProfile(ctx context.Context, profile persistence.Profile) (persistence.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[profile.ID]; !ok {
		return persistence.Profile{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.profiles[profile.ID]; ok {
		return persistence.Profile{}, fmt.Errorf("%w: profile %s already exists", persistence.ErrConflict, profile.ID)
	}

	now := s.now().UTC()
	profile.Name = strings.TrimSpace(profile.Name)
	profile.CreatedAt = now
	profile.UpdatedAt = now
	s.profiles[profile.ID] = profile
	return profile, nil
}

// GetProfile retrieves the profile of user id.
func (s *Storage) GetProfile(ctx context.Context, id string) (persistence.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return persistence.Profile{}, persistence.ErrNotFound
	}
	return profile, nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.users[session.UserID]; !ok {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.sessions[session.ID]; ok {
		return persistence.Session{}, persistence.ErrConflict
	}
	if _, ok := s.findSessionLocked(session.Token); ok {
		return persistence.Session{}, persistence.ErrConflict
	}

	now := s.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.sessions[session.ID] = cloneSession(session)
	return cloneSession(session), nil
}

// GetSession retrieves a session by refresh token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.findSessionLocked(strings.TrimSpace(token))
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// GetSessionByID retrieves a session by identifier.
func (s *Storage) GetSessionByID(ctx context.Context, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// UpdateSession rewrites the token, expiry and revocation of an existing session.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	token := strings.TrimSpace(session.Token)
	if token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if other, ok := s.findSessionLocked(token); ok && other.ID != session.ID {
		return persistence.Session{}, persistence.ErrConflict
	}

	current.Token = token
	current.ExpiresAt = session.ExpiresAt
	current.RevokedAt = cloneTime(session.RevokedAt)
	current.UpdatedAt = s.now().UTC()
	s.sessions[current.ID] = current
	return cloneSession(current), nil
}

// RevokeSession marks a session revoked, keeping the first revocation time.
func (s *Storage) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if session.RevokedAt == nil {
		ts := revokedAt.UTC()
		session.RevokedAt = &ts
	}
	session.UpdatedAt = revokedAt.UTC()
	s.sessions[id] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Storage) findSessionLocked(token string) (persistence.Session, bool) {
	if token == "" {
		return persistence.Session{}, false
	}
	for _, session := range s.sessions {
		if session.Token == token {
			return session, true
		}
	}
	return persistence.Session{}, false
}

// --- TranslationRepository implementation ---

// CreateTranslation stores a record, assigning its id and creation time.
func (s *Storage) CreateTranslation(ctx context.Context, t persistence.Translation) (persistence.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTranslations != nil {
		return persistence.Translation{}, s.failTranslations
	}
	if _, ok := s.users[t.UserID]; !ok || strings.TrimSpace(t.Persona) == "" {
		return persistence.Translation{}, persistence.ErrConstraintViolation
	}

	t.ID = s.newID()
	t.CreatedAt = s.now().UTC()
	s.translations[t.ID] = t
	return t, nil
}

// ListTranslationsByUser returns the user's records, newest first.
func (s *Storage) ListTranslationsByUser(ctx context.Context, userID string) ([]persistence.Translation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failTranslations != nil {
		return nil, s.failTranslations
	}

	translations := make([]persistence.Translation, 0)
	for _, t := range s.translations {
		if t.UserID == userID {
			translations = append(translations, t)
		}
	}
	sort.Slice(translations, func(i, j int) bool {
		if translations[i].CreatedAt.Equal(translations[j].CreatedAt) {
			return translations[i].ID > translations[j].ID
		}
		return translations[i].CreatedAt.After(translations[j].CreatedAt)
	})
	return translations, nil
}

// PutTranslation stores a record verbatim, keeping its id and timestamp. Tests use it to
// seed history at fixed times.
func (s *Storage) PutTranslation(t persistence.Translation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = s.newID()
	}
	s.translations[t.ID] = t
}

func cloneUser(user persistence.User) persistence.User {
	clone := user
	if user.Metadata != nil {
		clone.Metadata = maps.Clone(user.Metadata)
	}
	return clone
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	clone.RevokedAt = cloneTime(session.RevokedAt)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var (
	_ persistence.UserRepository        = (*Storage)(nil)
	_ persistence.ProfileRepository     = (*Storage)(nil)
	_ persistence.SessionRepository     = (*Storage)(nil)
	_ persistence.TranslationRepository = (*Storage)(nil)
)
