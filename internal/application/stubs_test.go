package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// plainHasher avoids argon2 cost in service tests.
func plainHasher(password string) (string, error) { return "plain:" + password, nil }

func plainVerifier(hash, password string) error {
	if hash != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type userStoreStub struct {
	mu        sync.Mutex
	byID      map[string]UserCredentials
	createErr error
	lookupErr error
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{byID: make(map[string]UserCredentials)}
}

func (s *userStoreStub) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return User{}, s.createErr
	}
	for _, existing := range s.byID {
		if existing.User.Email == creds.User.Email {
			return User{}, ErrAlreadyExists
		}
	}
	s.byID[creds.User.ID] = creds
	return creds.User, nil
}

func (s *userStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return UserCredentials{}, s.lookupErr
	}
	for _, creds := range s.byID {
		if creds.User.Email == strings.ToLower(email) {
			return creds, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

func (s *userStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return creds.User, nil
}

type sessionRepositoryStub struct {
	mu           sync.Mutex
	sessionsByID map[string]Session

	createErr error
	deleteErr error

	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessionsByID: make(map[string]Session)}
}

func (s *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessionsByID[session.ID] = session
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessionsByID {
		if session.Token == token {
			return session, nil
		}
	}
	return Session{}, ErrNotFound
}

func (s *sessionRepositoryStub) GetSessionByID(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessionsByID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) UpdateSession(ctx context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessionsByID[session.ID]; !ok {
		return Session{}, ErrNotFound
	}
	s.sessionsByID[session.ID] = session
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessionsByID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	revoked := revokedAt.UTC()
	session.RevokedAt = &revoked
	s.sessionsByID[id] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	return s.deleteErr
}

type profileStoreStub struct {
	mu        sync.Mutex
	profiles  map[string]Profile
	createErr error
}

func newProfileStoreStub() *profileStoreStub {
	return &profileStoreStub{profiles: make(map[string]Profile)}
}

func (s *profileStoreStub) CreateProfile(ctx context.Context, profile Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Profile{}, s.createErr
	}
	if _, ok := s.profiles[profile.ID]; ok {
		return Profile{}, ErrAlreadyExists
	}
	s.profiles[profile.ID] = profile
	return profile, nil
}

func (s *profileStoreStub) GetProfile(ctx context.Context, id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

type translationStoreStub struct {
	mu      sync.Mutex
	records []Translation
	err     error
	nextID  func() string
	now     func() time.Time
}

func newTranslationStoreStub(now func() time.Time) *translationStoreStub {
	return &translationStoreStub{nextID: sequence("tr"), now: now}
}

func (s *translationStoreStub) CreateTranslation(ctx context.Context, t Translation) (Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Translation{}, s.err
	}
	t.ID = s.nextID()
	t.CreatedAt = s.now()
	s.records = append(s.records, t)
	return t, nil
}

func (s *translationStoreStub) ListTranslationsByUser(ctx context.Context, userID string) ([]Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Translation
	for _, t := range s.records {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
