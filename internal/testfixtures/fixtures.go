package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/persistence"
	"github.com/example/genmode/internal/persona"
)

var (
	userCounter        uint64
	sessionCounter     uint64
	translationCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account with its profile name.
type UserFixture struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		Name:         fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName overrides the generated profile name. An empty name leaves the user
// without name metadata.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserCreatedAt sets both timestamps on the fixture.
func WithUserCreatedAt(t time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = t
		f.UpdatedAt = t
	}
}

func (f UserFixture) metadata() map[string]string {
	if f.Name == "" {
		return nil
	}
	return map[string]string{"name": f.Name}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		Email:     f.Email,
		Metadata:  f.metadata(),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: f.Email}
}

// Profile returns the profile row belonging to the fixture.
func (f UserFixture) Profile() application.Profile {
	return application.Profile{
		ID:        f.ID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Metadata:     f.metadata(),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic refresh-token session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session for userID that expires one day after creation.
func NewSessionFixture(userID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    userID,
		Token:     fmt.Sprintf("refresh-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionToken overrides the refresh token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt overrides the expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt marks the session revoked at t.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = &t
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
		RevokedAt: copyTime(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
		RevokedAt: copyTime(f.RevokedAt),
	}
}

// -------------------------- Translation fixtures --------------------------

// TranslationFixture represents a deterministic history record.
type TranslationFixture struct {
	ID         string
	UserID     string
	InputText  string
	OutputText string
	Persona    persona.ID
	CreatedAt  time.Time
}

// TranslationOption configures the generated translation fixture.
type TranslationOption func(*TranslationFixture)

// NewTranslationFixture returns a translation owned by userID. Successive fixtures are
// created one hour apart.
func NewTranslationFixture(userID string, opts ...TranslationOption) TranslationFixture {
	idx := atomic.AddUint64(&translationCounter, 1)
	fixture := TranslationFixture{
		ID:         fmt.Sprintf("translation-%03d", idx),
		UserID:     userID,
		InputText:  fmt.Sprintf("input %03d", idx),
		OutputText: fmt.Sprintf("output %03d", idx),
		Persona:    persona.Direct,
		CreatedAt:  referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTranslationID overrides the generated identifier.
func WithTranslationID(id string) TranslationOption {
	return func(f *TranslationFixture) {
		f.ID = id
	}
}

// WithTranslationPersona overrides the persona.
func WithTranslationPersona(id persona.ID) TranslationOption {
	return func(f *TranslationFixture) {
		f.Persona = id
	}
}

// WithTranslationText overrides the input and output text.
func WithTranslationText(input, output string) TranslationOption {
	return func(f *TranslationFixture) {
		f.InputText = input
		f.OutputText = output
	}
}

// WithTranslationCreatedAt overrides the creation time.
func WithTranslationCreatedAt(t time.Time) TranslationOption {
	return func(f *TranslationFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Translation value.
func (f TranslationFixture) Application() application.Translation {
	return application.Translation{
		ID:         f.ID,
		UserID:     f.UserID,
		InputText:  f.InputText,
		OutputText: f.OutputText,
		Persona:    f.Persona,
		CreatedAt:  f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Translation value.
func (f TranslationFixture) Persistence() persistence.Translation {
	return persistence.Translation{
		ID:         f.ID,
		UserID:     f.UserID,
		InputText:  f.InputText,
		OutputText: f.OutputText,
		Persona:    string(f.Persona),
		CreatedAt:  f.CreatedAt,
	}
}

// TranslationsAt returns one Direct translation per timestamp, in the given order.
func TranslationsAt(userID string, times ...time.Time) []application.Translation {
	list := make([]application.Translation, 0, len(times))
	for _, ts := range times {
		list = append(list, NewTranslationFixture(userID, WithTranslationCreatedAt(ts)).Application())
	}
	return list
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
