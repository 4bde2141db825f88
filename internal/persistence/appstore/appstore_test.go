package appstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/persistence"
	"github.com/example/genmode/internal/persistence/memory"
	"github.com/example/genmode/internal/persona"
)

var referenceTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newStorage() *memory.Storage {
	return memory.New(memory.WithClock(func() time.Time { return referenceTime }))
}

func seedUser(t *testing.T, storage *memory.Storage, id string) {
	t.Helper()
	require.NoError(t, storage.CreateUser(context.Background(), persistence.User{ID: id, Email: id + "@example.com", PasswordHash: "hash"}))
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "not found", in: persistence.ErrNotFound, want: application.ErrNotFound},
		{name: "conflict", in: persistence.ErrConflict, want: application.ErrAlreadyExists},
		{name: "constraint", in: persistence.ErrConstraintViolation, want: application.ErrConstraint},
		{name: "not provisioned", in: persistence.ErrNotProvisioned, want: application.ErrNotProvisioned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapError(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	assert.NoError(t, mapError(nil))
	other := errors.New("disk on fire")
	assert.Same(t, other, mapError(other))
}

func TestUserStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewUserStore(newStorage())

	created, err := store.CreateUser(ctx, application.UserCredentials{
		User:         application.User{ID: "user-1", Email: "sam@example.com", Metadata: map[string]string{"name": "Sam"}},
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", created.ID)
	assert.Equal(t, "Sam", created.Metadata["name"])

	creds, err := store.GetUserCredentialsByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", creds.PasswordHash)
	assert.Equal(t, "user-1", creds.User.ID)

	_, err = store.GetUserCredentialsByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, application.ErrNotFound)

	_, err = store.CreateUser(ctx, application.UserCredentials{
		User:         application.User{ID: "user-2", Email: "sam@example.com"},
		PasswordHash: "hash",
	})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)
}

func TestSessionStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := newStorage()
	seedUser(t, backing, "user-1")
	store := NewSessionStore(backing)

	created, err := store.CreateSession(ctx, application.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Token:     "refresh-1",
		ExpiresAt: referenceTime.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", created.Token)

	byToken, err := store.GetSession(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", byToken.ID)

	revokedAt := referenceTime.Add(time.Minute)
	revoked, err := store.RevokeSession(ctx, "session-1", revokedAt)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.RevokedAt.Equal(revokedAt))

	_, err = store.GetSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestProfileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := newStorage()
	seedUser(t, backing, "user-1")
	store := NewProfileStore(backing)

	created, err := store.CreateProfile(ctx, application.Profile{ID: "user-1", Name: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "Sam", created.Name)

	got, err := store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = store.CreateProfile(ctx, application.Profile{ID: "user-1", Name: "Again"})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	_, err = store.GetProfile(ctx, "user-2")
	assert.ErrorIs(t, err, application.ErrNotFound)

	_, err = store.CreateProfile(ctx, application.Profile{ID: "user-2", Name: "Ghost"})
	assert.ErrorIs(t, err, application.ErrConstraint)
}

func TestTranslationStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := newStorage()
	seedUser(t, backing, "user-1")
	store := NewTranslationStore(backing)

	saved, err := store.CreateTranslation(ctx, application.Translation{
		UserID:     "user-1",
		InputText:  "hello",
		OutputText: "hiii",
		Persona:    persona.VSCO,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, persona.VSCO, saved.Persona)
	assert.True(t, saved.CreatedAt.Equal(referenceTime))

	list, err := store.ListTranslationsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	backing.FailTranslations(persistence.ErrNotProvisioned)
	_, err = store.ListTranslationsByUser(ctx, "user-1")
	assert.ErrorIs(t, err, application.ErrNotProvisioned)
}
