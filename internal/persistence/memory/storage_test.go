package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/genmode/internal/persistence"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	seq := 0
	storage := New(
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.CreateUser(context.Background(), persistence.User{ID: "user-1", Email: "Sam@Example.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return storage
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	fetched, err := storage.GetUserByEmail(ctx, "sam@example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if fetched.ID != "user-1" {
		t.Fatalf("unexpected user retrieved: %#v", fetched)
	}

	err = storage.CreateUser(ctx, persistence.User{ID: "user-2", Email: "sam@example.com", PasswordHash: "hash"})
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if _, err := storage.CreateProfile(ctx, persistence.Profile{ID: "user-1", Name: "Sam"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if _, err := storage.CreateProfile(ctx, persistence.Profile{ID: "user-1", Name: "Sam"}); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := storage.CreateProfile(ctx, persistence.Profile{ID: "ghost"}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if _, err := storage.GetProfile(ctx, "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	expires := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := storage.CreateSession(ctx, persistence.Session{ID: "s1", UserID: "user-1", Token: "tok", ExpiresAt: expires}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session, err := storage.GetSession(ctx, "tok")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	session.Token = "tok-2"
	if _, err := storage.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if _, err := storage.GetSession(ctx, "tok"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rotated token to be gone, got %v", err)
	}

	first := expires.Add(-time.Hour)
	if _, err := storage.RevokeSession(ctx, "s1", first); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	revoked, err := storage.RevokeSession(ctx, "s1", first.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if !revoked.RevokedAt.Equal(first) {
		t.Fatalf("expected first revocation kept, got %v", revoked.RevokedAt)
	}

	if err := storage.DeleteExpiredSessions(ctx, expires); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := storage.GetSessionByID(ctx, "s1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected session deleted, got %v", err)
	}
}

func TestTranslationRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	for _, p := range []string{"gamer", "vsco"} {
		if _, err := storage.CreateTranslation(ctx, persistence.Translation{UserID: "user-1", InputText: "hi", OutputText: "hii", Persona: p}); err != nil {
			t.Fatalf("CreateTranslation failed: %v", err)
		}
	}

	list, err := storage.ListTranslationsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListTranslationsByUser failed: %v", err)
	}
	if len(list) != 2 || list[0].Persona != "vsco" {
		t.Fatalf("expected newest first, got %#v", list)
	}

	if _, err := storage.CreateTranslation(ctx, persistence.Translation{UserID: "ghost", Persona: "gamer"}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	storage.FailTranslations(persistence.ErrNotProvisioned)
	if _, err := storage.ListTranslationsByUser(ctx, "user-1"); !errors.Is(err, persistence.ErrNotProvisioned) {
		t.Fatalf("expected ErrNotProvisioned, got %v", err)
	}
}
