package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type authFixture struct {
	svc      *AuthService
	users    *userStoreStub
	sessions *sessionRepositoryStub
	profiles *profileStoreStub
	now      *time.Time
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	signer, err := NewTokenSigner([]byte("test-secret"), time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenSigner failed: %v", err)
	}

	users := newUserStoreStub()
	sessions := newSessionRepositoryStub()
	profiles := newProfileStoreStub()
	svc := NewAuthServiceWithLogger(users, sessions, profiles, signer, sequence("id"), clock, 24*time.Hour, discardLogger()).
		WithPasswordHashing(plainHasher, plainVerifier)

	return authFixture{svc: svc, users: users, sessions: sessions, profiles: profiles, now: &now}
}

func TestAuthService_SignUp(t *testing.T) {
	t.Parallel()

	t.Run("creates the user, profile and session", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)

		result, err := f.svc.SignUp(context.Background(), SignUpParams{
			Email:    " Sam@Example.com ",
			Password: "secret1",
			Metadata: map[string]string{"name": " Sam "},
		})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if result.User.Email != "sam@example.com" {
			t.Fatalf("expected normalised email, got %q", result.User.Email)
		}
		if result.Access.Token == "" || result.Session.Token == "" {
			t.Fatalf("expected tokens to be issued, got %+v", result)
		}
		profile, err := f.profiles.GetProfile(context.Background(), result.User.ID)
		if err != nil {
			t.Fatalf("expected profile to be created: %v", err)
		}
		if profile.Name != "Sam" {
			t.Fatalf("expected profile name Sam, got %q", profile.Name)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)

		_, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "nope", Password: "123"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["email"]; !ok {
			t.Fatalf("expected email error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["password"]; !ok {
			t.Fatalf("expected password error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)

		params := SignUpParams{Email: "sam@example.com", Password: "secret1"}
		if _, err := f.svc.SignUp(context.Background(), params); err != nil {
			t.Fatalf("first SignUp failed: %v", err)
		}
		if _, err := f.svc.SignUp(context.Background(), params); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("profile failure does not fail sign-up", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		f.profiles.createErr = errors.New("profiles down")

		if _, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"}); err != nil {
			t.Fatalf("expected sign-up to succeed, got %v", err)
		}
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		if _, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"}); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		result, err := f.svc.Authenticate(context.Background(), AuthenticateParams{Email: "SAM@example.com", Password: "secret1"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if !result.Session.ExpiresAt.Equal(f.now.Add(24 * time.Hour)) {
			t.Fatalf("unexpected session expiry %v", result.Session.ExpiresAt)
		}
		if len(f.sessions.deleteCalls) != 2 || !f.sessions.deleteCalls[1].Equal(*f.now) {
			t.Fatalf("expected DeleteExpiredSessions to be called with now, got %#v", f.sessions.deleteCalls)
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		if _, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"}); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		for _, params := range []AuthenticateParams{
			{Email: "sam@example.com", Password: "wrong"},
			{Email: "nobody@example.com", Password: "secret1"},
			{Email: "", Password: ""},
		} {
			if _, err := f.svc.Authenticate(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", params, err)
			}
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		if _, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"}); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		expected := errors.New("boom")
		f.sessions.createErr = expected
		if _, err := f.svc.Authenticate(context.Background(), AuthenticateParams{Email: "sam@example.com", Password: "secret1"}); !errors.Is(err, expected) {
			t.Fatalf("expected error %v, got %v", expected, err)
		}
	})
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	signed, err := f.svc.SignUp(ctx, SignUpParams{Email: "sam@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	principal, err := f.svc.ValidateSession(ctx, signed.Access.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if principal.UserID != signed.User.ID || principal.SessionID != signed.Session.ID {
		t.Fatalf("unexpected principal %+v", principal)
	}

	user, err := f.svc.CurrentUser(ctx, principal)
	if err != nil || user.Email != "sam@example.com" {
		t.Fatalf("CurrentUser returned %+v, %v", user, err)
	}

	refreshed, err := f.svc.RefreshSession(ctx, RefreshSessionParams{Token: signed.Session.Token})
	if err != nil {
		t.Fatalf("RefreshSession failed: %v", err)
	}
	if refreshed.Session.Token == signed.Session.Token {
		t.Fatalf("expected refresh token rotation")
	}
	if _, err := f.svc.RefreshSession(ctx, RefreshSessionParams{Token: signed.Session.Token}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old refresh token to be rejected, got %v", err)
	}

	if err := f.svc.RevokeSession(ctx, principal); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := f.svc.ValidateSession(ctx, refreshed.Access.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := f.svc.RefreshSession(ctx, RefreshSessionParams{Token: refreshed.Session.Token}); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked on refresh, got %v", err)
	}
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects malformed tokens", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		for _, token := range []string{"", "garbage", "a.b.c"} {
			if _, err := f.svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %q, got %v", token, err)
			}
		}
	})

	t.Run("rejects expired access tokens", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		signed, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		*f.now = f.now.Add(2 * time.Hour)
		if _, err := f.svc.ValidateSession(context.Background(), signed.Access.Token); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t)
		signed, err := f.svc.SignUp(context.Background(), SignUpParams{Email: "sam@example.com", Password: "secret1"})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		other, _ := NewTokenSigner([]byte("other"), time.Hour, func() time.Time { return *f.now })
		forged, err := other.Issue(signed.User, signed.Session.ID)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := f.svc.ValidateSession(context.Background(), forged.Token); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_RevokeSessionRequiresSession(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	if err := f.svc.RevokeSession(context.Background(), Principal{UserID: "u"}); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
}
