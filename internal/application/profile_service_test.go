package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestProfileService(t *testing.T) {
	t.Parallel()

	t.Run("creates and reads the principal's profile", func(t *testing.T) {
		t.Parallel()
		svc := NewProfileServiceWithLogger(newProfileStoreStub(), discardLogger())

		created, err := svc.CreateProfile(context.Background(), CreateProfileParams{Principal: sam, Name: "  Sam  "})
		if err != nil {
			t.Fatalf("CreateProfile failed: %v", err)
		}
		if created.ID != sam.UserID || created.Name != "Sam" {
			t.Fatalf("unexpected profile %+v", created)
		}

		got, err := svc.GetProfile(context.Background(), GetProfileParams{Principal: sam, ProfileID: sam.UserID})
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.Name != "Sam" {
			t.Fatalf("expected name Sam, got %q", got.Name)
		}

		if _, err := svc.CreateProfile(context.Background(), CreateProfileParams{Principal: sam, ProfileID: sam.UserID}); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("denies access to other profiles", func(t *testing.T) {
		t.Parallel()
		svc := NewProfileServiceWithLogger(newProfileStoreStub(), discardLogger())

		if _, err := svc.GetProfile(context.Background(), GetProfileParams{Principal: sam, ProfileID: "user-2"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.CreateProfile(context.Background(), CreateProfileParams{Principal: sam, ProfileID: "user-2"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.GetProfile(context.Background(), GetProfileParams{ProfileID: "user-1"}); !errors.Is(err, ErrAuthenticationRequired) {
			t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
		}
	})

	t.Run("validates the name length", func(t *testing.T) {
		t.Parallel()
		svc := NewProfileServiceWithLogger(newProfileStoreStub(), discardLogger())

		_, err := svc.CreateProfile(context.Background(), CreateProfileParams{Principal: sam, Name: strings.Repeat("n", MaxProfileNameLength+1)})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}
