package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/genmode/internal/persona"
)

var sam = Principal{UserID: "user-1", SessionID: "s-1", Email: "sam@example.com"}

func TestHistoryService_Save(t *testing.T) {
	t.Parallel()

	t.Run("stores the record for the principal", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		store := newTranslationStoreStub(func() time.Time { return now })
		svc := NewHistoryServiceWithLogger(store, discardLogger())

		saved, err := svc.Save(context.Background(), SaveTranslationParams{
			Principal:  sam,
			InputText:  "hello",
			OutputText: "heyyy",
			Persona:    " Gamer ",
		})
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "user-1", saved.UserID)
		assert.Equal(t, persona.Gamer, saved.Persona)
		assert.True(t, saved.CreatedAt.Equal(now))
	})

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()
		svc := NewHistoryServiceWithLogger(newTranslationStoreStub(time.Now), discardLogger())

		saved, err := svc.Save(context.Background(), SaveTranslationParams{UserID: "user-1", Persona: persona.Gamer})
		assert.Nil(t, saved)
		require.ErrorIs(t, err, ErrAuthenticationRequired)

		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, FailurePrecondition, failure.Kind)
	})

	t.Run("rejects writes for another user", func(t *testing.T) {
		t.Parallel()
		svc := NewHistoryServiceWithLogger(newTranslationStoreStub(time.Now), discardLogger())

		saved, err := svc.Save(context.Background(), SaveTranslationParams{Principal: sam, UserID: "user-2", Persona: persona.Gamer})
		assert.Nil(t, saved)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("reports an unprovisioned store", func(t *testing.T) {
		t.Parallel()
		store := newTranslationStoreStub(time.Now)
		store.err = fmt.Errorf("wrapped: %w", ErrNotProvisioned)
		svc := NewHistoryServiceWithLogger(store, discardLogger())

		saved, err := svc.Save(context.Background(), SaveTranslationParams{Principal: sam, Persona: persona.Gamer})
		assert.Nil(t, saved)

		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, FailurePrecondition, failure.Kind)
		assert.Equal(t, "Database setup required", failure.Message)
	})

	t.Run("classifies store errors as transient", func(t *testing.T) {
		t.Parallel()
		store := newTranslationStoreStub(time.Now)
		store.err = errors.New("connection reset")
		svc := NewHistoryServiceWithLogger(store, discardLogger())

		_, err := svc.Save(context.Background(), SaveTranslationParams{Principal: sam, Persona: persona.Gamer})
		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, FailureTransient, failure.Kind)
	})
}

func TestHistoryService_ListByOwner(t *testing.T) {
	t.Parallel()

	t.Run("returns newest first", func(t *testing.T) {
		t.Parallel()
		base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		tick := 0
		store := newTranslationStoreStub(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		})
		svc := NewHistoryServiceWithLogger(store, discardLogger())

		for _, id := range []persona.ID{persona.Gamer, persona.VSCO, persona.Bookworm} {
			_, err := svc.Save(context.Background(), SaveTranslationParams{Principal: sam, InputText: "x", OutputText: "y", Persona: id})
			require.NoError(t, err)
		}

		list, err := svc.ListByOwner(context.Background(), ListTranslationsParams{Principal: sam})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, persona.Bookworm, list[0].Persona)
		assert.Equal(t, persona.Gamer, list[2].Persona)
	})

	t.Run("returns an empty list on failure", func(t *testing.T) {
		t.Parallel()
		store := newTranslationStoreStub(time.Now)
		store.err = errors.New("boom")
		svc := NewHistoryServiceWithLogger(store, discardLogger())

		list, err := svc.ListByOwner(context.Background(), ListTranslationsParams{Principal: sam})
		require.Error(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()
		svc := NewHistoryServiceWithLogger(newTranslationStoreStub(time.Now), discardLogger())

		list, err := svc.ListByOwner(context.Background(), ListTranslationsParams{UserID: "user-1"})
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
		assert.Empty(t, list)
	})

	t.Run("nil store is a precondition failure", func(t *testing.T) {
		t.Parallel()
		svc := NewHistoryServiceWithLogger(nil, discardLogger())

		list, err := svc.ListByOwner(context.Background(), ListTranslationsParams{Principal: sam})
		assert.ErrorIs(t, err, ErrNotProvisioned)
		assert.Empty(t, list)
	})
}
