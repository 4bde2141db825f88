package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/example/genmode/internal/persona"
)

// TranslationStore persists transformation history.
type TranslationStore interface {
	CreateTranslation(ctx context.Context, translation Translation) (Translation, error)
	// ListTranslationsByUser returns the owner's records, newest first.
	ListTranslationsByUser(ctx context.Context, userID string) ([]Translation, error)
}

// HistoryService records and lists a user's transformations. Every failure is reported as
// a *Failure alongside a nil record or an empty list; partial data is never returned.
type HistoryService struct {
	store  TranslationStore
	logger *slog.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(store TranslationStore) *HistoryService {
	return NewHistoryServiceWithLogger(store, nil)
}

// NewHistoryServiceWithLogger constructs a HistoryService with a specified logger.
func NewHistoryServiceWithLogger(store TranslationStore, logger *slog.Logger) *HistoryService {
	return &HistoryService{store: store, logger: defaultLogger(logger)}
}

func (s *HistoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "HistoryService", operation, attrs...)
}

// Save records one completed transformation for the principal. UserID defaults to the
// principal and must match it otherwise.
func (s *HistoryService) Save(ctx context.Context, params SaveTranslationParams) (saved *Translation, err error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}
	id := persona.Normalize(params.Persona)

	logger := s.loggerWith(ctx, "Save", "user_id", userID, "persona", string(id))
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to save translation", err)
			saved = nil
			return
		}
		logger.With("translation_id", saved.ID).InfoContext(ctx, "translation saved")
	}()

	if err = s.checkAccess(params.Principal, userID); err != nil {
		return
	}
	if id == "" {
		vErr := &ValidationError{}
		vErr.add("persona", "persona is required")
		err = &Failure{Kind: FailurePrecondition, Message: "Invalid translation", Err: vErr}
		return
	}

	record, storeErr := s.store.CreateTranslation(ctx, Translation{
		UserID:     userID,
		InputText:  params.InputText,
		OutputText: params.OutputText,
		Persona:    id,
	})
	if storeErr != nil {
		err = newFailure("Failed to save translation", storeErr)
		return
	}
	saved = &record
	return
}

// ListByOwner returns the principal's history ordered by CreatedAt, newest first. On
// failure the list is empty.
func (s *HistoryService) ListByOwner(ctx context.Context, params ListTranslationsParams) (list []Translation, err error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}

	logger := s.loggerWith(ctx, "ListByOwner", "user_id", userID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list translations", err)
			list = []Translation{}
			return
		}
		logger.With("count", len(list)).DebugContext(ctx, "translations listed")
	}()

	if err = s.checkAccess(params.Principal, userID); err != nil {
		return
	}

	list, err = s.store.ListTranslationsByUser(ctx, userID)
	if err != nil {
		err = newFailure("Failed to load translations", err)
		return
	}
	if list == nil {
		list = []Translation{}
	}
	return
}

func (s *HistoryService) checkAccess(principal Principal, userID string) error {
	if s == nil || s.store == nil {
		return &Failure{Kind: FailurePrecondition, Message: "Database setup required", Err: ErrNotProvisioned}
	}
	if err := authorizeOwner(principal, userID); err != nil {
		return newFailure("", err)
	}
	return nil
}

// logFailure logs err with the message matching its kind so that missing sessions and an
// unmigrated store are distinguishable from ordinary store errors.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	var failure *Failure
	if errors.As(err, &failure) && failure.Kind == FailurePrecondition {
		switch {
		case errors.Is(err, ErrNotProvisioned):
			logger.ErrorContext(ctx, "Database setup required: the translations table does not exist, run migrations",
				"error", err, "error_kind", ErrorKind(err))
			return
		case errors.Is(err, ErrAuthenticationRequired):
			logger.WarnContext(ctx, "No active session", "error", err, "error_kind", ErrorKind(err))
			return
		}
	}
	logger.ErrorContext(ctx, msg, "error", err, "error_kind", ErrorKind(err))
}
