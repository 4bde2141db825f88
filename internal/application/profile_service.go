package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ProfileStore persists display profiles keyed by user id.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
}

// MaxProfileNameLength bounds Profile.Name in runes.
const MaxProfileNameLength = 100

// ProfileService reads and creates profiles on behalf of their owners.
type ProfileService struct {
	profiles ProfileStore
	logger   *slog.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(profiles ProfileStore) *ProfileService {
	return NewProfileServiceWithLogger(profiles, nil)
}

// NewProfileServiceWithLogger constructs a ProfileService with a specified logger.
func NewProfileServiceWithLogger(profiles ProfileStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, logger: defaultLogger(logger)}
}

func (s *ProfileService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ProfileService", operation, attrs...)
}

// GetProfile returns the principal's own profile.
func (s *ProfileService) GetProfile(ctx context.Context, params GetProfileParams) (profile Profile, err error) {
	if s == nil || s.profiles == nil {
		err = fmt.Errorf("profile store not configured")
		return
	}

	id := strings.TrimSpace(params.ProfileID)
	logger := s.loggerWith(ctx, "GetProfile", "principal_id", params.Principal.UserID, "profile_id", id)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "profile lookup failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if err = authorizeOwner(params.Principal, id); err != nil {
		return
	}
	profile, err = s.profiles.GetProfile(ctx, id)
	return
}

// CreateProfile inserts the principal's profile. An existing profile yields ErrAlreadyExists.
func (s *ProfileService) CreateProfile(ctx context.Context, params CreateProfileParams) (profile Profile, err error) {
	if s == nil || s.profiles == nil {
		err = fmt.Errorf("profile store not configured")
		return
	}

	id := strings.TrimSpace(params.ProfileID)
	if id == "" {
		id = params.Principal.UserID
	}
	name := strings.TrimSpace(params.Name)

	logger := s.loggerWith(ctx, "CreateProfile", "principal_id", params.Principal.UserID, "profile_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "profile creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile created")
	}()

	if err = authorizeOwner(params.Principal, id); err != nil {
		return
	}
	if utf8.RuneCountInString(name) > MaxProfileNameLength {
		vErr := &ValidationError{}
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", MaxProfileNameLength))
		err = vErr
		return
	}

	profile, err = s.profiles.CreateProfile(ctx, Profile{ID: id, Name: name})
	return
}

// authorizeOwner allows access only to the principal's own records.
func authorizeOwner(principal Principal, ownerID string) error {
	if !principal.Authenticated() {
		return ErrAuthenticationRequired
	}
	if ownerID == "" || ownerID != principal.UserID {
		return ErrUnauthorized
	}
	return nil
}
