package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/genmode/internal/application"
)

type profileService interface {
	GetProfile(ctx context.Context, params application.GetProfileParams) (application.Profile, error)
	CreateProfile(ctx context.Context, params application.CreateProfileParams) (application.Profile, error)
}

// ProfileHandler serves /profiles.
type ProfileHandler struct {
	service   profileService
	responder responder
	logger    *slog.Logger
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(service profileService, logger *slog.Logger) *ProfileHandler {
	base := defaultLogger(logger)
	return &ProfileHandler{service: service, responder: newResponder(base), logger: base}
}

// Get handles GET /profiles/{id}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request, profileID string) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "ProfileHandler", "Get", "principal_id", principal.UserID, "profile_id", profileID)

	if strings.TrimSpace(profileID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProfileID)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), application.GetProfileParams{Principal: principal, ProfileID: profileID})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load profile", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toProfileDTO(profile))
}

// Create handles POST /profiles.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "ProfileHandler", "Create", "principal_id", principal.UserID)

	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode profile request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	profile, err := h.service.CreateProfile(r.Context(), application.CreateProfileParams{
		Principal: principal,
		ProfileID: req.ID,
		Name:      req.Name,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create profile", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile created", "profile_id", profile.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toProfileDTO(profile))
}

type createProfileRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type profileDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toProfileDTO(profile application.Profile) profileDTO {
	return profileDTO{
		ID:        profile.ID,
		Name:      profile.Name,
		CreatedAt: profile.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: profile.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
