package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/persona"
)

type translationService interface {
	Translate(ctx context.Context, params application.TranslateParams) (application.TranslateResult, error)
}

type historyService interface {
	Save(ctx context.Context, params application.SaveTranslationParams) (*application.Translation, error)
	ListByOwner(ctx context.Context, params application.ListTranslationsParams) ([]application.Translation, error)
}

// TranslationHandler serves /transform, /translations and /personas.
type TranslationHandler struct {
	translator translationService
	history    historyService
	responder  responder
	logger     *slog.Logger
}

// NewTranslationHandler constructs a TranslationHandler.
func NewTranslationHandler(translator translationService, history historyService, logger *slog.Logger) *TranslationHandler {
	base := defaultLogger(logger)
	return &TranslationHandler{translator: translator, history: history, responder: newResponder(base), logger: base}
}

// Personas handles GET /personas.
func (h *TranslationHandler) Personas(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, personasResponse{Personas: persona.All()})
}

// Transform handles POST /transform. Anonymous callers get the output without a history entry.
func (h *TranslationHandler) Transform(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "TranslationHandler", "Transform", "principal_id", principal.UserID)

	var req transformRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode transform request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	save := true
	if req.Save != nil {
		save = *req.Save
	}

	result, err := h.translator.Translate(r.Context(), application.TranslateParams{
		Principal: principal,
		Text:      req.Text,
		Mode:      req.Mode,
		Persona:   persona.ID(req.Persona),
		Save:      save,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "transform failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := transformResponse{
		Output:  result.Output,
		Persona: string(result.Persona),
		Saved:   result.Saved,
		Warning: result.Warning,
	}
	if result.Translation != nil {
		dto := toTranslationDTO(*result.Translation)
		resp.Translation = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// List handles GET /translations. A store failure degrades to an empty list with a warning.
func (h *TranslationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "TranslationHandler", "List", "principal_id", principal.UserID)

	list, err := h.history.ListByOwner(r.Context(), application.ListTranslationsParams{Principal: principal})
	resp := translationListResponse{Translations: make([]translationDTO, 0, len(list))}
	for _, t := range list {
		resp.Translations = append(resp.Translations, toTranslationDTO(t))
	}
	if err != nil {
		logger.WarnContext(r.Context(), "history unavailable", "error", err, "error_kind", application.ErrorKind(err))
		resp.Warning = failureMessage(err)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Create handles POST /translations.
func (h *TranslationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "TranslationHandler", "Create", "principal_id", principal.UserID)

	var req createTranslationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode translation", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	saved, err := h.history.Save(r.Context(), application.SaveTranslationParams{
		Principal:  principal,
		InputText:  req.InputText,
		OutputText: req.OutputText,
		Persona:    persona.ID(req.Persona),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to save translation", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTranslationDTO(*saved))
}

type personasResponse struct {
	Personas []persona.Persona `json:"personas"`
}

type transformRequest struct {
	Text    string `json:"text"`
	Mode    string `json:"mode,omitempty"`
	Persona string `json:"persona,omitempty"`
	Save    *bool  `json:"save,omitempty"`
}

type transformResponse struct {
	Output      string          `json:"output"`
	Persona     string          `json:"persona"`
	Saved       bool            `json:"saved"`
	Translation *translationDTO `json:"translation,omitempty"`
	Warning     string          `json:"warning,omitempty"`
}

type createTranslationRequest struct {
	InputText  string `json:"input_text"`
	OutputText string `json:"output_text"`
	Persona    string `json:"persona"`
}

type translationListResponse struct {
	Translations []translationDTO `json:"translations"`
	Warning      string           `json:"warning,omitempty"`
}

type translationDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	InputText  string `json:"input_text"`
	OutputText string `json:"output_text"`
	Persona    string `json:"persona"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toTranslationDTO(t application.Translation) translationDTO {
	dto := translationDTO{
		ID:         t.ID,
		UserID:     t.UserID,
		InputText:  t.InputText,
		OutputText: t.OutputText,
		Persona:    string(t.Persona),
	}
	if !t.CreatedAt.IsZero() {
		dto.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
