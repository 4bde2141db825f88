package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/example/genmode/internal/persona"
	"github.com/example/genmode/internal/transform"
)

// MaxInputLength bounds TranslateParams.Text in runes.
const MaxInputLength = 5000

// SaveWarning is returned in TranslateResult.Warning when the history write fails.
const SaveWarning = "Translation completed but couldn't save to history."

// Transformer renders text in a persona's style.
type Transformer interface {
	Transform(ctx context.Context, text string, id persona.ID) (string, error)
}

// TranslationService runs a transformation and records it in the caller's history.
type TranslationService struct {
	transformer Transformer
	history     *HistoryService
	logger      *slog.Logger
}

// NewTranslationService constructs a TranslationService. A nil history disables saving.
func NewTranslationService(transformer Transformer, history *HistoryService) *TranslationService {
	return NewTranslationServiceWithLogger(transformer, history, nil)
}

// NewTranslationServiceWithLogger constructs a TranslationService with a specified logger.
func NewTranslationServiceWithLogger(transformer Transformer, history *HistoryService, logger *slog.Logger) *TranslationService {
	return &TranslationService{transformer: transformer, history: history, logger: defaultLogger(logger)}
}

// Translate validates the request, transforms the text and, when requested, saves the
// result. Oracle failures are returned as *transform.Error; a failed save only sets
// Saved to false and fills Warning.
func (s *TranslationService) Translate(ctx context.Context, params TranslateParams) (result TranslateResult, err error) {
	if s == nil || s.transformer == nil {
		err = fmt.Errorf("transformer not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "TranslationService", "Translate",
		"principal_id", params.Principal.UserID,
		"mode", params.Mode,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "translation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("persona", string(result.Persona), "saved", result.Saved).InfoContext(ctx, "translation completed")
	}()

	vErr := &ValidationError{}
	text := strings.TrimSpace(params.Text)
	switch {
	case text == "":
		vErr.add("text", "Please enter some text to translate.")
	case utf8.RuneCountInString(text) > MaxInputLength:
		vErr.add("text", fmt.Sprintf("text must be at most %d characters", MaxInputLength))
	}

	id, resolveErr := transform.ResolvePersona(transform.Mode(params.Mode), params.Persona)
	if resolveErr != nil {
		switch {
		case errors.Is(resolveErr, transform.ErrPersonaRequired):
			vErr.add("persona", "Please select a role first.")
		case errors.Is(resolveErr, transform.ErrUnknownMode):
			vErr.add("mode", "mode must be direct or full")
		default:
			vErr.add("persona", "unknown persona")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var output string
	output, err = s.transformer.Transform(ctx, text, id)
	if err != nil {
		return
	}
	result = TranslateResult{Output: output, Persona: id}

	if !params.Save || !params.Principal.Authenticated() || s.history == nil {
		return
	}

	saved, saveErr := s.history.Save(ctx, SaveTranslationParams{
		Principal:  params.Principal,
		UserID:     params.Principal.UserID,
		InputText:  text,
		OutputText: output,
		Persona:    id,
	})
	if saveErr != nil {
		result.Warning = SaveWarning
		return
	}
	result.Saved = true
	result.Translation = saved
	return
}
