// Package transform turns text into a persona-styled rendition through a remote LLM oracle.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/genmode/internal/logging"
	"github.com/example/genmode/internal/persona"
)

// UserMessage is shown to callers whenever the oracle cannot produce a transformation.
const UserMessage = "Failed to translate text. Please try again."

// ErrEmptyInput is returned when there is nothing to transform.
var ErrEmptyInput = errors.New("transform: input text is empty")

// Oracle is the remote text generator. Implementations make exactly one request per call.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Error reports a failed oracle call. Message is safe to show to end users.
type Error struct {
	Persona persona.ID
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Client renders text in a persona's style.
type Client struct {
	oracle Oracle
	logger *slog.Logger
}

// NewClient wraps oracle. A nil logger falls back to slog.Default.
func NewClient(oracle Oracle, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{oracle: oracle, logger: logger}
}

// Transform asks the oracle for a persona-styled version of text. The result is trimmed
// and has every literal asterisk removed. Failures are never retried.
func (c *Client) Transform(ctx context.Context, text string, id persona.ID) (output string, err error) {
	id = persona.Normalize(id)
	logger := c.loggerFor(ctx).With("component", "transform", "persona", string(id), "input_length", len(text))
	start := time.Now()
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "transform failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.InfoContext(ctx, "transform completed", "output_length", len(output), "duration", time.Since(start))
	}()

	if strings.TrimSpace(text) == "" {
		err = ErrEmptyInput
		return
	}
	if c == nil || c.oracle == nil {
		err = &Error{Persona: id, Message: UserMessage, Err: errors.New("oracle not configured")}
		return
	}

	raw, callErr := c.oracle.Complete(ctx, persona.PromptFor(id), persona.UserPrompt(text))
	if callErr != nil {
		err = &Error{Persona: id, Message: UserMessage, Err: callErr}
		return
	}

	output = Clean(raw)
	return
}

// Clean trims surrounding whitespace and strips every '*' from an oracle response.
func Clean(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "*", "")
}

func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	if c != nil && c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
