// Package apiclient is the typed client for the GenMode data API: profiles, personas,
// transformations, history and usage statistics.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/genmode/internal/identity"
	"github.com/example/genmode/internal/persona"
	"github.com/example/genmode/internal/stats"
)

const maxResponseBytes = 4 << 20

// ErrNotFound is matched by errors.Is for 404 answers.
var ErrNotFound = errors.New("apiclient: not found")

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("apiclient: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("apiclient: status %d", e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e != nil && e.Status == http.StatusNotFound
}

// TokenSource supplies the caller's access token. identity.Client satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client calls the data API on behalf of the signed-in user.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New constructs a Client. httpClient may be nil.
func New(baseURL string, tokens TokenSource, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	if httpClient == nil {
		// Transformations wait on the oracle.
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens, httpClient: httpClient}, nil
}

// Profile is a user's display record.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Translation is one entry of the caller's history.
type Translation struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	InputText  string     `json:"input_text"`
	OutputText string     `json:"output_text"`
	Persona    persona.ID `json:"persona"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TransformRequest asks for text to be rendered in a persona. Save nil uses the server default.
type TransformRequest struct {
	Text    string     `json:"text"`
	Mode    string     `json:"mode,omitempty"`
	Persona persona.ID `json:"persona,omitempty"`
	Save    *bool      `json:"save,omitempty"`
}

// TransformResult is the rendered text. Saved is false when no history entry was written.
type TransformResult struct {
	Output      string       `json:"output"`
	Persona     persona.ID   `json:"persona"`
	Saved       bool         `json:"saved"`
	Translation *Translation `json:"translation,omitempty"`
	Warning     string       `json:"warning,omitempty"`
}

// History is the caller's translations, newest first. Warning is set when the store failed.
type History struct {
	Translations []Translation `json:"translations"`
	Warning      string        `json:"warning,omitempty"`
}

// Stats is the caller's usage. Warning is set when the counts fell back to zero.
type Stats struct {
	stats.Usage
	Warning string `json:"warning,omitempty"`
}

// Dashboard combines usage and recent history. Warning is set when either half fell back
// to its empty value.
type Dashboard struct {
	Usage             stats.Usage   `json:"usage"`
	Recent            []Translation `json:"recent"`
	PersonasAvailable int           `json:"personas_available"`
	Warning           string        `json:"warning,omitempty"`
}

// GetProfile fetches a profile by id. Missing profiles match ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id), nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile inserts the caller's profile.
func (c *Client) CreateProfile(ctx context.Context, id, name string) (*Profile, error) {
	var profile Profile
	body := map[string]string{"id": id, "name": name}
	if err := c.do(ctx, http.MethodPost, "/profiles", body, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Personas lists the catalog as served by the API.
func (c *Client) Personas(ctx context.Context) ([]persona.Persona, error) {
	var resp struct {
		Personas []persona.Persona `json:"personas"`
	}
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Personas, nil
}

// Transform renders text. It runs anonymously when no session is available.
func (c *Client) Transform(ctx context.Context, req TransformRequest) (TransformResult, error) {
	var result TransformResult
	err := c.do(ctx, http.MethodPost, "/transform", req, &result, false)
	return result, err
}

// History lists the caller's translations.
func (c *Client) History(ctx context.Context) (History, error) {
	history := History{Translations: []Translation{}}
	err := c.do(ctx, http.MethodGet, "/translations", nil, &history, true)
	return history, err
}

// SaveTranslation records an already rendered transformation.
func (c *Client) SaveTranslation(ctx context.Context, input, output string, id persona.ID) (*Translation, error) {
	var t Translation
	body := map[string]string{"input_text": input, "output_text": output, "persona": string(id)}
	if err := c.do(ctx, http.MethodPost, "/translations", body, &t, true); err != nil {
		return nil, err
	}
	return &t, nil
}

// Stats fetches usage statistics computed in tz. An empty tz uses the server default.
func (c *Client) Stats(ctx context.Context, tz string) (Stats, error) {
	var s Stats
	err := c.do(ctx, http.MethodGet, withTZ("/stats", tz), nil, &s, true)
	return s, err
}

// Dashboard fetches usage and recent history in one call.
func (c *Client) Dashboard(ctx context.Context, tz string) (Dashboard, error) {
	var d Dashboard
	err := c.do(ctx, http.MethodGet, withTZ("/dashboard", tz), nil, &d, true)
	return d, err
}

func withTZ(path, tz string) string {
	if tz == "" {
		return path
	}
	return path + "?" + url.Values{"tz": {tz}}.Encode()
}

func (c *Client) token(ctx context.Context, required bool) (string, error) {
	if c.tokens == nil {
		if required {
			return "", identity.ErrNoSession
		}
		return "", nil
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		if !required && errors.Is(err, identity.ErrNoSession) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authRequired bool) error {
	token, err := c.token(ctx, authRequired)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			ErrorCode string            `json:"error_code"`
			Message   string            `json:"message"`
			Errors    map[string]string `json:"errors"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &Error{Status: resp.StatusCode, Code: apiErr.ErrorCode, Message: apiErr.Message, Fields: apiErr.Errors}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
