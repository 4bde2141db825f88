package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/genmode/internal/cache"
	"github.com/example/genmode/internal/logging"
)

// SessionKey is the cache slot holding the persisted provider session.
const SessionKey = "genmode-auth-token"

const (
	refreshMargin    = 30 * time.Second
	subscriberBuffer = 16
	maxResponseBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Store      cache.Store
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *slog.Logger
}

// Client talks to the provider's /auth endpoints.
type Client struct {
	baseURL    string
	store      cache.Store
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	session *Session
	loaded  bool

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
	seq     uint64
}

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("identity: base URL is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("identity: cache store is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
		logger:     cfg.Logger,
		subs:       make(map[int]chan Event),
	}, nil
}

func (c *Client) loggerFor(ctx context.Context, op string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = c.logger
	}
	return logger.With("component", "identity", "operation", op)
}

// Subscribe registers for session events. The returned function unsubscribes and closes
// the channel; calling it more than once is harmless.
func (c *Client) Subscribe() (<-chan Event, func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subsMu.Unlock()
		})
	}
}

func (c *Client) emit(ctx context.Context, typ EventType, session *Session) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.seq++
	for id, ch := range c.subs {
		select {
		case ch <- Event{Type: typ, Session: session.clone(), Seq: c.seq}:
		default:
			c.loggerFor(ctx, "emit").WarnContext(ctx, "dropping event for slow subscriber", "subscriber", id, "event", string(typ))
		}
	}
}

// LastEventSeq returns the Seq of the most recent event, or 0 before the first one. An
// event with a Seq at or below the value read after a call returns was emitted no later
// than that call.
func (c *Client) LastEventSeq() uint64 {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return c.seq
}

// GetSession returns the current session, refreshing it when the access token has lapsed.
// It returns nil without error when nobody is signed in. The first call loads the persisted
// session and announces the outcome as INITIAL_SESSION once any refresh has settled: the
// refreshed session, the still valid one, or nil when the refresh failed.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	current, first, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.Expired(c.now(), refreshMargin) {
		if first {
			c.emit(ctx, EventInitialSession, current)
		}
		return current, nil
	}

	refreshed, err := c.refresh(ctx, current.RefreshToken)
	if err != nil {
		c.loggerFor(ctx, "GetSession").WarnContext(ctx, "session refresh failed", "error", err)
		var idErr *Error
		if errors.As(err, &idErr) && idErr.Status == http.StatusUnauthorized {
			if clearErr := c.forget(ctx); clearErr != nil {
				return nil, clearErr
			}
			if !first {
				c.emit(ctx, EventSignedOut, nil)
			}
		}
		if first {
			c.emit(ctx, EventInitialSession, nil)
		}
		return nil, err
	}
	if err := c.remember(ctx, refreshed); err != nil {
		return nil, err
	}
	if first {
		c.emit(ctx, EventInitialSession, refreshed)
	} else {
		c.emit(ctx, EventTokenRefreshed, refreshed)
	}
	return refreshed.clone(), nil
}

// AccessToken returns a usable access token or ErrNoSession.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrNoSession
	}
	return session.AccessToken, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, "SignInWithPassword", http.MethodPost, "/auth/token", "", passwordRequest{Email: email, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.remember(ctx, &session); err != nil {
		return nil, err
	}
	c.emit(ctx, EventSignedIn, &session)
	return session.clone(), nil
}

// SignUp registers an account. Metadata travels as the user's metadata and seeds the
// profile name on the server.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Session, error) {
	var session Session
	err := c.do(ctx, "SignUp", http.MethodPost, "/auth/signup", "", signUpRequest{Email: email, Password: password, Data: metadata}, &session)
	if err != nil {
		return nil, err
	}
	if err := c.remember(ctx, &session); err != nil {
		return nil, err
	}
	c.emit(ctx, EventSignedIn, &session)
	return session.clone(), nil
}

// SignOut revokes the session on the server and forgets it locally. The local session is
// dropped even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	current, _, err := c.current(ctx)
	if err != nil {
		return err
	}

	var remoteErr error
	if current != nil {
		remoteErr = c.do(ctx, "SignOut", http.MethodPost, "/auth/logout", current.AccessToken, nil, nil)
		var idErr *Error
		if errors.As(remoteErr, &idErr) && idErr.Status == http.StatusUnauthorized {
			remoteErr = nil
		}
	}

	if err := c.forget(ctx); err != nil {
		return err
	}
	c.emit(ctx, EventSignedOut, nil)
	return remoteErr
}

// User fetches the account behind the current session and announces it as USER_UPDATED
// when it differs from the cached copy.
func (c *Client) User(ctx context.Context) (*User, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}

	var user User
	if err := c.do(ctx, "User", http.MethodGet, "/auth/user", session.AccessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.Email != session.User.Email || !sameMetadata(user.Metadata, session.User.Metadata) {
		if user.CreatedAt.IsZero() {
			user.CreatedAt = session.User.CreatedAt
		}
		session.User = user
		if err := c.remember(ctx, session); err != nil {
			return nil, err
		}
		c.emit(ctx, EventUserUpdated, session)
	}
	return &user, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &Error{Op: "RefreshSession", Status: http.StatusUnauthorized, Code: "AUTH_SESSION_EXPIRED", Message: "Your session has ended. Please sign in again."}
	}
	var session Session
	if err := c.do(ctx, "RefreshSession", http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) current(ctx context.Context) (*Session, bool, error) {
	c.mu.Lock()
	if c.loaded {
		s := c.session.clone()
		c.mu.Unlock()
		return s, false, nil
	}
	c.mu.Unlock()

	raw, ok, err := c.store.Get(ctx, SessionKey)
	if err != nil {
		return nil, false, fmt.Errorf("identity: load session: %w", err)
	}
	var loaded *Session
	if ok && raw != "" {
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			c.loggerFor(ctx, "GetSession").WarnContext(ctx, "discarding unreadable persisted session", "error", err)
		} else {
			loaded = &s
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.session.clone(), false, nil
	}
	c.session = loaded
	c.loaded = true
	return loaded.clone(), true, nil
}

func (c *Client) remember(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("identity: encode session: %w", err)
	}
	if err := c.store.SetMany(ctx, map[string]string{SessionKey: string(raw)}); err != nil {
		return fmt.Errorf("identity: persist session: %w", err)
	}
	c.mu.Lock()
	c.session = session.clone()
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Client) forget(ctx context.Context) error {
	if err := c.store.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("identity: clear session: %w", err)
	}
	c.mu.Lock()
	c.session = nil
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
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
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &Error{Op: op, Status: resp.StatusCode, Code: apiErr.ErrorCode, Message: apiErr.Message}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func sameMetadata(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
