package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// UserStore exposes the account operations required by the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, creds UserCredentials) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	GetSessionByID(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// AuthService is the identity provider: it registers accounts, signs users in and out and
// validates the access tokens presented to the API.
type AuthService struct {
	users          UserStore
	sessions       SessionRepository
	profiles       ProfileStore
	tokens         *TokenSigner
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserStore, sessions SessionRepository, profiles ProfileStore, tokens *TokenSigner, idGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(users, sessions, profiles, tokens, idGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger. sessionTTL
// bounds the lifetime of refresh tokens.
func NewAuthServiceWithLogger(users UserStore, sessions SessionRepository, profiles ProfileStore, tokens *TokenSigner, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:          users,
		sessions:       sessions,
		profiles:       profiles,
		tokens:         tokens,
		hashPassword:   Argon2idHasher(DefaultArgon2idParams),
		verifyPassword: VerifyPassword,
		idGenerator:    idGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

// WithPasswordHashing replaces the password hash functions. Nil arguments keep the current ones.
func (s *AuthService) WithPasswordHashing(hash PasswordHasher, verify PasswordVerifier) *AuthService {
	if hash != nil {
		s.hashPassword = hash
	}
	if verify != nil {
		s.verifyPassword = verify
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user store not configured")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}
	if s.tokens == nil {
		return fmt.Errorf("token signer not configured")
	}
	return nil
}

// SignUp registers an account and signs it in. The profile row is created from the
// "name" metadata entry; a failure there is logged and does not fail the sign-up.
func (s *AuthService) SignUp(ctx context.Context, params SignUpParams) (result AuthenticateResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "SignUp", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sign-up failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "sign-up succeeded")
	}()

	vErr := &ValidationError{}
	if _, perr := mail.ParseAddress(email); email == "" || perr != nil {
		vErr.add("email", "a valid email address is required")
	}
	if len(params.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, lookupErr := s.users.GetUserCredentialsByEmail(ctx, email); lookupErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(lookupErr, ErrNotFound) {
		err = lookupErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = strings.TrimSpace(v)
	}

	var user User
	user, err = s.users.CreateUser(ctx, UserCredentials{
		User:         User{ID: s.idGenerator(), Email: email, Metadata: metadata},
		PasswordHash: hash,
	})
	if err != nil {
		return
	}

	if s.profiles != nil {
		if _, perr := s.profiles.CreateProfile(ctx, Profile{ID: user.ID, Name: metadata["name"]}); perr != nil && !errors.Is(perr, ErrAlreadyExists) {
			logger.WarnContext(ctx, "profile creation failed", "user_id", user.ID, "error", perr, "error_kind", ErrorKind(perr))
		}
	}

	result, err = s.issueSession(ctx, user)
	return
}

// Authenticate validates credentials and issues a new session.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if verr := s.verifyPassword(creds.PasswordHash, params.Password); verr != nil {
		err = ErrInvalidCredentials
		return
	}

	result, err = s.issueSession(ctx, creds.User)
	return
}

func (s *AuthService) issueSession(ctx context.Context, user User) (AuthenticateResult, error) {
	now := s.now()
	id := s.idGenerator()
	token := s.idGenerator()
	if token == "" {
		token = id
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return AuthenticateResult{}, err
	}

	session, err := s.sessions.CreateSession(ctx, Session{
		ID:        id,
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	})
	if err != nil {
		return AuthenticateResult{}, err
	}

	access, err := s.tokens.Issue(user, session.ID)
	if err != nil {
		return AuthenticateResult{}, err
	}
	return AuthenticateResult{User: user, Session: session, Access: access}, nil
}

// RefreshSession rotates a refresh token, extending its validity window, and issues a new
// access token.
func (s *AuthService) RefreshSession(ctx context.Context, params RefreshSessionParams) (result RefreshSessionResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	token := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "RefreshSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", result.Session.ID,
			"user_id", result.Session.UserID,
		).InfoContext(ctx, "session refreshed")
	}()

	if token == "" {
		err = ErrInvalidCredentials
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if err = s.checkActive(session); err != nil {
		return
	}

	var user User
	user, err = s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	now := s.now()
	if newToken := s.idGenerator(); newToken != "" {
		session.Token = newToken
	}
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)

	session, err = s.sessions.UpdateSession(ctx, session)
	if err != nil {
		return
	}

	var access AccessToken
	access, err = s.tokens.Issue(user, session.ID)
	if err != nil {
		return
	}

	result = RefreshSessionResult{User: user, Session: session, Access: access}
	return
}

// RevokeSession signs the principal's session out.
func (s *AuthService) RevokeSession(ctx context.Context, principal Principal) error {
	if err := s.ready(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "RevokeSession", "principal_id", principal.UserID, "session_id", principal.SessionID)
	if principal.SessionID == "" {
		logger.ErrorContext(ctx, "failed to revoke session", "error", ErrAuthenticationRequired, "error_kind", ErrorKind(ErrAuthenticationRequired))
		return ErrAuthenticationRequired
	}

	if _, err := s.sessions.RevokeSession(ctx, principal.SessionID, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies an access token, checks that its session is still active and
// returns the principal it represents.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(); err != nil {
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var claims AccessClaims
	claims, err = s.tokens.Parse(trimmed)
	if err != nil {
		return
	}

	var session Session
	session, err = s.sessions.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}
	if session.UserID != claims.Subject {
		err = ErrUnauthorized
		return
	}
	if err = s.checkActive(session); err != nil {
		return
	}

	var user User
	user, err = s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{UserID: user.ID, SessionID: session.ID, Email: user.Email}
	return
}

// CurrentUser returns the account behind principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if !principal.Authenticated() {
		return User{}, ErrAuthenticationRequired
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		s.loggerWith(ctx, "CurrentUser", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to load user", "error", err, "error_kind", ErrorKind(err))
		return User{}, err
	}
	return user, nil
}

func (s *AuthService) checkActive(session Session) error {
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		return ErrSessionExpired
	}
	return nil
}
