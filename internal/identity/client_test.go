package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/genmode/internal/cache"
)

var baseTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	refreshes int
	logouts   int
	rejectRef bool
	failRef   bool
	expiresAt time.Time
	user      map[string]any
}

func (p *fakeProvider) update(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakeProvider) counts() (refreshes, logouts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes, p.logouts
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeSession := func(w http.ResponseWriter, access, refresh string) {
		p.mu.Lock()
		expires := p.expiresAt
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"token_type":    "bearer",
			"expires_at":    expires.Format(time.RFC3339),
			"refresh_token": refresh,
			"user":          map[string]any{"id": "user-1", "email": "sam@example.com", "user_metadata": map[string]string{"name": "Sam"}},
		})
	}
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error_code":"AUTH_INVALID_CREDENTIALS","message":"Invalid email or password."}`)
			return
		}
		writeSession(w, "access-1", "refresh-1")
	})
	mux.HandleFunc("/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Sam", body.Data["name"])
		w.WriteHeader(http.StatusCreated)
		writeSession(w, "access-1", "refresh-1")
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.refreshes++
		reject, fail := p.rejectRef, p.failRef
		p.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error_code":"AUTH_SESSION_EXPIRED","message":"Your session has ended. Please sign in again."}`)
			return
		}
		writeSession(w, "access-2", "refresh-2")
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.logouts++
		p.mu.Unlock()
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/user", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		user := p.user
		p.mu.Unlock()
		_ = json.NewEncoder(w).Encode(user)
	})
	return mux
}

type clientFixture struct {
	provider *fakeProvider
	store    *cache.MemoryStore
	now      time.Time
	client   *Client
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()

	f := &clientFixture{
		provider: &fakeProvider{expiresAt: baseTime.Add(time.Hour)},
		store:    cache.NewMemoryStore(),
		now:      baseTime,
	}
	server := httptest.NewServer(f.provider.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Store:      f.store,
		HTTPClient: server.Client(),
		Now:        func() time.Time { return f.now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.client = client
	return f
}

func drain(ch <-chan Event) []EventType {
	var types []EventType
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return types
			}
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Store: cache.NewMemoryStore()})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
}

func TestSignInPersistsAndAnnounces(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()

	session, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, "Sam", session.User.Metadata["name"])
	assert.Equal(t, []EventType{EventSignedIn}, drain(events))

	assert.Contains(t, f.store.Snapshot(), SessionKey)

	// A fresh client over the same cache picks the session up.
	reopened, err := NewClient(Config{BaseURL: f.client.baseURL, Store: f.store, HTTPClient: f.client.httpClient, Now: func() time.Time { return f.now }})
	require.NoError(t, err)
	reEvents, reUnsub := reopened.Subscribe()
	defer reUnsub()

	got, err := reopened.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, []EventType{EventInitialSession}, drain(reEvents))

	_, err = reopened.GetSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, drain(reEvents), "INITIAL_SESSION is announced once")
}

func TestSignInRejected(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)

	_, err := f.client.SignInWithPassword(context.Background(), "sam@example.com", "wrong")
	var idErr *Error
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, http.StatusUnauthorized, idErr.Status)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", idErr.Code)
	assert.Equal(t, "Invalid email or password.", idErr.UserMessage())
	assert.Empty(t, f.store.Snapshot())
}

func TestSignUpSendsMetadata(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)

	session, err := f.client.SignUp(context.Background(), "sam@example.com", "secret1", map[string]string{"name": "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", session.RefreshToken)
}

func TestGetSessionWithoutUser(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)

	session, err := f.client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = f.client.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestGetSessionRefreshesExpiredToken(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	_, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)

	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()

	f.now = baseTime.Add(59*time.Minute + 45*time.Second)
	f.provider.update(func(p *fakeProvider) { p.expiresAt = baseTime.Add(2 * time.Hour) })

	token, err := f.client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	refreshes, _ := f.provider.counts()
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, []EventType{EventTokenRefreshed}, drain(events))
}

func TestGetSessionRefreshRejectedSignsOut(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	_, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)

	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()

	f.now = baseTime.Add(2 * time.Hour)
	f.provider.update(func(p *fakeProvider) { p.rejectRef = true })

	session, err := f.client.GetSession(ctx)
	require.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, []EventType{EventSignedOut}, drain(events))
	assert.NotContains(t, f.store.Snapshot(), SessionKey)
}

// reopenExpired persists a signed-in session, then returns a fresh client over the same
// cache at a time when that session needs a refresh.
func reopenExpired(t *testing.T, f *clientFixture) *Client {
	t.Helper()
	_, err := f.client.SignInWithPassword(context.Background(), "sam@example.com", "secret1")
	require.NoError(t, err)

	f.now = baseTime.Add(2 * time.Hour)
	reopened, err := NewClient(Config{
		BaseURL:    f.client.baseURL,
		Store:      f.store,
		HTTPClient: f.client.httpClient,
		Now:        func() time.Time { return f.now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return reopened
}

func TestInitialSessionFollowsFailedRefresh(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	reopened := reopenExpired(t, f)
	f.provider.update(func(p *fakeProvider) { p.failRef = true })

	events, unsubscribe := reopened.Subscribe()
	defer unsubscribe()

	session, err := reopened.GetSession(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)

	select {
	case ev := <-events:
		assert.Equal(t, EventInitialSession, ev.Type)
		assert.Nil(t, ev.Session, "a session that could not be refreshed is not announced")
		assert.Equal(t, reopened.LastEventSeq(), ev.Seq)
	default:
		t.Fatal("expected INITIAL_SESSION")
	}
	assert.Empty(t, drain(events))
	// A transient failure keeps the persisted session for the next attempt.
	assert.Contains(t, f.store.Snapshot(), SessionKey)
}

func TestInitialSessionCarriesRefreshedSession(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	reopened := reopenExpired(t, f)
	f.provider.update(func(p *fakeProvider) { p.expiresAt = baseTime.Add(3 * time.Hour) })

	events, unsubscribe := reopened.Subscribe()
	defer unsubscribe()

	session, err := reopened.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)

	select {
	case ev := <-events:
		assert.Equal(t, EventInitialSession, ev.Type)
		require.NotNil(t, ev.Session)
		assert.Equal(t, "access-2", ev.Session.AccessToken)
	default:
		t.Fatal("expected INITIAL_SESSION")
	}
	assert.Empty(t, drain(events), "the refresh is folded into INITIAL_SESSION")
}

func TestEventSeqIncreases(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()
	assert.Zero(t, f.client.LastEventSeq())

	_, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.client.SignOut(ctx))

	first, second := <-events, <-events
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(2), f.client.LastEventSeq())
}

func TestSignOutClearsLocalSession(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	_, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)

	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.client.SignOut(ctx))
	_, logouts := f.provider.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, []EventType{EventSignedOut}, drain(events))

	session, err := f.client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestUserAnnouncesUpdates(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)
	ctx := context.Background()

	_, err := f.client.SignInWithPassword(ctx, "sam@example.com", "secret1")
	require.NoError(t, err)
	events, unsubscribe := f.client.Subscribe()
	defer unsubscribe()

	f.provider.update(func(p *fakeProvider) {
		p.user = map[string]any{"id": "user-1", "email": "sam@example.com", "user_metadata": map[string]string{"name": "Sam"}}
	})
	_, err = f.client.User(ctx)
	require.NoError(t, err)
	assert.Empty(t, drain(events))

	f.provider.update(func(p *fakeProvider) {
		p.user = map[string]any{"id": "user-1", "email": "sam@example.com", "user_metadata": map[string]string{"name": "Samantha"}}
	})
	user, err := f.client.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", user.Metadata["name"])
	assert.Equal(t, []EventType{EventUserUpdated}, drain(events))
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	t.Parallel()
	f := newClientFixture(t)

	events, unsubscribe := f.client.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	// Emitting after unsubscribe must not panic on the closed channel.
	f.client.emit(context.Background(), EventSignedOut, nil)
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Store: cache.NewMemoryStore(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	_, err = client.SignInWithPassword(context.Background(), "sam@example.com", "secret1")
	var idErr *Error
	require.ErrorAs(t, err, &idErr)
	assert.NotNil(t, errors.Unwrap(idErr))
	assert.Equal(t, "Could not reach the sign-in service. Please try again.", idErr.UserMessage())
}
