// Package session keeps the signed-in identity of a client in step with the identity
// provider and the durable local cache.
//
// A Reconciler is seeded from the cache when constructed, confirmed against the provider by
// Start and then follows the provider's event stream until Close. The in-memory identity and
// the cache are updated together on every transition.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/genmode/internal/apiclient"
	"github.com/example/genmode/internal/cache"
	"github.com/example/genmode/internal/identity"
	"github.com/example/genmode/internal/logging"
)

// Cache slots owned by the reconciler. They are written and cleared together.
const (
	UserDataKey         = "genmode-user-data"
	SessionTimestampKey = "genmode-session-timestamp"
	SessionDataKey      = "genmode-session-data"
)

// DefaultDisplayName is used when neither a profile name nor an e-mail is available.
const DefaultDisplayName = "User"

var cacheKeys = []string{UserDataKey, SessionTimestampKey, SessionDataKey}

var (
	// ErrUnresolved is returned by SignIn and SignUp when the provider accepted the
	// credentials but the user's profile could not be loaded.
	ErrUnresolved = errors.New("session: identity could not be resolved")
	// ErrUserCreationFailed is returned when sign-up answers without a user.
	ErrUserCreationFailed = errors.New("session: user creation failed")
)

// State is the reconciler's lifecycle position.
type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Identity is the signed-in user as shown to the rest of the client.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// Provider is the identity provider surface the reconciler consumes.
type Provider interface {
	GetSession(ctx context.Context) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*identity.Session, error)
	SignOut(ctx context.Context) error
	Subscribe() (<-chan identity.Event, func())
	// LastEventSeq reports the Seq of the most recent event emitted.
	LastEventSeq() uint64
}

// Profiles reads and creates profile records.
type Profiles interface {
	GetProfile(ctx context.Context, id string) (*apiclient.Profile, error)
	CreateProfile(ctx context.Context, id, name string) (*apiclient.Profile, error)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the source of session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the fallback logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProfileWait sets how long SignUp waits for the server to create the profile before
// checking for it.
func WithProfileWait(d time.Duration) Option {
	return func(r *Reconciler) {
		if d >= 0 {
			r.profileWait = d
		}
	}
}

// Reconciler owns the client's notion of the current user.
type Reconciler struct {
	provider    Provider
	profiles    Profiles
	store       cache.Store
	now         func() time.Time
	logger      *slog.Logger
	profileWait time.Duration

	// op serialises transitions: Start's check, SignIn, SignUp, SignOut and each provider
	// event run one at a time, including their I/O.
	op sync.Mutex

	// mu guards the fields below and is never held across provider, profile or cache calls.
	mu       sync.Mutex
	state    State
	identity *Identity
	started  bool
	closed   bool
	cancel   context.CancelFunc
	unsub    func()
	done     chan struct{}
	// seenSeq is the provider's event Seq as of the reconciler's latest provider call. Events
	// at or below it are already reflected in the state.
	seenSeq uint64

	closeOnce sync.Once
}

// New builds a Reconciler and seeds it from the cache. A cached identity is provisional
// until Start confirms it.
func New(ctx context.Context, provider Provider, profiles Profiles, store cache.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:    provider,
		profiles:    profiles,
		store:       store,
		now:         time.Now,
		logger:      slog.Default(),
		profileWait: time.Second,
		state:       Uninitialized,
	}
	for _, opt := range opts {
		opt(r)
	}

	if cached, ok := r.readCachedIdentity(ctx); ok {
		r.identity = &cached
	}
	return r
}

func (r *Reconciler) log(ctx context.Context, operation string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = r.logger
	}
	return logger.With("component", "session", "operation", operation)
}

// State reports the current lifecycle position.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Identity returns the current identity. Before Start completes it may be the provisional
// copy read from the cache.
func (r *Reconciler) Identity() (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identity == nil {
		return Identity{}, false
	}
	return *r.identity, true
}

// Start subscribes to provider events and runs the authoritative session check. Only the
// first call has an effect. Events are handled on a background goroutine until Close.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.state = Loading
	events, unsub := r.provider.Subscribe()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.unsub = unsub
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.consume(loopCtx, events, done)

	r.op.Lock()
	defer r.op.Unlock()
	session, err := r.provider.GetSession(ctx)
	r.markSeen()
	switch {
	case err != nil:
		r.log(ctx, "Start").WarnContext(ctx, "session check failed", "error", err)
		r.settleAnonymous(ctx)
	case session == nil || session.User.ID == "":
		r.settleAnonymous(ctx)
	default:
		_ = r.resolve(ctx, session)
	}
}

func (r *Reconciler) consume(ctx context.Context, events <-chan identity.Event, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, ev identity.Event) {
	r.op.Lock()
	defer r.op.Unlock()

	logger := r.log(ctx, "handle")
	if !r.observe(ev.Seq) {
		logger.DebugContext(ctx, "skipping superseded provider event", "event", string(ev.Type), "seq", ev.Seq)
		return
	}
	if ev.Type == identity.EventSignedOut {
		logger.DebugContext(ctx, "provider signed out")
		r.settleAnonymous(ctx)
		return
	}
	if ev.Session == nil || ev.Session.User.ID == "" {
		return
	}
	logger.DebugContext(ctx, "provider session changed", "event", string(ev.Type), "user_id", ev.Session.User.ID)
	_ = r.resolve(ctx, ev.Session)
}

// SignIn authenticates with the provider and resolves the identity. Errors leave the
// reconciler Anonymous.
func (r *Reconciler) SignIn(ctx context.Context, email, password string) error {
	r.op.Lock()
	defer r.op.Unlock()
	r.setLoading()

	session, err := r.provider.SignInWithPassword(ctx, email, password)
	r.markSeen()
	if err != nil {
		r.settleAnonymous(ctx)
		return err
	}
	if session == nil || session.User.ID == "" {
		r.settleAnonymous(ctx)
		return ErrUnresolved
	}
	return r.resolve(ctx, session)
}

// SignUp registers with the provider, makes sure a profile named name exists and resolves
// the identity. Errors leave the reconciler Anonymous.
func (r *Reconciler) SignUp(ctx context.Context, email, password, name string) error {
	r.op.Lock()
	defer r.op.Unlock()
	r.setLoading()

	session, err := r.provider.SignUp(ctx, email, password, map[string]string{"name": name})
	r.markSeen()
	if err != nil {
		r.settleAnonymous(ctx)
		return err
	}
	if session == nil || session.User.ID == "" {
		r.settleAnonymous(ctx)
		return ErrUserCreationFailed
	}

	if r.profileWait > 0 {
		timer := time.NewTimer(r.profileWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.settleAnonymous(ctx)
			return ctx.Err()
		case <-timer.C:
		}
	}
	r.ensureProfile(ctx, session.User.ID, name)

	return r.resolve(ctx, session)
}

func (r *Reconciler) ensureProfile(ctx context.Context, userID, name string) {
	if _, err := r.profiles.GetProfile(ctx, userID); err == nil {
		return
	} else if !errors.Is(err, apiclient.ErrNotFound) {
		r.log(ctx, "SignUp").WarnContext(ctx, "profile lookup failed, creating it", "error", err)
	}
	if _, err := r.profiles.CreateProfile(ctx, userID, name); err != nil {
		r.log(ctx, "SignUp").ErrorContext(ctx, "failed to create profile", "user_id", userID, "error", err)
	}
}

// SignOut ends the provider session and forgets the identity. When the provider call fails
// the identity is kept and the error returned; any sign-out the provider announced anyway
// still arrives as an event.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.op.Lock()
	defer r.op.Unlock()
	if err := r.provider.SignOut(ctx); err != nil {
		return err
	}
	r.markSeen()
	r.settleAnonymous(ctx)
	return nil
}

// Close releases the provider subscription and stops the event goroutine. It is safe to
// call more than once.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		cancel, unsub, done := r.cancel, r.unsub, r.done
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if unsub != nil {
			unsub()
		}
		if done != nil {
			<-done
		}
	})
}

// markSeen records that every event emitted so far is superseded by the provider call that
// just returned.
func (r *Reconciler) markSeen() {
	seq := r.provider.LastEventSeq()
	r.mu.Lock()
	if seq > r.seenSeq {
		r.seenSeq = seq
	}
	r.mu.Unlock()
}

// observe reports whether an event with seq still needs handling and records it. Events
// without a Seq are always handled.
func (r *Reconciler) observe(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq == 0 {
		return true
	}
	if seq <= r.seenSeq {
		return false
	}
	r.seenSeq = seq
	return true
}

func (r *Reconciler) setLoading() {
	r.mu.Lock()
	r.state = Loading
	r.mu.Unlock()
}

// resolve turns a provider session into an identity, reusing the cached identity when it
// belongs to the same user and otherwise reading the profile.
func (r *Reconciler) resolve(ctx context.Context, session *identity.Session) error {
	logger := r.log(ctx, "resolve").With("user_id", session.User.ID)

	cached, ok := r.readCachedIdentity(ctx)
	var resolved Identity
	if ok && cached.ID == session.User.ID {
		resolved = cached
	} else {
		profile, err := r.profiles.GetProfile(ctx, session.User.ID)
		if err != nil {
			if ctx.Err() != nil {
				logger.DebugContext(ctx, "profile lookup abandoned", "error", err)
			} else {
				logger.ErrorContext(ctx, "failed to load profile", "error", err)
			}
			r.settleAnonymous(ctx)
			return errors.Join(ErrUnresolved, err)
		}
		resolved = Identity{
			ID:          session.User.ID,
			Email:       session.User.Email,
			DisplayName: displayName(profile.Name, session.User.Email),
		}
	}

	// Memory and cache change together, so the write outlives a cancelled caller.
	if err := r.writeCache(context.WithoutCancel(ctx), resolved, session); err != nil {
		logger.WarnContext(ctx, "failed to persist identity", "error", err)
	}

	r.mu.Lock()
	r.state = Authenticated
	r.identity = &resolved
	r.mu.Unlock()
	return nil
}

// settleAnonymous clears the cache and the in-memory identity. The clear ignores ctx
// cancellation so the cache never outlives the identity it describes.
func (r *Reconciler) settleAnonymous(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.Delete(ctx, cacheKeys...); err != nil {
		r.log(ctx, "settleAnonymous").WarnContext(ctx, "failed to clear cached identity", "error", err)
	}
	r.mu.Lock()
	r.state = Anonymous
	r.identity = nil
	r.mu.Unlock()
}

func (r *Reconciler) readCachedIdentity(ctx context.Context) (Identity, bool) {
	raw, ok, err := r.store.Get(ctx, UserDataKey)
	if err != nil {
		r.log(ctx, "readCachedIdentity").WarnContext(ctx, "failed to read cached identity", "error", err)
		return Identity{}, false
	}
	if !ok || raw == "" {
		return Identity{}, false
	}
	var cached Identity
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || cached.ID == "" {
		return Identity{}, false
	}
	return cached, true
}

func (r *Reconciler) writeCache(ctx context.Context, id Identity, session *identity.Session) error {
	user, err := json.Marshal(id)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.store.SetMany(ctx, map[string]string{
		UserDataKey:         string(user),
		SessionTimestampKey: r.now().UTC().Format(time.RFC3339Nano),
		SessionDataKey:      string(blob),
	})
}

// displayName applies the fallback chain profile name, e-mail local part, DefaultDisplayName.
func displayName(profileName, email string) string {
	if name := strings.TrimSpace(profileName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(email, "@"); local != "" {
		return local
	}
	return DefaultDisplayName
}
