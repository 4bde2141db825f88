package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/persistence/appstore"
	"github.com/example/genmode/internal/persistence/memory"
)

// TokenSecret signs the access tokens issued by factory-built auth services.
const TokenSecret = "test-secret"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// MemoryStores bundles the application store adapters over one in-memory storage.
type MemoryStores struct {
	Storage      *memory.Storage
	Users        *appstore.UserStore
	Sessions     *appstore.SessionStore
	Profiles     *appstore.ProfileStore
	Translations *appstore.TranslationStore
}

// NewMemoryStores returns empty stores whose timestamps follow the factory clock.
func (f *ServiceFactory) NewMemoryStores() MemoryStores {
	storage := memory.New(
		memory.WithClock(f.Clock.NowFunc()),
		memory.WithIDGenerator(f.IDGenerator.NextFunc()),
	)
	return MemoryStores{
		Storage:      storage,
		Users:        appstore.NewUserStore(storage),
		Sessions:     appstore.NewSessionStore(storage),
		Profiles:     appstore.NewProfileStore(storage),
		Translations: appstore.NewTranslationStore(storage),
	}
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Users       application.UserStore
	Sessions    application.SessionRepository
	Profiles    application.ProfileStore
	Tokens      *application.TokenSigner
	IDGenerator func() string
	Now         func() time.Time
	SessionTTL  time.Duration
	Logger      *slog.Logger
	// FastHashing swaps Argon2id for a trivial reversible hash.
	FastHashing bool
}

// NewAuthService builds an auth service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = f.NewTokenSigner(0)
	}
	svc := application.NewAuthServiceWithLogger(
		deps.Users,
		deps.Sessions,
		deps.Profiles,
		tokens,
		idGen,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
	if deps.FastHashing {
		svc.WithPasswordHashing(PlainHasher, PlainVerifier)
	}
	return svc
}

// NewTokenSigner returns a signer keyed by TokenSecret on the factory clock.
func (f *ServiceFactory) NewTokenSigner(ttl time.Duration) *application.TokenSigner {
	signer, err := application.NewTokenSigner([]byte(TokenSecret), ttl, f.Clock.NowFunc())
	if err != nil {
		panic(err)
	}
	return signer
}

// PlainHasher prefixes the password instead of hashing it.
func PlainHasher(password string) (string, error) {
	return "plain:" + password, nil
}

// PlainVerifier accepts passwords stored by PlainHasher.
func PlainVerifier(hash, password string) error {
	if hash != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}

// HistoryServiceDeps captures dependencies for constructing the history, stats and
// dashboard services.
type HistoryServiceDeps struct {
	Translations application.TranslationStore
	Location     *time.Location
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewHistoryService builds a history service.
func (f *ServiceFactory) NewHistoryService(deps HistoryServiceDeps) *application.HistoryService {
	return application.NewHistoryServiceWithLogger(deps.Translations, deps.Logger)
}

// NewStatsService builds a stats service over a fresh history service. The location
// defaults to UTC.
func (f *ServiceFactory) NewStatsService(deps HistoryServiceDeps) *application.StatsService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return application.NewStatsServiceWithLogger(f.NewHistoryService(deps), loc, now, deps.Logger)
}

// NewDashboardService builds a dashboard service over fresh history and stats services.
func (f *ServiceFactory) NewDashboardService(deps HistoryServiceDeps) *application.DashboardService {
	return application.NewDashboardServiceWithLogger(f.NewHistoryService(deps), f.NewStatsService(deps), deps.Logger)
}

// TranslationServiceDeps captures dependencies for constructing a translation service.
type TranslationServiceDeps struct {
	Transformer  application.Transformer
	Translations application.TranslationStore
	Logger       *slog.Logger
}

// NewTranslationService builds a translation service. A nil store disables saving.
func (f *ServiceFactory) NewTranslationService(deps TranslationServiceDeps) *application.TranslationService {
	var history *application.HistoryService
	if deps.Translations != nil {
		history = f.NewHistoryService(HistoryServiceDeps{Translations: deps.Translations, Logger: deps.Logger})
	}
	return application.NewTranslationServiceWithLogger(deps.Transformer, history, deps.Logger)
}
