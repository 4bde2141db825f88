package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/config"
	httptransport "github.com/example/genmode/internal/http"
	"github.com/example/genmode/internal/persistence"
	"github.com/example/genmode/internal/persistence/appstore"
	"github.com/example/genmode/internal/persistence/memory"
	"github.com/example/genmode/internal/persistence/sqlstore"
	"github.com/example/genmode/internal/transform"
)

const driverMemory = "memory"

func newServeCommand(a *app) *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identity provider and data API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), driver)
		},
	}
	cmd.Flags().StringVar(&driver, "db", "", "storage driver override: sqlite, postgres or memory")
	return cmd
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.serverLogger()
			b, err := openBackend(cmd.Context(), a.cfg, "", logger)
			if err != nil {
				return err
			}
			if err := b.Close(); err != nil {
				logger.Error("failed to close storage", "error", err)
			}
			logger.Info("migrations applied", "driver", a.cfg.DatabaseDriver)
			return nil
		},
	}
}

func (a *app) serve(ctx context.Context, driver string) error {
	cfg := a.cfg
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	logger := a.serverLogger()

	b, err := openBackend(ctx, cfg, driver, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	oracle, err := a.newOracle(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configure oracle: %w", err)
	}

	handler, err := newHandler(cfg, b, oracle, logger, time.Now)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Transformations wait on the oracle.
		WriteTimeout: cfg.OracleTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("genmode API listening", "addr", server.Addr, "oracle", cfg.OracleProvider)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	<-shutdownDone
	return nil
}

// backend is the set of repositories the API runs on.
type backend struct {
	Users        persistence.UserRepository
	Profiles     persistence.ProfileRepository
	Sessions     persistence.SessionRepository
	Translations persistence.TranslationRepository

	health func(ctx context.Context) error
	close  func() error
}

func (b *backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend connects the configured driver, or the override when set, and applies the
// schema migrations. The memory driver keeps everything in process.
func openBackend(ctx context.Context, cfg config.Config, driver string, logger *slog.Logger) (*backend, error) {
	if driver == "" {
		driver = cfg.DatabaseDriver
	}
	switch strings.ToLower(driver) {
	case driverMemory:
		storage := memory.New()
		return &backend{
			Users:        storage,
			Profiles:     storage,
			Sessions:     storage,
			Translations: storage,
			close:        storage.Close,
		}, nil
	case config.DriverSQLite, config.DriverPostgres:
		pool, err := sqlstore.Open(ctx, sqlstore.Dialect(strings.ToLower(driver)), cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if err := pool.Migrate(ctx, logger); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return &backend{
			Users:        sqlstore.NewUserRepository(pool),
			Profiles:     sqlstore.NewProfileRepository(pool),
			Sessions:     sqlstore.NewSessionRepository(pool),
			Translations: sqlstore.NewTranslationRepository(pool),
			health:       pool.Ping,
			close:        pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// defaultOracle builds the oracle named by cfg.OracleProvider.
func defaultOracle(ctx context.Context, cfg config.Config) (transform.Oracle, error) {
	switch cfg.OracleProvider {
	case config.ProviderGemini:
		oracle, err := transform.NewGeminiOracle(ctx, transform.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, err
		}
		return oracle, nil
	case config.ProviderOpenRouter, "":
		oracle, err := transform.NewOpenRouterOracle(transform.OpenRouterConfig{
			APIKey:   cfg.OpenRouterAPIKey,
			BaseURL:  cfg.OpenRouterBaseURL,
			Model:    cfg.OpenRouterModel,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  cfg.OracleTimeout,
		})
		if err != nil {
			return nil, err
		}
		return oracle, nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider %q", cfg.OracleProvider)
	}
}

// newHandler wires the application services over b and returns the API router.
func newHandler(cfg config.Config, b *backend, oracle transform.Oracle, logger *slog.Logger, now func() time.Time) (http.Handler, error) {
	signer, err := application.NewTokenSigner([]byte(cfg.SessionSecret), cfg.AccessTokenTTL, now)
	if err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("stats timezone: %w", err)
	}

	users := appstore.NewUserStore(b.Users)
	sessions := appstore.NewSessionStore(b.Sessions)
	profiles := appstore.NewProfileStore(b.Profiles)
	translations := appstore.NewTranslationStore(b.Translations)

	authService := application.NewAuthServiceWithLogger(users, sessions, profiles, signer, uuid.NewString, now, cfg.RefreshTokenTTL, logger)
	profileService := application.NewProfileServiceWithLogger(profiles, logger)
	historyService := application.NewHistoryServiceWithLogger(translations, logger)
	statsService := application.NewStatsServiceWithLogger(historyService, location, now, logger)
	dashboardService := application.NewDashboardServiceWithLogger(historyService, statsService, logger)
	translationService := application.NewTranslationServiceWithLogger(transform.NewClient(oracle, logger), historyService, logger)

	secureCookies := strings.HasPrefix(strings.ToLower(cfg.APIURL), "https://")

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, secureCookies, logger),
		Profiles:     httptransport.NewProfileHandler(profileService, logger),
		Translations: httptransport.NewTranslationHandler(translationService, historyService, logger),
		Stats:        httptransport.NewStatsHandler(statsService, dashboardService, logger),
		Health:       b.health,
		Sessions:     authService,
		Logger:       logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}), nil
}
