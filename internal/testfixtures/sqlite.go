package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/genmode/internal/persistence"
	"github.com/example/genmode/internal/persistence/sqlstore"
)

// SQLiteHarness provides repository access backed by a temporary SQLite database
// for integration-style persistence tests.
type SQLiteHarness struct {
	Pool         *sqlstore.ConnectionPool
	Users        persistence.UserRepository
	Profiles     persistence.ProfileRepository
	Sessions     persistence.SessionRepository
	Translations persistence.TranslationRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(tb.TempDir(), "genmode.db")

	pool, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, dsn)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Users:        sqlstore.NewUserRepository(pool),
		Profiles:     sqlstore.NewProfileRepository(pool),
		Sessions:     sqlstore.NewSessionRepository(pool),
		Translations: sqlstore.NewTranslationRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
