package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/genmode/internal/apiclient"
	"github.com/example/genmode/internal/cache"
	"github.com/example/genmode/internal/config"
	"github.com/example/genmode/internal/identity"
)

type cannedOracle struct {
	output string
	err    error
}

func (o cannedOracle) Complete(ctx context.Context, system, user string) (string, error) {
	return o.output, o.err
}

// sharedCache survives the Close every command issues, standing in for the cache file.
type sharedCache struct {
	*cache.MemoryStore
}

func (sharedCache) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.SessionSecret = "test-secret"
	cfg.OpenRouterAPIKey = "test-key"
	cfg.StatsTimezone = "UTC"
	cfg.ProfileWait = 0
	cfg.LogLevel = "error"
	return cfg
}

func newTestServer(t *testing.T, oracle cannedOracle) *httptest.Server {
	t.Helper()
	cfg := testConfig()
	b, err := openBackend(context.Background(), cfg, driverMemory, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	handler, err := newHandler(cfg, b, oracle, discardLogger(), time.Now)
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

type cliHarness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	store  *cache.MemoryStore
}

func newCLI(t *testing.T, apiURL string) *cliHarness {
	t.Helper()
	h := &cliHarness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		store:  cache.NewMemoryStore(),
	}
	h.app = newApp(strings.NewReader(""), h.stdout, h.stderr)
	h.app.loadConfig = func() (config.Config, error) {
		cfg := testConfig()
		cfg.APIURL = apiURL
		return cfg, nil
	}
	h.app.openCache = func(context.Context, string) (cache.Store, error) {
		return sharedCache{h.store}, nil
	}
	return h
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.stdout.Reset()
	h.stderr.Reset()
	cmd := newRootCommand(h.app)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return h.stdout.String(), err
}

func TestClientCommandsEndToEnd(t *testing.T) {
	server := newTestServer(t, cannedOracle{output: "**gg ez**"})
	cli := newCLI(t, server.URL)

	out, err := cli.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)

	out, err = cli.run("signup", "--email", "sam@example.com", "--password", "secret-pass", "--name", "Sam")
	require.NoError(t, err)
	assert.Equal(t, "Signed up as Sam <sam@example.com>\n", out)

	out, err = cli.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Sam <sam@example.com>")

	out, err = cli.run("personas")
	require.NoError(t, err)
	assert.Contains(t, out, "gamer")

	out, err = cli.run("translate", "--persona", "gamer", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "gg ez\n", out)
	assert.Empty(t, cli.stderr.String())

	out, err = cli.run("history")
	require.NoError(t, err)
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "gg ez")

	out, err = cli.run("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total translations: 1")
	assert.Contains(t, out, "Streak: 1 day(s)")

	out, err = cli.run("dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Hey Sam!")
	assert.Contains(t, out, "Personas tried: 1")
	assert.Contains(t, out, "gg ez")

	out, err = cli.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out.\n", out)

	out, err = cli.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)

	_, err = cli.run("history")
	require.ErrorIs(t, err, errNotSignedIn)

	out, err = cli.run("login", "--email", "sam@example.com", "--password", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as Sam <sam@example.com>\n", out)
}

func TestTranslateAnonymouslyFromStdin(t *testing.T) {
	server := newTestServer(t, cannedOracle{output: "no cap"})
	cli := newCLI(t, server.URL)
	cli.app.stdin = strings.NewReader("read me from stdin\n")

	out, err := cli.run("translate", "--mode", "direct")
	require.NoError(t, err)
	assert.Equal(t, "no cap\n", out)
}

func TestTranslateFailureReportsMessage(t *testing.T) {
	server := newTestServer(t, cannedOracle{err: errors.New("upstream 500")})
	cli := newCLI(t, server.URL)

	_, err := cli.run("translate", "--persona", "gamer", "hello")
	require.Error(t, err)
	assert.Equal(t, "Failed to translate text. Please try again.", userMessage(err))
}

func TestLoginWithWrongPassword(t *testing.T) {
	server := newTestServer(t, cannedOracle{output: "ok"})
	cli := newCLI(t, server.URL)

	_, err := cli.run("signup", "--email", "ari@example.com", "--password", "secret-pass")
	require.NoError(t, err)
	_, err = cli.run("logout")
	require.NoError(t, err)

	_, err = cli.run("login", "--email", "ari@example.com", "--password", "wrong-pass")
	require.Error(t, err)

	out, err := cli.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	_, err := openBackend(ctx, testConfig(), "oracle-db", discardLogger())
	require.Error(t, err)

	cfg := testConfig()
	cfg.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "genmode.db")
	b, err := openBackend(ctx, cfg, "", discardLogger())
	require.NoError(t, err)
	require.NotNil(t, b.health)
	require.NoError(t, b.health(ctx))
	require.NoError(t, b.Close())

	// Migrations are idempotent.
	b, err = openBackend(ctx, cfg, config.DriverSQLite, discardLogger())
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestMigrateCommand(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "genmode.db")
	stdout := &bytes.Buffer{}
	a := newApp(strings.NewReader(""), stdout, io.Discard)
	a.loadConfig = func() (config.Config, error) {
		cfg := testConfig()
		cfg.DatabaseDSN = dsn
		cfg.LogLevel = "info"
		return cfg, nil
	}

	cmd := newRootCommand(a)
	cmd.SetArgs([]string{"migrate"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, stdout.String(), "migrations applied")
}

func TestServeRequiresSecrets(t *testing.T) {
	a := newApp(strings.NewReader(""), io.Discard, io.Discard)
	a.loadConfig = func() (config.Config, error) {
		return config.Defaults(), nil
	}

	cmd := newRootCommand(a)
	cmd.SetArgs([]string{"serve", "--db", "memory"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENMODE_SESSION_SECRET")
}

func TestDefaultOracle(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	oracle, err := defaultOracle(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, oracle)

	cfg.OpenRouterAPIKey = ""
	_, err = defaultOracle(ctx, cfg)
	assert.Error(t, err)

	cfg.OracleProvider = config.ProviderGemini
	_, err = defaultOracle(ctx, cfg)
	assert.Error(t, err)

	cfg.OracleProvider = "carrier-pigeon"
	_, err = defaultOracle(ctx, cfg)
	assert.Error(t, err)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "api error",
			err:  &apiclient.Error{Status: 502, Message: "Failed to translate text. Please try again."},
			want: "Failed to translate text. Please try again.",
		},
		{
			name: "api validation error",
			err: &apiclient.Error{Status: 422, Message: "Validation failed.", Fields: map[string]string{
				"text":    "Please enter some text to translate.",
				"persona": "Please select a role first.",
			}},
			want: "Validation failed. (persona: Please select a role first.; text: Please enter some text to translate.)",
		},
		{
			name: "provider error",
			err:  &identity.Error{Op: "token", Status: 503},
			want: "Could not reach the sign-in service. Please try again.",
		},
		{
			name: "not signed in",
			err:  errNotSignedIn,
			want: "You are not signed in. Run `genmode login` first.",
		},
		{
			name: "plain",
			err:  errors.New("read stdin: broken pipe"),
			want: "read stdin: broken pipe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine(" a\n b\tc "))
	long := strings.Repeat("x", 80)
	assert.Equal(t, strings.Repeat("x", 57)+"...", oneLine(long))
}
