package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/genmode/internal/apiclient"
	"github.com/example/genmode/internal/cache"
	"github.com/example/genmode/internal/config"
	"github.com/example/genmode/internal/identity"
	"github.com/example/genmode/internal/logging"
	"github.com/example/genmode/internal/transform"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand(newApp(os.Stdin, os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "genmode:", userMessage(err))
		os.Exit(1)
	}
}

// app carries the process-wide dependencies shared by every command. Tests replace the
// function fields.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	loadConfig func() (config.Config, error)
	openCache  func(ctx context.Context, location string) (cache.Store, error)
	newOracle  func(ctx context.Context, cfg config.Config) (transform.Oracle, error)
	httpClient *http.Client

	verbose bool
	cfg     config.Config
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Load,
		openCache:  cache.Open,
		newOracle:  defaultOracle,
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "genmode",
		Short:         "Translate text into Gen-Z personas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log client diagnostics to stderr")

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newSignUpCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoAmICommand(a),
		newPersonasCommand(a),
		newTranslateCommand(a),
		newHistoryCommand(a),
		newStatsCommand(a),
		newDashboardCommand(a),
	)
	return root
}

// serverLogger follows the configured format; serve and migrate log to stdout.
func (a *app) serverLogger() *slog.Logger {
	return logging.New(a.stdout, a.cfg.LogFormat, a.cfg.LogLevel)
}

// clientLogger keeps client commands quiet unless --verbose is set.
func (a *app) clientLogger() *slog.Logger {
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	return logging.New(a.stderr, "text", level)
}

var errNotSignedIn = errors.New("not signed in")

// userMessage turns a command error into the line printed for the user.
func userMessage(err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		if len(apiErr.Fields) == 0 {
			return apiErr.Message
		}
		keys := make([]string, 0, len(apiErr.Fields))
		for k := range apiErr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+apiErr.Fields[k])
		}
		return apiErr.Message + " (" + strings.Join(parts, "; ") + ")"
	}
	var idErr *identity.Error
	if errors.As(err, &idErr) {
		return idErr.UserMessage()
	}
	if errors.Is(err, errNotSignedIn) || errors.Is(err, identity.ErrNoSession) {
		return "You are not signed in. Run `genmode login` first."
	}
	return err.Error()
}
