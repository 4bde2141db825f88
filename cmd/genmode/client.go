package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/genmode/internal/apiclient"
	"github.com/example/genmode/internal/cache"
	"github.com/example/genmode/internal/identity"
	"github.com/example/genmode/internal/persona"
	"github.com/example/genmode/internal/session"
	"github.com/example/genmode/internal/stats"
)

// clientSession is what a client command runs against: the provider, the data API and the
// reconciler that keeps the cached identity in step with both.
type clientSession struct {
	store      cache.Store
	provider   *identity.Client
	api        *apiclient.Client
	reconciler *session.Reconciler
}

func (a *app) openSession(ctx context.Context) (*clientSession, error) {
	logger := a.clientLogger()

	store, err := a.openCache(ctx, a.cfg.CacheURL)
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	provider, err := identity.NewClient(identity.Config{
		BaseURL:    a.cfg.APIURL,
		Store:      store,
		HTTPClient: a.httpClient,
		Logger:     logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	api, err := apiclient.New(a.cfg.APIURL, provider, a.httpClient)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reconciler := session.New(ctx, provider, api, store,
		session.WithLogger(logger),
		session.WithProfileWait(a.cfg.ProfileWait),
	)
	reconciler.Start(ctx)
	return &clientSession{store: store, provider: provider, api: api, reconciler: reconciler}, nil
}

func (s *clientSession) Close() error {
	s.reconciler.Close()
	return s.store.Close()
}

func (s *clientSession) requireUser() (session.Identity, error) {
	id, ok := s.reconciler.Identity()
	if !ok || s.reconciler.State() != session.Authenticated {
		return session.Identity{}, errNotSignedIn
	}
	return id, nil
}

// withSession opens a client session for the duration of fn.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *clientSession) error) error {
	ctx := cmd.Context()
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.clientLogger().Warn("failed to close session cache", "error", cerr)
		}
	}()
	return fn(ctx, s)
}

func newSignUpCommand(a *app) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				if err := s.reconciler.SignUp(ctx, email, password, name); err != nil {
					return err
				}
				id, err := s.requireUser()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s <%s>\n", id.DisplayName, id.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				if err := s.reconciler.SignIn(ctx, email, password); err != nil {
					return err
				}
				id, err := s.requireUser()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", id.DisplayName, id.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				if _, err := s.requireUser(); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				if err := s.reconciler.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newWhoAmICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				id, err := s.requireUser()
				if err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", id.DisplayName, id.Email, id.ID)
				return nil
			})
		},
	}
}

func newPersonasCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				list, err := s.api.Personas(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, p := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Label(), p.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newTranslateCommand(a *app) *cobra.Command {
	var (
		personaID string
		mode      string
		noSave    bool
	)
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text; reads stdin when no text is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				save := !noSave
				result, err := s.api.Transform(ctx, apiclient.TransformRequest{
					Text:    text,
					Mode:    mode,
					Persona: persona.ID(personaID),
					Save:    &save,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Output)
				if result.Warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), result.Warning)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "persona id as listed by the personas command")
	cmd.Flags().StringVar(&mode, "mode", "", "direct or full; defaults to full when a persona is given")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the translation in history")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your recent translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				if _, err := s.requireUser(); err != nil {
					return err
				}
				history, err := s.api.History(ctx)
				if err != nil {
					return err
				}
				if history.Warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), history.Warning)
				}
				list := history.Translations
				if limit > 0 && len(list) > limit {
					list = list[:limit]
				}
				printTranslations(cmd.OutOrStdout(), list, nil)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show, 0 for all")
	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				if _, err := s.requireUser(); err != nil {
					return err
				}
				result, err := s.api.Stats(ctx, tz)
				if err != nil {
					return err
				}
				if result.Warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), result.Warning)
				}
				printUsage(cmd.OutOrStdout(), result.Usage)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for calendar days, server default when empty")
	return cmd
}

func newDashboardCommand(a *app) *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show usage statistics and recent translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *clientSession) error {
				id, err := s.requireUser()
				if err != nil {
					return err
				}

				var (
					dashboard apiclient.Dashboard
					catalog   []persona.Persona
				)
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					var err error
					dashboard, err = s.api.Dashboard(gctx, tz)
					return err
				})
				g.Go(func() error {
					var err error
					catalog, err = s.api.Personas(gctx)
					return err
				})
				if err := g.Wait(); err != nil {
					return err
				}

				if dashboard.Warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), dashboard.Warning)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Hey %s!\n\n", id.DisplayName)
				printUsage(out, dashboard.Usage)
				fmt.Fprintf(out, "Personas available: %d\n\n", dashboard.PersonasAvailable)
				if len(dashboard.Recent) == 0 {
					fmt.Fprintln(out, "No translations yet.")
					return nil
				}
				fmt.Fprintln(out, "Recent translations:")
				printTranslations(out, dashboard.Recent, catalog)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for calendar days, server default when empty")
	return cmd
}

func printUsage(w io.Writer, u stats.Usage) {
	fmt.Fprintf(w, "Total translations: %d\n", u.TotalCount)
	fmt.Fprintf(w, "This week: %d\n", u.WeeklyCount)
	fmt.Fprintf(w, "Personas tried: %d\n", u.UniquePersonaCount)
	fmt.Fprintf(w, "Streak: %d day(s)\n", u.StreakDays)
}

// printTranslations lists entries newest first. Personas missing from catalog fall back
// to the built-in labels.
func printTranslations(w io.Writer, list []apiclient.Translation, catalog []persona.Persona) {
	labels := make(map[persona.ID]string, len(catalog))
	for _, p := range catalog {
		labels[p.ID] = p.Label()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range list {
		label, ok := labels[t.Persona]
		if !ok {
			if p, found := persona.Lookup(t.Persona); found {
				label = p.Label()
			} else {
				label = string(t.Persona)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatWhen(t.CreatedAt), label, oneLine(t.InputText), oneLine(t.OutputText))
	}
	_ = tw.Flush()
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const width = 60
	if r := []rune(s); len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}
