package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Auth         *AuthHandler
	Profiles     *ProfileHandler
	Translations *TranslationHandler
	Stats        *StatsHandler
	Health       HealthCheck
	// Sessions validates access tokens. Protected routes are not mounted without it.
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)

	protect := func(h http.HandlerFunc) http.Handler {
		return RequireSession(cfg.Sessions, logger)(h)
	}
	optional := func(h http.HandlerFunc) http.Handler {
		return OptionalSession(cfg.Sessions, logger)(h)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				handlerLogger(r.Context(), logger, "Router", "Health").WarnContext(r.Context(), "health check failed", "error", err)
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}
		newResponder(logger).writeJSON(r.Context(), w, status, body)
	})

	if cfg.Auth != nil {
		mux.HandleFunc("/auth/signup", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.SignUp(w, r)
		})
		mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Token(w, r)
		})
		mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Refresh(w, r)
		})
		if cfg.Sessions != nil {
			mux.Handle("/auth/user", protect(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Auth.User(w, r)
			}))
			mux.Handle("/auth/logout", protect(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Auth.Logout(w, r)
			}))
		}
	}

	if cfg.Translations != nil {
		mux.HandleFunc("/personas", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Translations.Personas(w, r)
		})

		transform := http.Handler(http.HandlerFunc(cfg.Translations.Transform))
		if cfg.Sessions != nil {
			transform = optional(cfg.Translations.Transform)
		}
		mux.Handle("/transform", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			transform.ServeHTTP(w, r)
		}))

		if cfg.Sessions != nil {
			mux.Handle("/translations", protect(func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					cfg.Translations.List(w, r)
				case http.MethodPost:
					cfg.Translations.Create(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost)
				}
			}))
		}
	}

	if cfg.Profiles != nil && cfg.Sessions != nil {
		mux.Handle("/profiles", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Profiles.Create(w, r)
		}))
		mux.Handle("/profiles/", protect(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/profiles/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Profiles.Get(w, r, id)
		}))
	}

	if cfg.Stats != nil && cfg.Sessions != nil {
		mux.Handle("/stats", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Stats.Stats(w, r)
		}))
		mux.Handle("/dashboard", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Stats.Dashboard(w, r)
		}))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
