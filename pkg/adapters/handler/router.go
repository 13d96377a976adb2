package handler

import (
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/auth"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, links ports.LinkService, accounts ports.AccountService, tokens *auth.TokenManager, logger *slog.Logger) http.Handler {
	h := NewHTTPHandler(links, cfg.BaseURL, cfg.TrustProxyHeaders, logger)
	ah := NewAccountHandler(accounts, h, tokens, cfg.IsProduction(), logger)
	authHandler := NewAuthHandler(cfg, accounts, tokens, logger)
	mw := NewMiddleware(tokens)

	optional := func(f http.HandlerFunc) http.Handler { return mw.OptionalAccount(f) }
	required := func(f http.HandlerFunc) http.Handler { return mw.RequireAccount(f) }

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /{slug}", h.Redirect)
	mux.HandleFunc("GET /api/v1/urls/{slug}", h.Resolve)
	mux.HandleFunc("POST /api/v1/signup", ah.Signup)
	mux.HandleFunc("POST /api/v1/login", ah.Login)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Anonymous or signed in
	mux.Handle("POST /api/v1/shorten", optional(h.Shorten))

	// Protected Routes
	mux.Handle("GET /api/v1/urls", required(h.List))
	mux.Handle("DELETE /api/v1/shorten/{id}", required(h.Delete))
	mux.Handle("PUT /api/v1/shorten/migrate", required(h.Migrate))
	mux.Handle("DELETE /api/v1/account", required(ah.DeleteAccount))

	return mux
}
