package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// TokenIssuer signs access tokens for an account.
type TokenIssuer interface {
	Issue(account *domain.Account) (string, time.Time, error)
}

type AccountHandler struct {
	accounts     ports.AccountService
	links        *HTTPHandler
	tokens       TokenIssuer
	isProduction bool
	logger       *slog.Logger
}

func NewAccountHandler(accounts ports.AccountService, links *HTTPHandler, tokens TokenIssuer, isProduction bool, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		accounts:     accounts,
		links:        links,
		tokens:       tokens,
		isProduction: isProduction,
		logger:       logger,
	}
}

// SignupRequest payload
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest payload. Pending lists anonymous links to claim after login.
type LoginRequest struct {
	Email    string                      `json:"email"`
	Password string                      `json:"password"`
	Pending  []domain.MigrationCandidate `json:"pending,omitempty"`
}

// UserResponse is an account with a fresh access token.
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Signup(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.links.fail(w, r, err)
		return
	}

	user, ok := h.issue(w, r, account)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.links.fail(w, r, err)
		return
	}

	user, ok := h.issue(w, r, account)
	if !ok {
		return
	}
	resp := map[string]any{"user": user}

	if len(req.Pending) > 0 {
		result, err := h.links.service.Migrate(r.Context(), account.ID, req.Pending)
		if err != nil {
			// The login stands; the client keeps its pending list and retries.
			h.logger.Warn("migration after login failed", "account_id", account.ID, "error", err)
			resp["migration_error"] = "could not claim pending links"
		} else {
			resp["migrated"] = h.links.present(result.Migrated)
			resp["urls"] = h.links.present(result.Links)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteAccount removes the caller's account and links, then logs them out.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	if err := h.accounts.DeleteAccount(r.Context(), owner); err != nil {
		h.links.fail(w, r, err)
		return
	}
	clearAuthCookie(w, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (h *AccountHandler) issue(w http.ResponseWriter, r *http.Request, account *domain.Account) (*UserResponse, bool) {
	token, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		h.links.fail(w, r, err)
		return nil, false
	}
	setAuthCookie(w, token, expiresAt, h.isProduction)
	return &UserResponse{
		ID:       account.ID,
		Email:    account.Email,
		Username: account.Username,
		Token:    token,
	}, true
}

func setAuthCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(w http.ResponseWriter, secure bool) {
	setAuthCookie(w, "", time.Now().Add(-1*time.Hour), secure)
}
