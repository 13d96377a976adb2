package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

const authCookieName = "auth_token"

type contextKey struct{}

// TokenVerifier checks an access token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (*domain.Claims, error)
}

type Middleware struct {
	tokens TokenVerifier
}

func NewMiddleware(tokens TokenVerifier) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireAccount rejects requests without a valid token. Browsers are sent to
// the login page, API clients get a 401.
func (m *Middleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := m.verify(r)
		if claims == nil {
			if isAPIRequest(r) {
				writeError(w, domain.ErrUnauthorized)
			} else {
				http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAccount attaches the caller's identity when a valid token is present
// and otherwise lets the request through as anonymous.
func (m *Middleware) OptionalAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := m.verify(r); claims != nil {
			r = r.WithContext(withClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) verify(r *http.Request) *domain.Claims {
	token := tokenFromRequest(r)
	if token == "" {
		return nil
	}
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil
	}
	return claims
}

// tokenFromRequest prefers an Authorization bearer token over the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func withClaims(ctx context.Context, claims *domain.Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the identity attached by the middleware.
func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*domain.Claims)
	return claims, ok && claims != nil
}

// ownerFromContext is the account id of the caller, or domain.Anonymous.
func ownerFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.AccountID
	}
	return domain.Anonymous
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// clientIP is the address the anonymous quota is keyed by. Proxy headers are
// client-controlled, so they are read only when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
