package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	service    ports.LinkService
	baseURL    string
	trustProxy bool
	logger     *slog.Logger
}

// NewHTTPHandler builds the link handlers. trustProxy lets proxy headers
// decide the client IP used for the anonymous quota.
func NewHTTPHandler(service ports.LinkService, baseURL string, trustProxy bool, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		trustProxy: trustProxy,
		logger:     logger,
	}
}

// ShortenRequest payload
type ShortenRequest struct {
	OriginalURL string `json:"original_url"`
	CustomSlug  string `json:"custom_slug,omitempty"`
}

// MigrateRequest payload
type MigrateRequest struct {
	Pending []domain.MigrationCandidate `json:"pending"`
}

// LinkResponse is a link as returned to clients.
type LinkResponse struct {
	domain.Link
	ShortURL string `json:"short_url"`
}

func (h *HTTPHandler) present(links []domain.Link) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, LinkResponse{Link: l, ShortURL: h.baseURL + "/" + l.Slug})
	}
	return out
}

// Shorten creates a link for the caller, or an anonymous one without a token.
func (h *HTTPHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.service.Shorten(r.Context(), ports.ShortenRequest{
		Destination: req.OriginalURL,
		CustomSlug:  req.CustomSlug,
		Owner:       ownerFromContext(r.Context()),
		ClientIP:    clientIP(r, h.trustProxy),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"url": h.present([]domain.Link{*link})[0]})
}

// Redirect sends the visitor to the destination of the slug.
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	destination, err := h.service.Resolve(r.Context(), slug)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("resolve failed", "slug", slug, "error", err)
		}
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, destination, http.StatusFound)
}

// Resolve is Redirect for API clients that follow the link themselves.
func (h *HTTPHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	destination, err := h.service.Resolve(r.Context(), slug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"original_url": destination})
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	links, err := h.service.List(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": h.present(links)})
}

// Delete removes one of the caller's links and returns the remaining list.
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	if err := h.service.Delete(r.Context(), r.PathValue("id"), owner); err != nil {
		h.fail(w, r, err)
		return
	}
	h.List(w, r)
}

// Migrate claims anonymous links the client created before signing in.
func (h *HTTPHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Migrate(r.Context(), ownerFromContext(r.Context()), req.Pending)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"migrated": h.present(result.Migrated),
		"urls":     h.present(result.Links),
	})
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSlugConflict), errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
