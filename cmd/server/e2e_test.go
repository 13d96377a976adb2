package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
)

type linkJSON struct {
	ID          string `json:"id"`
	Owner       string `json:"user_id"`
	Slug        string `json:"slug"`
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	Clicks      int64  `json:"clicks"`
}

func TestIntegration(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:  "file:memdb1?mode=memory&cache=shared",
		StoreBackend: config.BackendSQL,
		BaseURL:      "http://sho.rt",
		AnonLimit:    3,
		AnonWindow:   time.Hour,
		JWTSecret:    "e2e-secret",
		JWTTTL:       time.Hour,
	}
	application, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer application.Close()

	server := httptest.NewServer(application.Handler)
	defer server.Close()

	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	call := func(method, path string, body any, token string) (*http.Response, []byte) {
		t.Helper()
		var r io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(b)
		}
		req, err := http.NewRequest(method, server.URL+path, r)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, data
	}

	// TEST 1: Anonymous shorten with a random slug
	resp, body := call(http.MethodPost, "/api/v1/shorten", map[string]string{"original_url": "https://example.com"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		URL linkJSON `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Regexp(t, `^[A-Za-z0-9]{5}$`, created.URL.Slug)
	assert.Equal(t, "anonymous", created.URL.Owner)
	assert.Equal(t, int64(0), created.URL.Clicks)

	// TEST 2: Redirect
	resp, _ = call(http.MethodGet, "/"+created.URL.Slug, nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.Header.Get("Location"))

	resp, _ = call(http.MethodGet, "/doesnotexist", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// TEST 3: Signup, then login claiming the anonymous link
	resp, body = call(http.MethodPost, "/api/v1/signup", map[string]string{
		"email": "e2e@example.com", "username": "e2euser", "password": "password1",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = call(http.MethodPost, "/api/v1/login", map[string]any{
		"email":    "e2e@example.com",
		"password": "password1",
		"pending":  []map[string]string{{"slug": created.URL.Slug, "original_url": "https://example.com"}},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var login struct {
		User struct {
			ID    string `json:"id"`
			Token string `json:"token"`
		} `json:"user"`
		Migrated []linkJSON `json:"migrated"`
		URLs     []linkJSON `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	require.Len(t, login.Migrated, 1)
	assert.Equal(t, created.URL.ID, login.Migrated[0].ID)
	assert.Equal(t, login.User.ID, login.Migrated[0].Owner)
	assert.Equal(t, int64(1), login.Migrated[0].Clicks)
	token := login.User.Token

	// TEST 4: The claimed link still resolves and keeps counting
	resp, body = call(http.MethodGet, "/api/v1/urls/"+created.URL.Slug, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"original_url":"https://example.com"}`, string(body))

	// TEST 5: Custom slug conflict
	resp, _ = call(http.MethodPost, "/api/v1/shorten", map[string]string{"original_url": "https://a.com", "custom_slug": "promo"}, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = call(http.MethodPost, "/api/v1/shorten", map[string]string{"original_url": "https://b.com", "custom_slug": "promo"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// TEST 6: List newest first
	resp, body = call(http.MethodGet, "/api/v1/urls", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		URLs []linkJSON `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.URLs, 2)
	assert.Equal(t, "promo", list.URLs[0].Slug)
	assert.Equal(t, int64(2), list.URLs[1].Clicks)

	// TEST 7: Delete
	resp, body = call(http.MethodDelete, "/api/v1/shorten/"+list.URLs[0].ID, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.URLs, 1)

	// TEST 8: Delete account
	resp, _ = call(http.MethodDelete, "/api/v1/account", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = call(http.MethodGet, "/"+created.URL.Slug, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
