package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okJobsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ran":true}`))
	})
}

func TestAPIServer_HealthIsOpen(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{APIToken: "secret"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIServer_JobsRequireBearerToken(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{APIToken: "secret"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"correct token", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs/worker", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIServer_EmptyTokenDisablesAuth(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/worker", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIServer_PreflightBypassesAuth(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{
		APIToken:       "secret",
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/jobs/worker", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIServer_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodPost, "/jobs/worker", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIServer_OversizedBodyRejected(t *testing.T) {
	srv := NewAPIServer(okJobsHandler(), ServerConfig{MaxBodyBytes: 16})

	body := strings.NewReader(`{"metadata": "` + strings.Repeat("x", 64) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/worker", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSplitOrigins(t *testing.T) {
	assert.Nil(t, SplitOrigins(""))
	assert.Equal(t, []string{"https://a.example.com"}, SplitOrigins("https://a.example.com"))
	assert.Equal(t,
		[]string{"https://a.example.com", "https://b.example.com"},
		SplitOrigins(" https://a.example.com, https://b.example.com ,"))
}

func TestServerConfig_Defaults(t *testing.T) {
	cfg := ServerConfig{}
	cfg.applyDefaults()

	require.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}
