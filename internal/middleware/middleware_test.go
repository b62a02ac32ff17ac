package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetTenantFromContext(r.Context())))
}

func tenantRouter(keys map[string]string) http.Handler {
	r := chi.NewRouter()
	r.Use(APIKeyAuth(keys))
	r.Get("/health", okHandler)
	r.With(RequireValidTenant).Get("/v1/{tenant}/thing", okHandler)
	return r
}

func do(h http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "k-acme", "globex": "k-globex"})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/acme/thing", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/acme/thing", "Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/v1/acme/thing", "Bearer k-globex").Code)

	rec := do(h, http.MethodGet, "/v1/acme/thing", "Bearer k-acme")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", rec.Body.String())

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/acme/thing", "k-acme").Code)
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	h := tenantRouter(nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/acme/thing", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/bad%20tenant/thing", "").Code)
}

func TestTokenBucket(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewTokenBucket(2, 1, now)

	assert.True(t, b.Allow(now))
	assert.True(t, b.Allow(now))
	assert.False(t, b.Allow(now))
	assert.False(t, b.Allow(now.Add(500*time.Millisecond)))
	assert.True(t, b.Allow(now.Add(1500*time.Millisecond)))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, 0.5)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/acme/thing", "").Code)
	rec := do(h, http.MethodGet, "/v1/acme/thing", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	defer limiter.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(11 * time.Minute)
	limiter.Allow("b")
	limiter.evictIdle(10 * time.Minute)

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "b")
}

type sample struct {
	Code     string `json:"code" validate:"required,max=8"`
	Language string `json:"language" validate:"omitempty,oneof=en ar"`
	Items    []item `json:"items" validate:"required,min=1,dive"`
}

type item struct {
	Name string `json:"name" validate:"required"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample{Code: "FL-05", Items: []item{{Name: "x"}}}))

	err := Validate(sample{Code: "WAY-TOO-LONG", Language: "fr", Items: []item{{}}})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "code must be at most 8")
	assert.Contains(t, msg, "language must be one of [en ar]")
	assert.Contains(t, msg, "items[0].name is required")
}

func TestValidateHelpers(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("a/b"))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 1, ValidatePage(-3))
	assert.Equal(t, "hello\nworld", SanitizeString(" hello\x00\n\x07world "))
}

func TestHealthHandler(t *testing.T) {
	ok := CheckerFunc(func(context.Context) error { return nil })
	bad := CheckerFunc(func(context.Context) error { return errors.New("bucket gone") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok}, []string{"gemini"}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"providers":["gemini"]`)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok, "minio": bad}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket gone")
}

func TestLoggingAndMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware, MetricsMiddleware)
	r.Get("/v1/{tenant}/thing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	r.Handle("/metrics", MetricsHandler())

	rec := do(r, http.MethodGet, "/v1/acme/thing", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `saqr_http_requests_total{method="GET",route="/v1/{tenant}/thing",status="418"}`))
}
