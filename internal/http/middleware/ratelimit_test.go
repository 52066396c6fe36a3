package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func limited(cfg *config.RateLimitConfig, calls *int) http.Handler {
	rl := middleware.NewRateLimiter(cfg, zap.NewNop())
	return middleware.Operator(rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})))
}

func request(path, remoteAddr, operator string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	if operator != "" {
		req.Header.Set(middleware.OperatorHeader, operator)
	}
	return req
}

func TestRateLimiter_Disabled(t *testing.T) {
	calls := 0
	handler := limited(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1}, &calls)

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, request("/api/v1/machines", "10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 20, calls)
}

func TestRateLimiter_LimitsByIP(t *testing.T) {
	calls := 0
	handler := limited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 3}, &calls)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, request("/api/v1/machines", "10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, request("/api/v1/machines", "10.0.0.1:5000", ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, request("/api/v1/machines", "10.0.0.2:5000", ""))
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own budget")
	assert.Equal(t, 4, calls)
}

func TestRateLimiter_OperatorsShareTerminalIP(t *testing.T) {
	calls := 0
	handler := limited(&config.RateLimitConfig{
		Enabled:                   true,
		RequestsPerMinute:         1,
		RequestsPerMinuteOperator: 2,
	}, &calls)

	for _, operator := range []string{"op-1", "op-1", "op-2", "op-2"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, request("/api/v1/work-orders", "10.0.0.9:5000", operator))
		assert.Equal(t, http.StatusOK, w.Code, "operator %s", operator)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, request("/api/v1/work-orders", "10.0.0.9:5000", "op-1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiter_Whitelists(t *testing.T) {
	calls := 0
	handler := limited(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		WhitelistIPs:      []string{"127.0.0.1"},
		WhitelistPaths:    []string{"/health", "/swagger/*"},
	}, &calls)

	for i := 0; i < 5; i++ {
		for _, req := range []*http.Request{
			request("/api/v1/machines", "127.0.0.1:5000", ""),
			request("/health", "10.0.0.1:5000", ""),
			request("/swagger/index.html", "10.0.0.1:5000", ""),
		} {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, req.URL.Path)
		}
	}
	assert.Equal(t, 15, calls)
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	calls := 0
	handler := limited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}, &calls)

	first := request("/api/v1/machines", "10.0.0.1:5000", "")
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	second := request("/api/v1/machines", "10.0.0.1:5000", "")
	second.Header.Set("X-Forwarded-For", "203.0.113.8")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code, "keyed on the original client")
}
