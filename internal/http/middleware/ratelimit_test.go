package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/niti14-code/FreeWheel/internal/http/middleware"
)

func newLimiter(t *testing.T, read, write middleware.RateConfig) *middleware.RateLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return middleware.NewRateLimiter(client, read, write)
}

func hit(t *testing.T, handler http.Handler, method string) int {
	t.Helper()
	req := httptest.NewRequest(method, "/v1/rides/search", nil)
	req.Header.Set("X-Client-ID", "client-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterExhaustsBurst(t *testing.T) {
	limiter := newLimiter(t,
		middleware.RateConfig{Rate: 1, Burst: 2},
		middleware.RateConfig{Rate: 1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	require.Equal(t, http.StatusOK, hit(t, handler, http.MethodGet))
	require.Equal(t, http.StatusOK, hit(t, handler, http.MethodGet))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, http.MethodGet))

	// Writes draw from their own bucket.
	require.Equal(t, http.StatusOK, hit(t, handler, http.MethodPost))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, http.MethodPost))
}

func TestNilLimiterPassesThrough(t *testing.T) {
	var limiter *middleware.RateLimiter
	handler := limiter.Middleware(okHandler())
	require.Equal(t, http.StatusOK, hit(t, handler, http.MethodGet))
}
