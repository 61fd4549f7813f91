package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/views/nftLeft", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.Equal(t, "1", res.Header().Get("Retry-After"))
}

func TestRateLimiterPrefersAPIKeyOverIP(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	handler := limiter.Middleware(okHandler())

	for _, key := range []string{"tenant-A", "tenant-B"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/views/amountRaised", nil)
		req.Header.Set("X-API-Key", key)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, key)
	}
}

func TestRateLimiterUsesForwardedAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	require.Equal(t, "10.0.0.7", clientID(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4567"
	require.Equal(t, "192.0.2.1", clientID(req))
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{}, nil)
	handler := limiter.Middleware(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, res.Code)
	}
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	limiter.clockNow = func() time.Time { return now }

	limiter.obtainLimiter("a")
	now = now.Add(10 * time.Minute)
	limiter.obtainLimiter("b")

	require.Equal(t, 1, limiter.Sweep())
	require.Len(t, limiter.visitors, 1)
}
