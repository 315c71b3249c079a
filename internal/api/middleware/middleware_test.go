package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager("middleware-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	tm := newTokens(t)
	r := gin.New()
	r.GET("/p", Authenticate(tm), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c)+":"+Role(c))
	})

	access, _ := tm.GenerateAccessToken("u1", "user")
	refresh, _ := tm.GenerateRefreshToken("u1", "user")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", access, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != "u1:user" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	tm := newTokens(t)
	r := gin.New()
	r.GET("/p", Authenticate(tm), Authorize("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	user, _ := tm.GenerateAccessToken("u1", "user")
	admin, _ := tm.GenerateAccessToken("a1", "admin")
	if w := do(r, "Bearer "+user); w.Code != http.StatusForbidden {
		t.Errorf("user status = %d", w.Code)
	}
	if w := do(r, "Bearer "+admin); w.Code != http.StatusNoContent {
		t.Errorf("admin status = %d", w.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewIPRateLimiter(0.001, 2)))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("over budget status = %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Errorf("other ip status = %d", code)
	}
}

func TestRequestIDAndLoggerAndMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()), Metrics(reg))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("request id = %q", w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("request id not generated")
	}
}
