package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/ratelimit"
	"github.com/fleetfox/fleetfox/pkg/auth"
	"github.com/fleetfox/fleetfox/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type staticValidator struct {
	token   string
	subject string
}

func (v staticValidator) Validate(token string) (*auth.Claims, error) {
	if token != v.token {
		return nil, authError{}
	}
	return &auth.Claims{Subject: v.subject}, nil
}

type authError struct{}

func (authError) Error() string { return "invalid token" }

func authEngine(validator auth.Validator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(validator))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": Subject(c)})
	})
	return r
}

func TestAuthMiddlewareGuestPassesThrough(t *testing.T) {
	r := authEngine(staticValidator{token: "t", subject: "s"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"subject":""}` {
		t.Errorf("body = %s", got)
	}
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	r := authEngine(staticValidator{token: "t-1", subject: "user-9"})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer t-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Body.String(); got != `{"subject":"user-9"}` {
		t.Errorf("body = %s", got)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := authEngine(staticValidator{token: "t-1"})
	for _, header := range []string{"Bearer wrong", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "fixed-id" {
		t.Errorf("X-Request-Id = %q, want propagated value", got)
	}
}

func TestRateLimitIngest(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := &config.Config{RateLimit: config.RateLimitConfig{
		Ingest: config.RateLimitBucketConfig{RequestsPerMinute: 60, BurstSize: 2},
	}}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitIngest(ratelimit.NewTokenBucketLimiter(rdb), cfg))
	r.POST("/v", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests = %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}
}

func TestRateLimitDisabledBucketPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitIngest(nil, &config.Config{}))
	r.POST("/v", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
}
