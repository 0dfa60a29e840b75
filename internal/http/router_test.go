package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/config"
	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.Open(context.Background(), repo.Options{URL: dsn, ConnectAttempts: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if _, err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/",
		MaxBodyBytes: 1 << 20,
		Auth: config.AuthConfig{
			JWTSecret:  "router-test-secret-at-least-32-chars",
			TokenTTL:   30 * time.Minute,
			BcryptCost: bcrypt.MinCost,
		},
		Detect:         config.DetectConfig{MaxTextRunes: 500, Trigger: "fake"},
		RateRPS:        100,
		RateBurst:      100,
		AuthRateRPS:    100,
		AuthRateBurst:  100,
		IdempotencyTTL: time.Hour,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	if err := RegisterRoutes(r, db, cfg); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return r, db
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// /health works
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_RejectsEmptySecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	if err := RegisterRoutes(gin.New(), newTestDB(t), cfg); err == nil {
		t.Fatalf("expected an error for an empty JWT secret")
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_StatusAtRoot(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["status"] != "ok" || body["database"] != "connected" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRegisterRoutes_APIBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v1"
	r, _ := newTestRouter(t, cfg)

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/", nil)); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/ = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v1/users/me without token = %d", w.Code)
	}
}

// End to end through the whole middleware stack: register, log in, detect,
// read the profile and the history.
func TestRegisterRoutes_SessionFlow(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	reg := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(
		`{"username":"ann","email":"ann@example.com","password":"pw","confirmPassword":"pw"}`))
	reg.Header.Set("Content-Type", "application/json")
	if w := serve(r, reg); w.Code != http.StatusOK {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}

	form := url.Values{"username": {"ann@example.com"}, "password": {"pw"}}
	login := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	login.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(r, login)
	if w.Code != http.StatusOK {
		t.Fatalf("token = %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("token Cache-Control = %q", cc)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tok); err != nil || tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("token body %s: %v", w.Body.String(), err)
	}

	det := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"text":"totally fake"}`))
	det.Header.Set("Content-Type", "application/json")
	det.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	if w := serve(r, det); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"FAKE"`) {
		t.Fatalf("detect = %d %s", w.Code, w.Body.String())
	}

	me := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	me.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w = serve(r, me)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ann@example.com") {
		t.Fatalf("me = %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("me Cache-Control = %q", cc)
	}

	hist := httptest.NewRequest(http.MethodGet, "/users/me/detections", nil)
	hist.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w = serve(r, hist)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("history = %d etag=%q", w.Code, w.Header().Get("ETag"))
	}
	if !strings.Contains(w.Body.String(), "totally fake") {
		t.Fatalf("history misses the detection: %s", w.Body.String())
	}
}

func TestRegisterRoutes_AuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateRPS = 0
	cfg.AuthRateBurst = 2
	r, _ := newTestRouter(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		form := url.Values{"username": {"x@example.com"}, "password": {"pw"}}
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		codes = append(codes, serve(r, req).Code)
	}
	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusBadRequest || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v; want [400 400 429]", codes)
	}

	// the detection endpoint is not in the auth bucket
	det := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"text":"hello"}`))
	det.Header.Set("Content-Type", "application/json")
	if w := serve(r, det); w.Code != http.StatusOK {
		t.Fatalf("detect = %d", w.Code)
	}
}

func postToken(r http.Handler, idemKey string) int {
	form := url.Values{"username": {"x@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idemKey != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, idemKey)
	}
	return serve(r, req).Code
}

func postDetect(r http.Handler, idemKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, idemKey)
	}
	return serve(r, req)
}

// A key already stored for /detect must not lift the credential limiter.
func TestRegisterRoutes_AuthRateLimit_IgnoresStoredIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateRPS = 0
	cfg.AuthRateBurst = 1
	r, _ := newTestRouter(t, cfg)

	if w := postDetect(r, "k1"); w.Code != http.StatusOK {
		t.Fatalf("seed detect = %d", w.Code)
	}
	if w := postDetect(r, "k1"); w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("k1 must be stored for this caller")
	}

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		codes = append(codes, postToken(r, "k1"))
	}
	if codes[0] != http.StatusBadRequest {
		t.Fatalf("first login = %d; want 400", codes[0])
	}
	for i, c := range codes[1:] {
		if c != http.StatusTooManyRequests {
			t.Fatalf("login %d = %d; want 429 (codes %v)", i+2, c, codes)
		}
	}
}

// Replays of a stored detection skip the per-caller limiter; new work does not.
func TestRegisterRoutes_DetectReplaySkipsLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0
	cfg.RateBurst = 1
	r, _ := newTestRouter(t, cfg)

	if w := postDetect(r, "k1"); w.Code != http.StatusOK {
		t.Fatalf("first detect = %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		w := postDetect(r, "k1")
		if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
			t.Fatalf("replay %d = %d %q", i, w.Code, w.Header().Get(middleware.HeaderIdempotencyReplayed))
		}
	}
	if w := postDetect(r, "k2"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("new key with an empty bucket = %d; want 429", w.Code)
	}
	if w := postDetect(r, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("keyless detect with an empty bucket = %d; want 429", w.Code)
	}
}

// Idempotency-Key is only interpreted on /detect.
func TestRegisterRoutes_IdempotencyKeyIgnoredOffDetect(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	form := url.Values{"username": {"x@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.HeaderIdempotencyKey, "has spaces!")
	if w := serve(r, req); w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_credentials") {
		t.Fatalf("token = %d %s", w.Code, w.Body.String())
	}
	if w := postDetect(r, "has spaces!"); w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("detect = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_IdempotentDetect(t *testing.T) {
	r, db := newTestRouter(t, testConfig())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"text":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderIdempotencyKey, "k-1")
		return serve(r, req)
	}
	first, second := send(), send()
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("second request must be a replay")
	}
	var n int64
	if err := db.Model(&domain.DetectionResult{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("rows = %d; want 1", n)
	}
}

func TestRegisterRoutes_SwaggerToggle(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled: got %d", w.Code)
	}

	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ = newTestRouter(t, cfg)
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)); w.Code != http.StatusOK {
		t.Fatalf("swagger enabled: got %d", w.Code)
	}
}

func TestRegisterRoutes_GzipWhenAccepted(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}

	// zero disables the cap
	r = gin.New()
	r.Use(limitBody(0))
	r.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, "%d", len(b))
	})
	w = serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusOK || w.Body.String() != "12" {
		t.Fatalf("uncapped: %d %q", w.Code, w.Body.String())
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // only set on https
	r, _ := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.URL.Scheme = "https"
	w := serve(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRegisterRoutes_IdempotencyLookup_ErrorIsMiss(t *testing.T) {
	db := newTestDB(t)
	lookup := idempotencyLookup(db)

	hit, err := lookup(context.Background(), "ip:1.2.3.4", "missing", time.Now())
	if hit || err != nil {
		t.Fatalf("miss: hit=%v err=%v", hit, err)
	}

	_ = repo.Close(db)
	hit, err = lookup(context.Background(), "ip:1.2.3.4", "missing", time.Now())
	if hit || err != nil {
		t.Fatalf("closed store must read as a miss: hit=%v err=%v", hit, err)
	}
}
