package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

	"github.com/tbourn/go-newscheck-backend/internal/auth"
	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
	"github.com/tbourn/go-newscheck-backend/internal/services"
)

const handlerTestSecret = "handlers-test-secret-at-least-32-chars"

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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

func countDetections(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.DetectionResult{}).Count(&n).Error; err != nil {
		t.Fatalf("count detections: %v", err)
	}
	return n
}

// ---------- full stack (real services behind the session middleware) ----------

type testApp struct {
	r      *gin.Engine
	db     *gorm.DB
	tokens *auth.TokenManager
	auth   *services.AuthService
	detect *services.DetectionService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	tm, err := auth.NewTokenManager(handlerTestSecret, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	authSvc, err := services.NewAuthService(db, auth.NewPasswordHasher(bcrypt.MinCost), tm)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	detectSvc := &services.DetectionService{
		DB:             db,
		Classifier:     services.NewKeywordClassifier("fake"),
		IdempotencyTTL: time.Hour,
	}

	resolve := func(ctx context.Context, email string) (*domain.User, error) {
		u, err := authSvc.UserByEmail(ctx, email)
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, nil
		}
		return u, err
	}
	lookup := func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		k, err := repo.GetIdempotency(ctx, db, scope, key, now)
		return k != nil && err == nil, err
	}

	h := New(authSvc, detectSvc, func(ctx context.Context) error { return repo.Ping(ctx, db) })

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Identify(tm, resolve))
	r.GET("/", h.Status)
	r.POST("/register", h.Register)
	r.POST("/token", h.Token)
	r.POST("/detect", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup), h.Detect)
	me := r.Group("/users/me", middleware.RequireUser())
	me.GET("", h.Me)
	me.GET("/detections", h.History)

	return &testApp{r: r, db: db, tokens: tm, auth: authSvc, detect: detectSvc}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *testApp) register(t *testing.T, username, email, password string) int64 {
	t.Helper()
	w := a.do(jsonReq(http.MethodPost, "/register", map[string]any{
		"username": username, "email": email, "password": password, "confirmPassword": password,
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: %d %s", email, w.Code, w.Body.String())
	}
	var resp RegisterResponse
	mustJSON(t, w, &resp)
	return resp.UserID
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	w := a.do(formReq("/token", url.Values{"username": {email}, "password": {password}}))
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	var resp TokenResponse
	mustJSON(t, w, &resp)
	return resp.AccessToken
}

// ---------- request helpers ----------

func jsonReq(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func rawJSONReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formReq(path string, v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func mustJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	mustJSON(t, w, &er)
	return er
}

// ---------- stubs ----------

type stubAuthSvc struct {
	user     *domain.User
	token    *services.Token
	err      error
	gotLogin string
}

func (s *stubAuthSvc) Register(context.Context, services.RegisterInput) (*domain.User, error) {
	return s.user, s.err
}

func (s *stubAuthSvc) Login(_ context.Context, email, _ string, _ time.Time) (*services.Token, error) {
	s.gotLogin = email
	return s.token, s.err
}

type stubDetectSvc struct {
	res      *domain.DetectionResult
	replayed bool
	err      error
	statsErr error

	gotIn    services.DetectInput
	gotScope string
	gotKey   string
}

func (s *stubDetectSvc) DetectIdempotent(_ context.Context, in services.DetectInput, scope, key string) (*domain.DetectionResult, bool, error) {
	s.gotIn, s.gotScope, s.gotKey = in, scope, key
	return s.res, s.replayed, s.err
}

func (s *stubDetectSvc) History(context.Context, int64, int, int) ([]domain.DetectionResult, int64, error) {
	return nil, 0, s.err
}

func (s *stubDetectSvc) HistoryStats(context.Context, int64) (int64, int64, error) {
	return 0, 0, s.statsErr
}

func newStubRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", h.Status)
	r.POST("/register", h.Register)
	r.POST("/token", h.Token)
	r.POST("/detect", h.Detect)
	r.GET("/users/me", h.Me)
	r.GET("/users/me/detections", h.History)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
