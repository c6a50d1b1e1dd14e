package handler

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

	"golang.org/x/time/rate"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/form"
	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// --- モック定義 ---

// mockResolver はPrincipalResolverのモック実装。
type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.Account, error)
}

var _ middleware.PrincipalResolver = (*mockResolver)(nil)

func (m *mockResolver) ResolvePrincipal(ctx context.Context, token string) (*model.Account, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, model.NewSessionInvalidError()
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.RateLimiter == nil {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			GeneralRate:     rate.Limit(1000),
			GeneralBurst:    1000,
			SubmitRate:      rate.Limit(1000),
			SubmitBurst:     1000,
			CleanupInterval: time.Minute,
		})
		t.Cleanup(limiter.Stop)
		deps.RateLimiter = limiter
	}
	if deps.Resolver == nil {
		deps.Resolver = &mockResolver{}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.PasswordChanger == nil {
		deps.PasswordChanger = &mockPasswordChanger{}
	}
	if deps.FormService == nil {
		deps.FormService = &mockFormService{}
	}
	if deps.FeedbackService == nil {
		deps.FeedbackService = &mockFeedbackService{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return NewRouter(deps)
}

// withCSRF はCSRF二重送信トークンをリクエストに付与する。
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf-token"})
	req.Header.Set("X-CSRF-Token", "test-csrf-token")
	return req
}

// --- 運用系ルートテスト ---

func TestRouter_Health_OK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{HealthChecker: &mockHealthChecker{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusOK)
}

func TestRouter_Health_DatabaseDown(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{err: context.DeadlineExceeded},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusServiceUnavailable)
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusOK)

	var result map[string]string
	if err := decodeResponse(w, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["token"] == "" {
		t.Error("expected a CSRF token in the response")
	}
}

// --- CSRF保護テスト ---

func TestRouter_Login_WithoutCSRFToken_Forbidden(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	body := `{"username": "alice", "password": "pass"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusForbidden)
}

func TestRouter_Login_WithCSRFToken_ReachesHandler(t *testing.T) {
	authSvc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*auth.LoginResult, error) {
			return &auth.LoginResult{
				Account: &model.Account{ID: "user-1", Username: "alice"},
				Token:   "issued-token",
			}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{AuthService: authSvc})

	body := `{"username": "alice", "password": "pass"}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	assertStatus(t, resp.StatusCode, http.StatusOK)
	if sessionCookieFrom(resp) == nil {
		t.Error("expected session cookie after login")
	}
}

// --- セッショングループテスト ---

func TestRouter_PublicFormList_Anonymous(t *testing.T) {
	formSvc := &mockFormService{
		listPublicFn: func(ctx context.Context, cursor time.Time, limit int) ([]*model.Form, error) {
			return []*model.Form{}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{FormService: formSvc})

	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusOK)
}

func TestRouter_PublicFormList_InvalidCookie_Rejected(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, token string) (*model.Account, error) {
			return nil, model.NewSessionInvalidError()
		},
	}
	router := newTestRouter(t, &RouterDeps{Resolver: resolver})

	// Cookieが存在するのに無効な場合は匿名扱いにせずエラー
	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "stale-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	assertStatus(t, resp.StatusCode, http.StatusUnauthorized)

	cookie := sessionCookieFrom(resp)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("invalid session cookie should be cleared")
	}
}

func TestRouter_CreateForm_RequiresSession(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	body := `{"data": {"title": "x"}}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/forms", bytes.NewBufferString(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusUnauthorized)
}

func TestRouter_CreateForm_AuthenticatedFlow(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, token string) (*model.Account, error) {
			if token != "valid-token" {
				return nil, model.NewSessionInvalidError()
			}
			return &model.Account{ID: "user-1", Username: "alice"}, nil
		},
	}
	var gotOwnerID string
	created := false
	router := newTestRouter(t, &RouterDeps{
		Resolver: resolver,
		FormService: &mockFormService{
			createFn: func(ctx context.Context, owner *model.Account, input form.CreateInput) (*model.Form, error) {
				created = true
				gotOwnerID = owner.ID
				return publicForm(), nil
			},
		},
	})

	body := `{"public": true, "data": {"title": "アンケート"}}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/forms", bytes.NewBufferString(body)))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusCreated)
	if !created {
		t.Fatal("form service Create was not called")
	}
	if gotOwnerID != "user-1" {
		t.Errorf("owner ID = %q, want user-1", gotOwnerID)
	}
}

func TestRouter_SubmitFeedback_AnonymousWithCSRF(t *testing.T) {
	feedbackSvc := &mockFeedbackService{
		submitFn: func(ctx context.Context, principal *model.Account, formHash string, data json.RawMessage) (*model.Feedback, error) {
			return &model.Feedback{ID: "fb-1", FormHash: formHash, Data: data}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{FeedbackService: feedbackSvc})

	body := `{"data": {"answer": "匿名の感想"}}`
	req := withCSRF(httptest.NewRequest(http.MethodPost, "/api/forms/0123456789abcd/feedbacks", bytes.NewBufferString(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusCreated)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
}

func TestRouter_UnknownRoute_NotFound(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusNotFound)
}
