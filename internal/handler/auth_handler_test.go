package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn  func(ctx context.Context, username, password string) (*auth.LoginResult, error)
	logoutFn func(ctx context.Context, token string) error
	ttl      time.Duration
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) SessionTTL() time.Duration {
	if m.ttl != 0 {
		return m.ttl
	}
	return 720 * time.Hour
}

func sessionCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

// --- POST /api/auth テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*auth.LoginResult, error) {
			if username != "alice" {
				t.Errorf("username = %q, want alice", username)
			}
			if password != "correct-password" {
				t.Errorf("password = %q, want correct-password", password)
			}
			return &auth.LoginResult{
				Account: &model.Account{ID: "user-1", Username: "alice"},
				Token:   "issued-token",
			}, nil
		},
		ttl: 720 * time.Hour,
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	body := `{"username": "alice", "password": "correct-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	assertStatus(t, resp.StatusCode, http.StatusOK)

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "issued-token" {
		t.Errorf("cookie value = %q, want issued-token", cookie.Value)
	}
	if cookie.MaxAge != int((720 * time.Hour).Seconds()) {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, int((720*time.Hour).Seconds()))
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	body := `{"username": "alice", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	assertStatus(t, resp.StatusCode, http.StatusUnauthorized)

	if sessionCookieFrom(resp) != nil {
		t.Error("failed login must not set a session cookie")
	}
}

func TestAuthHandler_Login_RateLimited(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*auth.LoginResult, error) {
			return nil, model.NewRateLimitedError()
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	body := `{"username": "alice", "password": "whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusTooManyRequests)
}

func TestAuthHandler_Login_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, middleware.SessionConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(`{invalid`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusBadRequest)
}

func TestAuthHandler_Login_RequiresResetFlag(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*auth.LoginResult, error) {
			return &auth.LoginResult{
				Account: &model.Account{
					ID:         "user-2",
					Username:   "bob",
					Credential: model.UnsaltedCredential("placeholder"),
				},
				Token:         "issued-token",
				RequiresReset: true,
			}, nil
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	body := `{"username": "bob", "password": "placeholder"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	var result map[string]interface{}
	if err := decodeResponse(w, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["requires_reset"] != true {
		t.Errorf("requires_reset = %v, want true", result["requires_reset"])
	}
}

// --- DELETE /api/auth テスト ---

func TestAuthHandler_Logout_RevokesSessionAndClearsCookie(t *testing.T) {
	var revokedToken string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			revokedToken = token
			return nil
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/auth", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "current-token"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	assertStatus(t, resp.StatusCode, http.StatusNoContent)

	if revokedToken != "current-token" {
		t.Errorf("revoked token = %q, want current-token", revokedToken)
	}

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected clearing Set-Cookie header")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", cookie.MaxAge)
	}
}

func TestAuthHandler_Logout_NoCookie_Idempotent(t *testing.T) {
	logoutCalled := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			logoutCalled = true
			return nil
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/auth", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusNoContent)
	if logoutCalled {
		t.Error("Logout must not be called without a session cookie")
	}
}

func TestAuthHandler_Logout_MalformedToken(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			return model.NewSessionMalformedError()
		},
	}

	h := NewAuthHandler(svc, middleware.SessionConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/auth", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "short"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	assertStatus(t, w.Result().StatusCode, http.StatusBadRequest)
}
