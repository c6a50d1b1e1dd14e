package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// --- テストヘルパー ---

// withAccount はリクエストコンテキストに認証済みアカウントを注入する。
func withAccount(r *http.Request, account *model.Account) *http.Request {
	return r.WithContext(middleware.ContextWithAccount(r.Context(), account))
}

// withChiURLParam はchiのURLパラメータをリクエストコンテキストに設定する。
// ハンドラーメソッドを直接呼び出すテストで使用する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testAccount() *model.Account {
	return &model.Account{ID: "user-1", Username: "alice"}
}

func adminAccount() *model.Account {
	return &model.Account{ID: "admin-1", Username: "root", Admin: true}
}

func decodeResponse(w *httptest.ResponseRecorder, dst any) error {
	return json.NewDecoder(w.Body).Decode(dst)
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d, want %d", got, want)
	}
}
