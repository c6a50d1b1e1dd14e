package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login は資格情報を検証してセッションを発行する。
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	// Logout はトークンに対応するセッションを失効させる。
	Logout(ctx context.Context, token string) error
	// SessionTTL はセッションCookieの有効期間を返す。
	SessionTTL() time.Duration
}

var _ AuthServiceInterface = (*auth.Service)(nil)

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  middleware.SessionConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config middleware.SessionConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// accountResponse はアカウント情報のAPIレスポンス。
// 資格情報は含まない。
type accountResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Admin         bool      `json:"admin"`
	RequiresReset bool      `json:"requires_reset"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAccountResponse(account *model.Account) accountResponse {
	return accountResponse{
		ID:            account.ID,
		Username:      account.Username,
		Admin:         account.Admin,
		RequiresReset: account.Credential.RequiresReset(),
		CreatedAt:     account.CreatedAt,
	}
}

// Login はユーザー名とパスワードで認証し、セッションCookieを設定する。
// POST /api/auth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	maxAge := int(h.service.SessionTTL().Seconds())
	middleware.SetSessionCookie(w, result.Token, maxAge, h.config)

	writeJSON(w, http.StatusOK, newAccountResponse(result.Account))
}

// Logout はセッションを失効させ、Cookieを破棄する。
// DELETE /api/auth
//
// Cookieが存在しない場合でも204を返す（冪等）。
// トークンが形式不正の場合のみエラーとなる。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			middleware.WriteError(w, logoutErr)
			return
		}
	}

	middleware.ClearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}
