package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Create は新しいアカウントを作成する。管理者のみ。
	Create(ctx context.Context, principal *model.Account, username, password string, admin bool) (*user.CreateResult, error)
	// List は全アカウントを返す。管理者のみ。
	List(ctx context.Context, principal *model.Account) ([]*model.Account, error)
	// Get はユーザー名でアカウントを取得する。本人または管理者のみ。
	Get(ctx context.Context, principal *model.Account, username string) (*model.Account, error)
	// Delete はアカウントを論理削除する。管理者のみ。
	Delete(ctx context.Context, principal *model.Account, username string) error
}

var _ UserServiceInterface = (*user.Service)(nil)

// PasswordChangerInterface はパスワード変更に必要な認証サービスインターフェース。
type PasswordChangerInterface interface {
	ChangePassword(ctx context.Context, principal, target *model.Account, currentPassword, newPassword string) (*model.Account, error)
}

var _ PasswordChangerInterface = (*auth.Service)(nil)

// UserHandler はアカウント管理のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	password PasswordChangerInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, password PasswordChangerInterface) *UserHandler {
	return &UserHandler{
		service:  service,
		password: password,
	}
}

// createUserRequest はアカウント作成リクエストのボディ。
// passwordが空の場合は仮パスワードが生成される。
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// createUserResponse はアカウント作成のAPIレスポンス。
// PlaceholderPasswordは生成された仮パスワードで、この応答でのみ返される。
type createUserResponse struct {
	accountResponse
	PlaceholderPassword string `json:"placeholder_password,omitempty"`
}

// changePasswordRequest はパスワード変更リクエストのボディ。
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Create は新しいアカウントを作成する。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	var req createUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), principal, req.Username, req.Password, req.Admin)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createUserResponse{
		accountResponse:     newAccountResponse(result.Account),
		PlaceholderPassword: result.Placeholder,
	})
}

// List は全アカウントの一覧を返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	accounts, err := h.service.List(r.Context(), principal)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, newAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, responses)
}

// Get はユーザー名でアカウントを取得する。"me"は自分自身に解決される。
// GET /api/users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	account, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "username"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// ChangePassword はアカウントのパスワードを変更する。
// PATCH /api/users/{username}
//
// 対象アカウントの取得を通じて認可（本人または管理者）が先に評価される。
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	var req changePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	target, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "username"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	updated, err := h.password.ChangePassword(r.Context(), principal, target, req.CurrentPassword, req.NewPassword)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(updated))
}

// Delete はアカウントを論理削除する。
// DELETE /api/users/{username}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "username")); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
