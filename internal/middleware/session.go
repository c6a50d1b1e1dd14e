// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/formman/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "Session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accountContextKey はリクエストコンテキストに認証済みアカウントを格納するためのキー。
var accountContextKey = contextKey("account")

// PrincipalResolver はCookie値からプリンシパルを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*model.Account, error)
}

// SessionConfig はセッションCookieの属性設定。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware はCookieのセッショントークンを検証し、
// 認証済みアカウントをリクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない・無効・形式不正のリクエストにはエラーを返し、Cookieを破棄させる。
func NewSessionMiddleware(resolver PrincipalResolver, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := resolveSession(r, resolver)
			if err != nil {
				ClearSessionCookie(w, config)
				WriteError(w, err)
				return
			}

			ctx := ContextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalSessionMiddleware はCookieがあれば検証してアカウントを注入し、
// なければ匿名のままリクエストを通すミドルウェアを返す。
// 公開フォームの閲覧や匿名フィードバック投稿で使用する。
// Cookieが存在するのに無効な場合はエラーとして扱う（黙って匿名に落とさない）。
func NewOptionalSessionMiddleware(resolver PrincipalResolver, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, cookieErr := r.Cookie(SessionCookieName); cookieErr != nil {
				// Cookieなし: 匿名リクエスト
				next.ServeHTTP(w, r)
				return
			}

			account, err := resolveSession(r, resolver)
			if err != nil {
				ClearSessionCookie(w, config)
				WriteError(w, err)
				return
			}

			ctx := ContextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveSession はCookieからトークンを取り出し、プリンシパルを解決する。
func resolveSession(r *http.Request, resolver PrincipalResolver) (*model.Account, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, model.NewSessionInvalidError()
	}
	return resolver.ResolvePrincipal(r.Context(), cookie.Value)
}

// ClearSessionCookie はセッションCookieを破棄するSet-Cookieヘッダーを書き込む。
// ログアウトおよび無効セッション検出時に使用する。
func ClearSessionCookie(w http.ResponseWriter, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSessionCookie はセッショントークンのCookieを書き込む。
// maxAgeSecondsにはセッションTTLの秒数を指定する。
func SetSessionCookie(w http.ResponseWriter, token string, maxAgeSeconds int, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AccountFromContext はリクエストコンテキストから認証済みアカウントを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func AccountFromContext(ctx context.Context) (*model.Account, error) {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	if !ok || account == nil {
		return nil, errors.New("account not found in context")
	}
	return account, nil
}

// OptionalAccountFromContext はコンテキストからアカウントを取得する。
// 匿名リクエストの場合はnilを返す。
func OptionalAccountFromContext(ctx context.Context) *model.Account {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	if !ok {
		return nil
	}
	return account
}

// ContextWithAccount はコンテキストに認証済みアカウントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
