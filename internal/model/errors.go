// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, form, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeSessionInvalid     = "SESSION_INVALID"
	ErrCodeSessionMalformed   = "SESSION_MALFORMED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	ErrCodeCurrentPassword    = "CURRENT_PASSWORD_INCORRECT"
	ErrCodeFormExpired        = "FORM_EXPIRED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// アカウントの存在有無を漏らさないため、ユーザー名不明とパスワード不一致で
// 同一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "ユーザー名とパスワードを確認して再度お試しください。",
	}
}

// NewRateLimitedError は認証試行回数超過エラーを生成する。
// 残り時間や試行回数は意図的に含めない。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "ログイン試行回数が多すぎます。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionInvalidError はセッション無効エラーを生成する。
// 「存在しない」「期限切れ」「アカウント削除済み」はすべて同一の扱いとする。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionInvalid,
		Message:  "セッションが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewSessionMalformedError はCookie形式不正エラーを生成する。
// 「正しい形式だが見つからない」場合とは区別される。
func NewSessionMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionMalformed,
		Message:  "セッションCookieの形式が不正です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は認可拒否エラーを生成する。
// リソースの存在有無を漏らさないよう、メッセージは種別ごとの汎用文言とする。
func NewForbiddenError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("他のユーザーの%sを操作できるのは管理者のみです。", resource),
		Category: "auth",
		Action:   "自分が所有するリソースを指定してください。",
	}
}

// NewAdminRequiredError は管理者権限必須エラーを生成する。
func NewAdminRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
// 認可チェックを通過した後にのみ返される。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", resource),
		Category: "form",
		Action:   "識別子を確認してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "このユーザー名は既に使用されています。",
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを指定してください。",
	}
}

// NewCurrentPasswordError は現在のパスワード不一致エラーを生成する。
func NewCurrentPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeCurrentPassword,
		Message:  "現在のパスワードが正しくありません。",
		Category: "validation",
		Action:   "現在のパスワードを確認してください。",
	}
}

// NewFormExpiredError は期限切れフォームへの投稿エラーを生成する。
func NewFormExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFormExpired,
		Message:  "このフォームは受付を終了しています。",
		Category: "form",
		Action:   "フォームの所有者に確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 内部詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
