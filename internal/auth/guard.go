package auth

import "github.com/hitoshi/formman/internal/model"

// Operation は認可判定の対象となる操作種別。
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// SelfAlias はプリンシパル自身を指すユーザー名のエイリアス。
// 認可判定の前に純粋な識別子置換として解決され、認可の迂回にはならない。
const SelfAlias = "me"

// Authorize はプリンシパルとリソース所有者の認可判定を行う。
//
// 規則（評価順）:
//  1. プリンシパル不在 → 拒否。匿名許可の操作はGuardを通さず、
//     ルーティング側で素通しする。
//  2. 管理者 → 無条件に許可。
//  3. principal.ID == ownerID → 許可。
//  4. それ以外 → 拒否。リソースの存在有無を漏らさないよう、
//     メッセージは種別ごとの汎用文言のみとする。
//
// resourceはエラーメッセージの文言にのみ使われる（例: "フォーム", "アカウント"）。
// 存在確認（404）は認可を通過した後にのみ行うこと。
func Authorize(principal *model.Account, ownerID string, op Operation, resource string) error {
	if principal == nil {
		return model.NewSessionInvalidError()
	}
	if principal.Admin {
		return nil
	}
	if principal.ID == ownerID {
		return nil
	}
	return model.NewForbiddenError(resource)
}

// RequireAdmin は管理者権限を要求する操作の認可判定を行う。
func RequireAdmin(principal *model.Account) error {
	if principal == nil {
		return model.NewSessionInvalidError()
	}
	if !principal.Admin {
		return model.NewAdminRequiredError()
	}
	return nil
}

// ResolveSelfAlias はユーザー名の"me"エイリアスをプリンシパル自身の
// ユーザー名に解決する。プリンシパル不在の場合はそのまま返す。
func ResolveSelfAlias(principal *model.Account, username string) string {
	if username == SelfAlias && principal != nil {
		return principal.Username
	}
	return username
}
