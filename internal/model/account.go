// Package model はドメインモデルを定義する。
package model

import "time"

// CredentialMode は保存されたパスワード資格情報の形式を表す。
type CredentialMode string

const (
	// CredentialModeUnsalted はソルトなしのレガシー資格情報。
	// 管理者がアカウントを作成した直後の移行状態であり、password_hashには
	// 平文のプレースホルダーパスワードがそのまま格納されている。
	// セキュリティ機能ではなく、初回ログイン後のパスワード再設定を前提とする。
	CredentialModeUnsalted CredentialMode = "unsalted"

	// CredentialModeSalted はソルト付きでハッシュ化された通常の資格情報。
	CredentialModeSalted CredentialMode = "salted"
)

// Credential はアカウントのパスワード資格情報を表す。
// Modeで分岐を網羅的に扱えるよう、nullableなソルト列ではなくタグ付きの形式で保持する。
type Credential struct {
	Mode CredentialMode
	Hash string
	Salt string // Mode == CredentialModeSalted のときのみ有効
}

// UnsaltedCredential はレガシー（ソルトなし）資格情報を生成する。
func UnsaltedCredential(hash string) Credential {
	return Credential{Mode: CredentialModeUnsalted, Hash: hash}
}

// SaltedCredential はソルト付き資格情報を生成する。
func SaltedCredential(salt, hash string) Credential {
	return Credential{Mode: CredentialModeSalted, Salt: salt, Hash: hash}
}

// RequiresReset はパスワードの再設定が必要かどうかを返す。
// ソルトが存在しない資格情報は常に再設定対象となる。
func (c Credential) RequiresReset() bool {
	return c.Mode != CredentialModeSalted
}

// Account はサービス利用アカウントを表す。
type Account struct {
	ID         string
	Username   string
	Admin      bool
	Credential Credential
	DeletedAt  *time.Time // 論理削除。非nilのアカウントは認証もプリンシパル解決もされない。
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Deleted はアカウントが論理削除済みかどうかを返す。
func (a *Account) Deleted() bool {
	return a.DeletedAt != nil
}

// Session はアカウントのログインセッションを表す。
// アカウントごとに同時に1つだけ保持され、新規発行時は前のトークンを上書きする。
type Session struct {
	Token     string
	AccountID string
	CreatedAt time.Time
}
