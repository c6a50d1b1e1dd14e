// Package auth は資格情報の検証、セッション管理、認可判定を提供する。
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hitoshi/formman/internal/model"
)

const (
	// pbkdf2Iterations はPBKDF2-SHA256の反復回数。
	pbkdf2Iterations = 100_000

	// digestBytes はダイジェスト長（バイト）。
	digestBytes = 32

	// saltBytes はソルト長（バイト）。
	saltBytes = 32

	// placeholderPasswordLength は管理者作成アカウントに付与する
	// プレースホルダーパスワードの文字数。
	placeholderPasswordLength = 14
)

// HashPassword は(平文, ソルト)からPBKDF2-SHA256ダイジェストを計算する。
// 決定的な純粋関数であり、同じ入力に対して常に同じhex文字列を返す。
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, digestBytes, sha256.New)
	return hex.EncodeToString(key)
}

// VerifyPassword は保存された資格情報に対して平文パスワードを検証する。
// Unsaltedモードでは保存値との完全一致で比較する。これは移行互換モードであり、
// 該当アカウントはCredential.RequiresResetで再設定対象として通知される。
func VerifyPassword(cred model.Credential, password string) bool {
	switch cred.Mode {
	case model.CredentialModeSalted:
		digest := HashPassword(password, cred.Salt)
		return subtle.ConstantTimeCompare([]byte(digest), []byte(cred.Hash)) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(password), []byte(cred.Hash)) == 1
	}
}

// GenerateSalt は暗号的に安全なランダムソルトを生成する。
// パスワード設定・変更のたびに新しいソルトを発行する。
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewSaltedCredential は新しいソルトを発行し、平文パスワードから資格情報を構築する。
func NewSaltedCredential(password string) (model.Credential, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return model.Credential{}, err
	}
	return model.SaltedCredential(salt, HashPassword(password, salt)), nil
}

// GeneratePlaceholderPassword は管理者作成アカウント用のランダムパスワードを生成する。
// ソルトなしで保存されるため、初回ログイン後に本人によるパスワード再設定が必要になる。
func GeneratePlaceholderPassword() (string, error) {
	b := make([]byte, placeholderPasswordLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	return hex.EncodeToString(b)[:placeholderPasswordLength], nil
}
