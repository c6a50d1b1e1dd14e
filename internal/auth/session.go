package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/repository"
)

const (
	// sessionTokenBytes はセッショントークンのエントロピー（バイト）。
	sessionTokenBytes = 32

	// MinSessionTokenLength はトークンとして受理する最小文字数。
	// これ未満のCookie値は形式不正としてDB照会前に拒否する。
	MinSessionTokenLength = 16
)

// SessionStore はセッショントークンの発行・解決・失効を提供する。
// トークンはアカウント行に1つだけ保持され、新規発行は前のトークンを上書きする。
// 有効期限は発行時刻からのスライディングウィンドウとして解決時に遅延評価される。
type SessionStore struct {
	accounts repository.AccountRepository
	ttl      time.Duration

	now func() time.Time // テストで時刻を制御するための注入ポイント
}

// NewSessionStore はSessionStoreを生成する。
func NewSessionStore(accounts repository.AccountRepository, ttl time.Duration) *SessionStore {
	return &SessionStore{
		accounts: accounts,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL はセッションの有効期間を返す。Cookie Max-Ageの算出に使う。
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Issue は指定アカウントに新しいセッショントークンを発行する。
// 既存のトークンは上書きにより無効化される（複数セッションはサポートしない）。
func (s *SessionStore) Issue(ctx context.Context, accountID string) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if err := s.accounts.UpdateSession(ctx, accountID, token, s.now()); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Resolve はトークンから所有アカウントを解決する。
// 「見つからない」「期限切れ」「アカウント論理削除済み」は区別せず、
// いずれもセッション無効として扱う。
// 極端に短いトークンは照会前に形式不正として拒否する。
func (s *SessionStore) Resolve(ctx context.Context, token string) (*model.Account, error) {
	if len(token) < MinSessionTokenLength {
		return nil, model.NewSessionMalformedError()
	}

	account, session, err := s.accounts.FindBySessionToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if account == nil || session == nil {
		return nil, model.NewSessionInvalidError()
	}
	if account.Deleted() {
		return nil, model.NewSessionInvalidError()
	}
	if s.now().Sub(session.CreatedAt) > s.ttl {
		return nil, model.NewSessionInvalidError()
	}

	return account, nil
}

// Revoke は指定アカウントのセッションを失効させる。
func (s *SessionStore) Revoke(ctx context.Context, accountID string) error {
	if err := s.accounts.ClearSession(ctx, accountID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeToken はトークン一致でセッションを失効させる。
// 一致する行がなくても成功として扱う（ログアウトの冪等性）。
func (s *SessionStore) RevokeToken(ctx context.Context, token string) error {
	if len(token) < MinSessionTokenLength {
		return model.NewSessionMalformedError()
	}
	if err := s.accounts.ClearSessionByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
