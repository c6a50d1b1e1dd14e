package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/repository"
)

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginRateLimited()
	RecordSessionIssued()
	RecordSessionRevoked()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	MinPasswordLength int // 自己変更時の新パスワードの最小文字数
}

// Service は認証に関するビジネスロジックを提供する。
// 資格情報の照合、試行回数制限、セッションの発行・解決・失効、
// パスワード変更フローをまとめて調停する。
type Service struct {
	accounts repository.AccountRepository
	sessions *SessionStore
	limiter  *LoginRateLimiter
	metrics  MetricsRecorder // nil可
	config   ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	accounts repository.AccountRepository,
	sessions *SessionStore,
	limiter *LoginRateLimiter,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		metrics:  metrics,
		config:   config,
	}
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Account *model.Account
	Token   string

	// RequiresReset は資格情報がレガシー（ソルトなし）状態であり、
	// パスワードの再設定が必要であることを示す。
	RequiresReset bool
}

// Login はユーザー名とパスワードで認証し、セッションを発行する。
//
// 処理順序:
//  1. 入力検証。ユーザー名またはパスワードが空なら検証エラー。
//  2. 試行回数制限の確認。DB参照より先に行い、アカウント存在有無に
//     依存するタイミング差を作らない。
//  3. アカウント照会とパスワード検証。アカウント不明とパスワード不一致は
//     同一のエラーを返す（ユーザー列挙の防止）。失敗はカウンターに記録する。
//  4. 成功時はカウンターをクリアし、新しいセッションを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" {
		return nil, model.NewValidationError("username", "required")
	}
	if password == "" {
		return nil, model.NewValidationError("password", "required")
	}

	if !s.limiter.Check(username) {
		slog.Warn("login rate limited", slog.String("username", username))
		s.recordRateLimited()
		return nil, model.NewRateLimitedError()
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if account == nil || account.Deleted() || !VerifyPassword(account.Credential, password) {
		s.limiter.RecordFailure(username)
		s.recordLoginFailure()
		slog.Info("login failed", slog.String("username", username))
		return nil, model.NewInvalidCredentialsError()
	}

	s.limiter.Clear(username)

	token, err := s.sessions.Issue(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.recordLoginSuccess()
	slog.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.Bool("requires_reset", account.Credential.RequiresReset()),
	)

	return &LoginResult{
		Account:       account,
		Token:         token,
		RequiresReset: account.Credential.RequiresReset(),
	}, nil
}

// ResolvePrincipal はCookie値からプリンシパルを解決する。
// 空のCookie値はセッション無効、短すぎる値は形式不正として扱う。
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, model.NewSessionInvalidError()
	}
	return s.sessions.Resolve(ctx, token)
}

// Logout はトークンに対応するセッションを失効させる。
// トークンが形式不正の場合のみエラーを返す。正しい形式であれば、
// 既に失効済みでも成功として扱う（呼び出し側から見て冪等）。
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.RevokeToken(ctx, token); err != nil {
		return err
	}
	s.recordSessionRevoked()
	slog.Info("logout")
	return nil
}

// ChangePassword はパスワード変更フローを実行する。
//
// 自己変更（principal.ID == target.ID）:
//   - 新パスワードは最小文字数を満たすこと。
//   - 既存資格情報がソルト付きの場合、currentPasswordの照合が必要。
//     ソルトなし（管理者作成直後の初回ログイン）の場合は照合を省略する。
//   - 新しいソルトを発行してハッシュを再計算し、ソルト付きで保存する。
//
// 管理者による他アカウントの変更:
//   - currentPasswordの照合は行わない。
//   - newPasswordが空の場合はランダムなプレースホルダーを生成する。
//   - いずれもソルトなしで保存し、対象アカウントをrequires_reset状態に戻す。
//
// 呼び出し側（ハンドラー）が事前にGuardで認可済みであることを前提とする。
// 戻り値は更新後のアカウント。
func (s *Service) ChangePassword(ctx context.Context, principal, target *model.Account, currentPassword, newPassword string) (*model.Account, error) {
	var cred model.Credential

	if principal.ID == target.ID {
		if len(newPassword) < s.config.MinPasswordLength {
			return nil, model.NewPasswordTooShortError(s.config.MinPasswordLength)
		}

		if target.Credential.Mode == model.CredentialModeSalted {
			if currentPassword == "" || !VerifyPassword(target.Credential, currentPassword) {
				return nil, model.NewCurrentPasswordError()
			}
		}

		var err error
		cred, err = NewSaltedCredential(newPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to build credential: %w", err)
		}
	} else {
		// 管理者によるリセット。対象は次回ログインで再設定を求められる。
		password := newPassword
		if password == "" {
			var err error
			password, err = GeneratePlaceholderPassword()
			if err != nil {
				return nil, fmt.Errorf("failed to generate placeholder: %w", err)
			}
		}
		cred = model.UnsaltedCredential(password)
	}

	if err := s.accounts.UpdateCredential(ctx, target.ID, cred); err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	slog.Info("password changed",
		slog.String("account_id", target.ID),
		slog.Bool("self_service", principal.ID == target.ID),
		slog.Bool("requires_reset", cred.RequiresReset()),
	)

	updated := *target
	updated.Credential = cred
	updated.UpdatedAt = time.Now()
	return &updated, nil
}

// SessionTTL はセッションの有効期間を返す。
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// RateLimiter は内部のLoginRateLimiterを返す。ハウスキーピング用。
func (s *Service) RateLimiter() *LoginRateLimiter {
	return s.limiter
}

func (s *Service) recordLoginSuccess() {
	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
		s.metrics.RecordSessionIssued()
	}
}

func (s *Service) recordLoginFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}

func (s *Service) recordRateLimited() {
	if s.metrics != nil {
		s.metrics.RecordLoginRateLimited()
	}
}

func (s *Service) recordSessionRevoked() {
	if s.metrics != nil {
		s.metrics.RecordSessionRevoked()
	}
}
