// Package user はアカウント管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/repository"
)

// maxUsernameLength はユーザー名の最大文字数。usersテーブルの列幅に合わせる。
const maxUsernameLength = 64

// Service はアカウント管理のサービス層。
// 管理者によるアカウント作成・一覧・論理削除と、本人・管理者による参照を提供する。
// パスワード変更はauth.Serviceが担当する。
type Service struct {
	accounts repository.AccountRepository

	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository) *Service {
	return &Service{
		accounts: accounts,
		now:      time.Now,
	}
}

// CreateResult はアカウント作成の結果。
// Placeholderはパスワード未指定時に生成された仮パスワードで、
// 作成した管理者に一度だけ表示される。
type CreateResult struct {
	Account     *model.Account
	Placeholder string
}

// Create は新しいアカウントを作成する。管理者のみが実行できる。
//
// パスワードが未指定の場合はランダムな仮パスワードを生成する。
// いずれの場合も資格情報はソルトなしで保存され、対象ユーザーは
// 初回ログイン後にパスワードの再設定を求められる。
func (s *Service) Create(ctx context.Context, principal *model.Account, username, password string, admin bool) (*CreateResult, error) {
	if err := auth.RequireAdmin(principal); err != nil {
		return nil, err
	}

	if username == "" {
		return nil, model.NewValidationError("username", "required")
	}
	if len(username) > maxUsernameLength {
		return nil, model.NewValidationError("username", fmt.Sprintf("must be at most %d characters", maxUsernameLength))
	}
	// "me"はプリンシパル自身を指すエイリアスとして予約されている
	if username == auth.SelfAlias {
		return nil, model.NewValidationError("username", "reserved")
	}

	var placeholder string
	if password == "" {
		var err error
		password, err = auth.GeneratePlaceholderPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to generate placeholder: %w", err)
		}
		placeholder = password
	}

	account := &model.Account{
		ID:         uuid.NewString(),
		Username:   username,
		Admin:      admin,
		Credential: model.UnsaltedCredential(password),
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("username", username),
		slog.Bool("admin", admin),
		slog.String("created_by", principal.ID),
	)

	return &CreateResult{Account: account, Placeholder: placeholder}, nil
}

// List は全アカウントを作成日時の降順で返す。管理者のみが実行できる。
// 論理削除済みアカウントは含まない。
func (s *Service) List(ctx context.Context, principal *model.Account) ([]*model.Account, error) {
	if err := auth.RequireAdmin(principal); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Get はユーザー名でアカウントを取得する。本人または管理者のみが実行できる。
// "me"はプリンシパル自身に解決される。
// 認可は存在確認より先に評価され、拒否時はアカウントの存在有無を漏らさない。
func (s *Service) Get(ctx context.Context, principal *model.Account, username string) (*model.Account, error) {
	if principal == nil {
		return nil, model.NewSessionInvalidError()
	}

	username = auth.ResolveSelfAlias(principal, username)

	if !principal.Admin && username != principal.Username {
		return nil, model.NewForbiddenError("アカウント")
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || account.Deleted() {
		return nil, model.NewNotFoundError("アカウント")
	}
	return account, nil
}

// Delete はアカウントを論理削除する。管理者のみが実行できる。
// 行は物理削除せず、deleted_atを設定してセッションを消去する。
// 所有フォームとフィードバックは保持される（一覧からは所有者削除で除外される）。
func (s *Service) Delete(ctx context.Context, principal *model.Account, username string) error {
	if err := auth.RequireAdmin(principal); err != nil {
		return err
	}

	username = auth.ResolveSelfAlias(principal, username)

	deleted, err := s.accounts.SoftDelete(ctx, username, s.now())
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("アカウント")
	}

	slog.Info("account deleted",
		slog.String("username", username),
		slog.String("deleted_by", principal.ID),
	)

	return nil
}
