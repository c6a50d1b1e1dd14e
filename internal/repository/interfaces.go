// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/formman/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
// セッショントークンはアカウント行の列として保持される（アカウントごとに1つ）。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	// 論理削除済みアカウントも返す（呼び出し側がDeletedAtを判定する）。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByUsername はユーザー名でアカウントを検索する。大文字小文字は区別する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// Create はアカウントを作成する。
	// ユーザー名重複の場合はmodel.ErrCodeUsernameTakenのAPIErrorを返す。
	Create(ctx context.Context, account *model.Account) error

	// List は全アカウントを作成日時の降順で返す。論理削除済みは除外する。
	List(ctx context.Context) ([]*model.Account, error)

	// UpdateCredential はアカウントの資格情報（ソルト・ハッシュ）を更新する。
	UpdateCredential(ctx context.Context, id string, cred model.Credential) error

	// UpdateSession はセッショントークンと発行時刻を書き込む。
	// 既存のトークンは上書きされ、以後は解決できなくなる。
	UpdateSession(ctx context.Context, accountID, token string, createdAt time.Time) error

	// FindBySessionToken はトークンに対応するアカウントとセッションを返す。
	// 論理削除済みアカウントのトークンは存在しない扱いとし、nilを返す。
	// TTL判定は呼び出し側（SessionStore）が行う。
	FindBySessionToken(ctx context.Context, token string) (*model.Account, *model.Session, error)

	// ClearSession は指定アカウントのセッショントークンを消去する。
	ClearSession(ctx context.Context, accountID string) error

	// ClearSessionByToken はトークン一致でセッションを消去する。
	// 一致する行がなくてもエラーにしない（ログアウトの冪等性）。
	ClearSessionByToken(ctx context.Context, token string) error

	// ClearSessionsBefore は発行時刻がcutoffより古いセッション列を一括消去し、
	// 消去件数を返す。ハウスキーピング用であり、正しさはこれに依存しない。
	ClearSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// SoftDelete はアカウントを論理削除し、セッションも消去する。
	// 対象が存在しない（または削除済み）場合はfalseを返す。
	SoftDelete(ctx context.Context, username string, deletedAt time.Time) (bool, error)
}

// FormRepository はフォームデータの永続化インターフェース。
type FormRepository interface {
	// FindByHash は公開ハッシュでフォームを取得する。見つからない場合はnilを返す。
	// 所有者のユーザー名とフィードバック件数をJOINで供給する。
	FindByHash(ctx context.Context, hash string) (*model.Form, error)

	// ListPublic は公開中かつ期限内のフォーム一覧をカーソルページネーションで返す。
	// 所有者が論理削除済みのフォームは除外する。
	// cursorがゼロ値の場合は先頭から取得する。
	ListPublic(ctx context.Context, cursor time.Time, limit int) ([]*model.Form, error)

	// Create はフォームを作成する。
	Create(ctx context.Context, form *model.Form) error

	// Update はフォームの部分更新を行う。nilのフィールドは変更しない。
	// 更新対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, hash string, update FormUpdate) (bool, error)

	// Expire はフォームの期限をexpiredAtに設定する。
	// 既に期限切れのフォームは変更しない。変更があった場合はtrueを返す。
	Expire(ctx context.Context, hash string, expiredAt time.Time) (bool, error)

	// DeleteFeedbacksOfFormsExpiredBefore はcutoffより前に期限切れとなった
	// フォームのフィードバックを削除し、削除件数を返す。ハウスキーピング用。
	DeleteFeedbacksOfFormsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FormUpdate はフォーム部分更新の入力。nilのフィールドは変更しない。
type FormUpdate struct {
	Expiration **time.Time // 外側がnil: 変更なし。内側がnil: 期限解除。
	Public     *bool
	Data       *string
}

// FeedbackRepository はフィードバックデータの永続化インターフェース。
type FeedbackRepository interface {
	// Create はフィードバックを作成する。
	Create(ctx context.Context, feedback *model.Feedback) error

	// FindByID は指定IDのフィードバックを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feedback, error)

	// ListByFormHash はフォームのフィードバック一覧を作成日時の降順で返す。
	// cursorがゼロ値の場合は先頭から取得する。
	ListByFormHash(ctx context.Context, formHash string, cursor time.Time, limit int) ([]*model.Feedback, error)
}
