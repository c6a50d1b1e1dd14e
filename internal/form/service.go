// Package form はフィードバック収集フォームのドメインロジックを提供する。
package form

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/repository"
)

// formHashBytes は公開ハッシュの乱数バイト数。hex化して14文字になる。
const formHashBytes = 7

// Sanitizer はフォーム定義データのサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	SanitizeJSON(raw json.RawMessage) (json.RawMessage, error)
}

// MetricsRecorder はフォームイベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordFormCreated()
}

// Service はフォームのサービス層。
// 作成、公開一覧、取得、部分更新、期限切れ化（パラノイド削除）を提供する。
type Service struct {
	forms     repository.FormRepository
	sanitizer Sanitizer
	metrics   MetricsRecorder // nil可
	pageSize  int

	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(forms repository.FormRepository, sanitizer Sanitizer, metrics MetricsRecorder, pageSize int) *Service {
	return &Service{
		forms:     forms,
		sanitizer: sanitizer,
		metrics:   metrics,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// CreateInput はフォーム作成の入力。
type CreateInput struct {
	Expiration *time.Time
	Public     bool
	Data       json.RawMessage
}

// Create は新しいフォームを作成する。
// 公開ハッシュは14文字のhex乱数で、連番IDの推測を防ぐ。
// Dataの文字列値はすべてサニタイズして保存される。
func (s *Service) Create(ctx context.Context, owner *model.Account, input CreateInput) (*model.Form, error) {
	if owner == nil {
		return nil, model.NewSessionInvalidError()
	}
	if len(input.Data) == 0 {
		return nil, model.NewValidationError("data", "required")
	}

	data, err := s.sanitizer.SanitizeJSON(input.Data)
	if err != nil {
		return nil, model.NewValidationError("data", "invalid JSON")
	}

	hash, err := generateFormHash()
	if err != nil {
		return nil, fmt.Errorf("failed to generate form hash: %w", err)
	}

	form := &model.Form{
		ID:            uuid.NewString(),
		Hash:          hash,
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		Expiration:    input.Expiration,
		Public:        input.Public,
		Data:          data,
		CreatedAt:     s.now(),
	}

	if err := s.forms.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordFormCreated()
	}
	slog.Info("form created",
		slog.String("form_hash", form.Hash),
		slog.String("owner_id", owner.ID),
		slog.Bool("public", form.Public),
	)

	return form, nil
}

// Get はハッシュでフォームを取得する。
// 公開フォームは誰でも閲覧できる。非公開フォームは所有者と管理者のみ。
// principalは匿名の場合nil。
func (s *Service) Get(ctx context.Context, principal *model.Account, hash string) (*model.Form, error) {
	form, err := s.forms.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}
	if form == nil {
		return nil, model.NewNotFoundError("フォーム")
	}

	if !form.Public {
		if err := auth.Authorize(principal, form.OwnerID, auth.OpRead, "フォーム"); err != nil {
			return nil, err
		}
	}

	return form, nil
}

// ListPublic は公開中かつ期限内のフォーム一覧をカーソルページネーションで返す。
// limitが0以下またはページサイズを超える場合はページサイズに丸める。
func (s *Service) ListPublic(ctx context.Context, cursor time.Time, limit int) ([]*model.Form, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	forms, err := s.forms.ListPublic(ctx, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return forms, nil
}

// UpdateInput はフォーム部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Expiration **time.Time // 外側がnil: 変更なし。内側がnil: 期限解除。
	Public     *bool
	Data       json.RawMessage // nil: 変更なし
}

// Update はフォームを部分更新する。所有者または管理者のみが実行できる。
// 認可は存在情報を返す前に評価される。
func (s *Service) Update(ctx context.Context, principal *model.Account, hash string, input UpdateInput) (*model.Form, error) {
	form, err := s.forms.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}
	if form == nil {
		return nil, model.NewNotFoundError("フォーム")
	}

	if err := auth.Authorize(principal, form.OwnerID, auth.OpWrite, "フォーム"); err != nil {
		return nil, err
	}

	update := repository.FormUpdate{
		Expiration: input.Expiration,
		Public:     input.Public,
	}
	if input.Data != nil {
		data, err := s.sanitizer.SanitizeJSON(input.Data)
		if err != nil {
			return nil, model.NewValidationError("data", "invalid JSON")
		}
		str := string(data)
		update.Data = &str
	}

	updated, err := s.forms.Update(ctx, hash, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update form: %w", err)
	}
	if !updated {
		return nil, model.NewNotFoundError("フォーム")
	}

	slog.Info("form updated",
		slog.String("form_hash", hash),
		slog.String("principal_id", principal.ID),
	)

	return s.forms.FindByHash(ctx, hash)
}

// Expire はフォームを期限切れにする（パラノイド削除）。
// 行は物理削除せず、期限を現在時刻に設定して以後の投稿と公開一覧から外す。
// 既に期限切れのフォームには何もしない（冪等）。
func (s *Service) Expire(ctx context.Context, principal *model.Account, hash string) error {
	form, err := s.forms.FindByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to find form: %w", err)
	}
	if form == nil {
		return model.NewNotFoundError("フォーム")
	}

	if err := auth.Authorize(principal, form.OwnerID, auth.OpDelete, "フォーム"); err != nil {
		return err
	}

	changed, err := s.forms.Expire(ctx, hash, s.now())
	if err != nil {
		return fmt.Errorf("failed to expire form: %w", err)
	}

	slog.Info("form expired",
		slog.String("form_hash", hash),
		slog.String("principal_id", principal.ID),
		slog.Bool("changed", changed),
	)

	return nil
}

// generateFormHash は公開URLに使う14文字のhexハッシュを生成する。
func generateFormHash() (string, error) {
	b := make([]byte, formHashBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
