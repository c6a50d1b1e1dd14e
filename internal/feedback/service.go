// Package feedback はフォームへの投稿のドメインロジックを提供する。
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/formman/internal/auth"
	"github.com/hitoshi/formman/internal/model"
	"github.com/hitoshi/formman/internal/repository"
)

// Sanitizer は投稿データのサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	SanitizeJSON(raw json.RawMessage) (json.RawMessage, error)
}

// MetricsRecorder は投稿イベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordFeedbackSubmitted(anonymous bool)
}

// Service はフィードバックのサービス層。
// 匿名または認証済みの投稿と、所有者・管理者による一覧を提供する。
type Service struct {
	forms     repository.FormRepository
	feedbacks repository.FeedbackRepository
	sanitizer Sanitizer
	metrics   MetricsRecorder // nil可
	pageSize  int

	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(
	forms repository.FormRepository,
	feedbacks repository.FeedbackRepository,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	pageSize int,
) *Service {
	return &Service{
		forms:     forms,
		feedbacks: feedbacks,
		sanitizer: sanitizer,
		metrics:   metrics,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// Submit はフォームへフィードバックを投稿する。
// principalがnilの場合は匿名投稿として記録される。
// 期限切れフォームへの投稿は拒否される（読み取り時点の述語で判定）。
func (s *Service) Submit(ctx context.Context, principal *model.Account, formHash string, data json.RawMessage) (*model.Feedback, error) {
	if len(data) == 0 {
		return nil, model.NewValidationError("data", "required")
	}

	form, err := s.forms.FindByHash(ctx, formHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}
	if form == nil {
		return nil, model.NewNotFoundError("フォーム")
	}
	if form.Expired(s.now()) {
		return nil, model.NewFormExpiredError()
	}

	sanitized, err := s.sanitizer.SanitizeJSON(data)
	if err != nil {
		return nil, model.NewValidationError("data", "invalid JSON")
	}

	feedback := &model.Feedback{
		ID:        uuid.NewString(),
		FormHash:  formHash,
		Data:      sanitized,
		CreatedAt: s.now(),
	}
	if principal != nil {
		feedback.AccountID = &principal.ID
		feedback.Username = principal.Username
	}

	if err := s.feedbacks.Create(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	anonymous := principal == nil
	if s.metrics != nil {
		s.metrics.RecordFeedbackSubmitted(anonymous)
	}
	slog.Info("feedback submitted",
		slog.String("form_hash", formHash),
		slog.Bool("anonymous", anonymous),
	)

	return feedback, nil
}

// List はフォームのフィードバック一覧を作成日時の降順で返す。
// フォームの所有者と管理者のみが閲覧できる。
// limitが0以下またはページサイズを超える場合はページサイズに丸める。
func (s *Service) List(ctx context.Context, principal *model.Account, formHash string, cursor time.Time, limit int) ([]*model.Feedback, error) {
	form, err := s.forms.FindByHash(ctx, formHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}
	if form == nil {
		return nil, model.NewNotFoundError("フォーム")
	}

	if err := auth.Authorize(principal, form.OwnerID, auth.OpRead, "フィードバック"); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	feedbacks, err := s.feedbacks.ListByFormHash(ctx, formHash, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedbacks: %w", err)
	}
	return feedbacks, nil
}
