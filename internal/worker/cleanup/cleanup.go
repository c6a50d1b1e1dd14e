// Package cleanup はセッションと期限切れフォームのハウスキーピングジョブを提供する。
// TTLを超過したセッション行の消去と、期限切れから保持期間（デフォルト180日）を
// 超えたフォームのフィードバック削除を日次バッチで行う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionCleaner はTTL超過セッションの消去を抽象化するインターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type SessionCleaner interface {
	ClearSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FeedbackCleaner は期限切れフォームのフィードバック削除を抽象化するインターフェース。
// repository.FormRepositoryの部分集合として定義する。
type FeedbackCleaner interface {
	DeleteFeedbacksOfFormsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob はセッションとフィードバックのハウスキーピングジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions  SessionCleaner
	feedbacks FeedbackCleaner
	logger    *slog.Logger

	SessionTTL    time.Duration // セッションの有効期間（デフォルト: 720時間）
	RetentionDays int           // 期限切れフォームのフィードバック保持日数（デフォルト: 180）

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトはセッションTTL 720時間、フィードバック保持180日。
func NewCleanupJob(sessions SessionCleaner, feedbacks FeedbackCleaner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		feedbacks:     feedbacks,
		logger:        logger,
		SessionTTL:    720 * time.Hour,
		RetentionDays: 180,
		now:           time.Now,
	}
}

// Run はTTL超過セッションを消去し、期限切れフォームの古いフィードバックを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
// セッション消去に失敗してもフィードバック削除は試行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	var firstErr error

	sessionCutoff := start.Add(-j.SessionTTL)
	clearedSessions, err := j.sessions.ClearSessionsBefore(ctx, sessionCutoff)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", sessionCutoff),
		)
		firstErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	feedbackCutoff := start.AddDate(0, 0, -j.RetentionDays)
	deletedFeedbacks, err := j.feedbacks.DeleteFeedbacksOfFormsExpiredBefore(ctx, feedbackCutoff)
	if err != nil {
		j.logger.Error("フィードバッククリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("フィードバッククリーンアップの実行に失敗: %w", err)
		}
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("cleared_sessions", clearedSessions),
		slog.Int64("deleted_feedbacks", deletedFeedbacks),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
