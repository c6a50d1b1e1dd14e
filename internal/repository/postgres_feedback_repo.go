package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/formman/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

// Create はフィードバックを作成する。user_idはnil（匿名投稿）を許容する。
func (r *PostgresFeedbackRepo) Create(ctx context.Context, feedback *model.Feedback) error {
	var accountID any
	if feedback.AccountID != nil {
		accountID = *feedback.AccountID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedbacks (id, form_hash, user_id, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		feedback.ID, feedback.FormHash, accountID, []byte(feedback.Data), feedback.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// FindByID は指定IDのフィードバックを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedbackRepo) FindByID(ctx context.Context, id string) (*model.Feedback, error) {
	feedback := &model.Feedback{}
	var accountID, username sql.NullString
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT feedbacks.id, feedbacks.form_hash, feedbacks.user_id,
		        users.username, feedbacks.data, feedbacks.created_at
		 FROM feedbacks
		 LEFT JOIN users ON feedbacks.user_id = users.id
		 WHERE feedbacks.id = $1`,
		id,
	).Scan(&feedback.ID, &feedback.FormHash, &accountID, &username, &data, &feedback.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find feedback: %w", err)
	}

	if accountID.Valid {
		feedback.AccountID = &accountID.String
	}
	feedback.Username = username.String
	feedback.Data = data

	return feedback, nil
}

// ListByFormHash はフォームのフィードバック一覧を作成日時の降順で返す。
func (r *PostgresFeedbackRepo) ListByFormHash(ctx context.Context, formHash string, cursor time.Time, limit int) ([]*model.Feedback, error) {
	if cursor.IsZero() {
		cursor = time.Now().Add(time.Hour)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT feedbacks.id, feedbacks.form_hash, feedbacks.user_id,
		        users.username, feedbacks.data, feedbacks.created_at
		 FROM feedbacks
		 LEFT JOIN users ON feedbacks.user_id = users.id
		 WHERE feedbacks.form_hash = $1 AND feedbacks.created_at < $2
		 ORDER BY feedbacks.created_at DESC
		 LIMIT $3`,
		formHash, cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedbacks: %w", err)
	}
	defer rows.Close()

	var feedbacks []*model.Feedback
	for rows.Next() {
		feedback := &model.Feedback{}
		var accountID, username sql.NullString
		var data []byte

		err := rows.Scan(&feedback.ID, &feedback.FormHash, &accountID, &username, &data, &feedback.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if accountID.Valid {
			feedback.AccountID = &accountID.String
		}
		feedback.Username = username.String
		feedback.Data = data
		feedbacks = append(feedbacks, feedback)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedbacks: %w", err)
	}

	return feedbacks, nil
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
