package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/formman/internal/model"
)

// PostgresFormRepo はPostgreSQLを使用したフォームリポジトリ。
type PostgresFormRepo struct {
	db *sql.DB
}

// NewPostgresFormRepo はPostgresFormRepoを生成する。
func NewPostgresFormRepo(db *sql.DB) *PostgresFormRepo {
	return &PostgresFormRepo{db: db}
}

// FindByHash は公開ハッシュでフォームを取得する。見つからない場合はnilを返す。
// 所有者のユーザー名とフィードバック件数をJOINで供給する。
func (r *PostgresFormRepo) FindByHash(ctx context.Context, hash string) (*model.Form, error) {
	form := &model.Form{}
	var expiration sql.NullTime
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT forms.id, forms.hash, forms.user_id, users.username,
		        forms.expiration, forms.public, forms.data, forms.created_at,
		        COUNT(feedbacks.id)
		 FROM forms
		 LEFT JOIN users ON forms.user_id = users.id
		 LEFT JOIN feedbacks ON forms.hash = feedbacks.form_hash
		 WHERE forms.hash = $1
		 GROUP BY forms.id, users.username`,
		hash,
	).Scan(
		&form.ID, &form.Hash, &form.OwnerID, &form.OwnerUsername,
		&expiration, &form.Public, &data, &form.CreatedAt,
		&form.FeedbackCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}

	if expiration.Valid {
		form.Expiration = &expiration.Time
	}
	form.Data = data

	return form, nil
}

// ListPublic は公開中かつ期限内のフォーム一覧をカーソルページネーションで返す。
// 所有者が論理削除済みのフォームは除外する。
func (r *PostgresFormRepo) ListPublic(ctx context.Context, cursor time.Time, limit int) ([]*model.Form, error) {
	if cursor.IsZero() {
		cursor = time.Now().Add(time.Hour)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT forms.id, forms.hash, forms.user_id, users.username,
		        forms.expiration, forms.public, forms.data, forms.created_at,
		        COUNT(feedbacks.id)
		 FROM forms
		 LEFT JOIN users ON forms.user_id = users.id
		 LEFT JOIN feedbacks ON forms.hash = feedbacks.form_hash
		 WHERE forms.public
		   AND forms.created_at < $1
		   AND (forms.expiration IS NULL OR forms.expiration > now())
		   AND users.deleted_at IS NULL
		 GROUP BY forms.id, users.username
		 ORDER BY forms.created_at DESC
		 LIMIT $2`,
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var forms []*model.Form
	for rows.Next() {
		form := &model.Form{}
		var expiration sql.NullTime
		var data []byte

		err := rows.Scan(
			&form.ID, &form.Hash, &form.OwnerID, &form.OwnerUsername,
			&expiration, &form.Public, &data, &form.CreatedAt,
			&form.FeedbackCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		if expiration.Valid {
			form.Expiration = &expiration.Time
		}
		form.Data = data
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forms: %w", err)
	}

	return forms, nil
}

// Create はフォームを作成する。
func (r *PostgresFormRepo) Create(ctx context.Context, form *model.Form) error {
	var expiration any
	if form.Expiration != nil {
		expiration = *form.Expiration
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO forms (id, hash, user_id, expiration, public, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		form.ID, form.Hash, form.OwnerID, expiration, form.Public, []byte(form.Data), form.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

// Update はフォームの部分更新を行う。nilのフィールドは変更しない。
func (r *PostgresFormRepo) Update(ctx context.Context, hash string, update FormUpdate) (bool, error) {
	var sets []string
	var args []any

	if update.Expiration != nil {
		if *update.Expiration != nil {
			args = append(args, **update.Expiration)
		} else {
			args = append(args, nil)
		}
		sets = append(sets, fmt.Sprintf("expiration = $%d", len(args)))
	}
	if update.Public != nil {
		args = append(args, *update.Public)
		sets = append(sets, fmt.Sprintf("public = $%d", len(args)))
	}
	if update.Data != nil {
		args = append(args, []byte(*update.Data))
		sets = append(sets, fmt.Sprintf("data = $%d", len(args)))
	}
	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, hash)
	query := fmt.Sprintf(`UPDATE forms SET %s WHERE hash = $%d`,
		strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update form: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Expire はフォームの期限をexpiredAtに設定する。既に期限切れの場合は変更しない。
func (r *PostgresFormRepo) Expire(ctx context.Context, hash string, expiredAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE forms
		 SET expiration = $1
		 WHERE hash = $2 AND (expiration IS NULL OR expiration > $1)`,
		expiredAt, hash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire form: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteFeedbacksOfFormsExpiredBefore はcutoffより前に期限切れとなった
// フォームのフィードバックを削除する。ハウスキーピング用。
func (r *PostgresFormRepo) DeleteFeedbacksOfFormsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM feedbacks
		 USING forms
		 WHERE feedbacks.form_hash = forms.hash
		   AND forms.expiration IS NOT NULL
		   AND forms.expiration < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale feedbacks: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ FormRepository = (*PostgresFormRepo)(nil)
