package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/formman/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
// セッショントークンはusersテーブルのsession_token/session_created列に保持する。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// accountColumns はアカウント取得時のSELECT列。scanAccountと対で保守する。
const accountColumns = `id, username, admin, password_hash, password_salt, deleted_at, created_at, updated_at`

// scanAccount は1行をmodel.Accountに変換する。
// password_saltがNULLまたは空のアカウントはレガシー（ソルトなし）資格情報として扱う。
func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	account := &model.Account{}
	var hash string
	var salt sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&account.ID, &account.Username, &account.Admin,
		&hash, &salt, &deletedAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if salt.Valid && salt.String != "" {
		account.Credential = model.SaltedCredential(salt.String, hash)
	} else {
		account.Credential = model.UnsaltedCredential(hash)
	}
	if deletedAt.Valid {
		account.DeletedAt = &deletedAt.Time
	}

	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = $1`, id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByUsername はユーザー名でアカウントを検索する。大文字小文字は区別する。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE username = $1`, username)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
// ユーザー名の一意制約違反はUSERNAME_TAKENのAPIErrorに変換する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	var salt any
	if account.Credential.Mode == model.CredentialModeSalted {
		salt = account.Credential.Salt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, admin, password_hash, password_salt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Username, account.Admin,
		account.Credential.Hash, salt,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.NewUsernameTakenError()
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// List は全アカウントを作成日時の降順で返す。論理削除済みは除外する。
func (r *PostgresAccountRepo) List(ctx context.Context) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// UpdateCredential はアカウントの資格情報を更新する。
func (r *PostgresAccountRepo) UpdateCredential(ctx context.Context, id string, cred model.Credential) error {
	var salt any
	if cred.Mode == model.CredentialModeSalted {
		salt = cred.Salt
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, password_salt = $2, updated_at = now() WHERE id = $3`,
		cred.Hash, salt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return nil
}

// UpdateSession はセッショントークンと発行時刻を書き込む（既存トークンは上書き）。
func (r *PostgresAccountRepo) UpdateSession(ctx context.Context, accountID, token string, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET session_token = $1, session_created = $2 WHERE id = $3`,
		token, createdAt, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// FindBySessionToken はトークンに対応するアカウントとセッションを返す。
// 論理削除済みアカウントはSQLで除外する。TTL判定は呼び出し側が行う。
func (r *PostgresAccountRepo) FindBySessionToken(ctx context.Context, token string) (*model.Account, *model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+`, session_created
		 FROM users
		 WHERE session_token = $1 AND deleted_at IS NULL`,
		token,
	)

	account := &model.Account{}
	var hash string
	var salt sql.NullString
	var deletedAt, sessionCreated sql.NullTime

	err := row.Scan(
		&account.ID, &account.Username, &account.Admin,
		&hash, &salt, &deletedAt,
		&account.CreatedAt, &account.UpdatedAt,
		&sessionCreated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}

	if salt.Valid && salt.String != "" {
		account.Credential = model.SaltedCredential(salt.String, hash)
	} else {
		account.Credential = model.UnsaltedCredential(hash)
	}
	if !sessionCreated.Valid {
		return nil, nil, nil
	}

	session := &model.Session{
		Token:     token,
		AccountID: account.ID,
		CreatedAt: sessionCreated.Time,
	}
	return account, session, nil
}

// ClearSession は指定アカウントのセッショントークンを消去する。
func (r *PostgresAccountRepo) ClearSession(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET session_token = NULL, session_created = NULL WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ClearSessionByToken はトークン一致でセッションを消去する。
// 一致する行がなくてもエラーにしない。
func (r *PostgresAccountRepo) ClearSessionByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET session_token = NULL, session_created = NULL WHERE session_token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session by token: %w", err)
	}
	return nil
}

// ClearSessionsBefore は発行時刻がcutoffより古いセッション列を一括消去する。
func (r *PostgresAccountRepo) ClearSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET session_token = NULL, session_created = NULL
		 WHERE session_created IS NOT NULL AND session_created < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// SoftDelete はアカウントを論理削除し、セッションも消去する。
// 監査と履歴参照のため物理削除は行わない。
func (r *PostgresAccountRepo) SoftDelete(ctx context.Context, username string, deletedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET deleted_at = $1, session_token = NULL, session_created = NULL
		 WHERE username = $2 AND deleted_at IS NULL`,
		deletedAt, username,
	)
	if err != nil {
		return false, fmt.Errorf("failed to soft-delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
