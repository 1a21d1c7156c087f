package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teammate/internal/model"
)

// PostgresEmailConfirmationRepo はPostgreSQLを使用したメール確認トークンリポジトリ。
type PostgresEmailConfirmationRepo struct {
	db *sql.DB
}

// NewPostgresEmailConfirmationRepo はPostgresEmailConfirmationRepoを生成する。
func NewPostgresEmailConfirmationRepo(db *sql.DB) *PostgresEmailConfirmationRepo {
	return &PostgresEmailConfirmationRepo{db: db}
}

// Create は確認トークンを作成する。
func (r *PostgresEmailConfirmationRepo) Create(ctx context.Context, confirmation *model.EmailConfirmation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_confirmations (token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		confirmation.Token, confirmation.UserID, confirmation.ExpiresAt, confirmation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email confirmation: %w", err)
	}
	return nil
}

// FindByToken は指定トークンの確認レコードを取得する。期限切れの場合はnilを返す。
func (r *PostgresEmailConfirmationRepo) FindByToken(ctx context.Context, token string) (*model.EmailConfirmation, error) {
	confirmation := &model.EmailConfirmation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, created_at
		 FROM email_confirmations
		 WHERE token = $1 AND expires_at > now()`,
		token,
	).Scan(&confirmation.Token, &confirmation.UserID, &confirmation.ExpiresAt, &confirmation.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email confirmation: %w", err)
	}

	return confirmation, nil
}

// DeleteByUserID は指定ユーザーの全確認トークンを削除する。
// 確認完了時に使用済みトークンを無効化する。
func (r *PostgresEmailConfirmationRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_confirmations WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete email confirmations: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EmailConfirmationRepository = (*PostgresEmailConfirmationRepo)(nil)
