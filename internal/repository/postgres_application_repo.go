package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teammate/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

// Create は応募を冪等に作成する。
// (post_id, applicant_id) の一意制約に衝突した場合は挿入せずcreated=falseを返す。
// 同一ユーザーの二重応募はエラーではなく既応募として扱う。
func (r *PostgresApplicationRepo) Create(ctx context.Context, application *model.Application) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (id, post_id, applicant_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (post_id, applicant_id) DO NOTHING`,
		application.ID, application.PostID, application.ApplicantID, application.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert application: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListByPostID は指定投稿への応募一覧を応募者プロフィール付きで返す。
// 応募日時の昇順で返す。
func (r *PostgresApplicationRepo) ListByPostID(ctx context.Context, postID string) ([]model.ApplicationWithApplicant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.post_id, a.applicant_id, a.created_at,
		        COALESCE(pr.username, ''), COALESCE(pr.avatar_url, '')
		 FROM applications a
		 LEFT JOIN profiles pr ON pr.id = a.applicant_id
		 WHERE a.post_id = $1
		 ORDER BY a.created_at ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var applications []model.ApplicationWithApplicant
	for rows.Next() {
		var a model.ApplicationWithApplicant
		if err := rows.Scan(
			&a.ID, &a.PostID, &a.ApplicantID, &a.CreatedAt,
			&a.ApplicantUsername, &a.ApplicantAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		applications = append(applications, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application rows: %w", err)
	}

	return applications, nil
}

var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
