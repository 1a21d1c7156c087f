package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teammate/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.UserID, post.Title, post.Body, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, body, created_at
		 FROM posts
		 WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.UserID, &post.Title, &post.Body, &post.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

// List は投稿一覧を作成日時の降順で返す。
// queryが空でない場合、タイトルまたは本文への部分一致（大文字小文字無視）で絞り込む。
// 投稿者プロフィールはLEFT JOINで結合されるため、
// プロフィール未作成の投稿者でも投稿は一覧に含まれる。
func (r *PostgresPostRepo) List(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error) {
	sqlQuery := `
		SELECT p.id, p.user_id, p.title, p.body, p.created_at,
		       COALESCE(pr.username, ''), COALESCE(pr.avatar_url, '')
		FROM posts p
		LEFT JOIN profiles pr ON pr.id = p.user_id`

	args := []interface{}{}
	if query != "" {
		sqlQuery += ` WHERE p.title ILIKE $1 OR p.body ILIKE $1`
		args = append(args, "%"+query+"%")
	}

	sqlQuery += fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []model.PostWithAuthor
	for rows.Next() {
		var p model.PostWithAuthor
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Title, &p.Body, &p.CreatedAt,
			&p.AuthorUsername, &p.AuthorAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
