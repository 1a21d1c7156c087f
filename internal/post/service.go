// Package post はアイデア投稿の作成・取得・検索を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
	"github.com/hitoshi/teammate/internal/security"
)

const (
	// maxTitleLength はタイトルの最大文字数。
	maxTitleLength = 200
	// defaultListLimit は一覧取得のデフォルト件数。
	defaultListLimit = 100
)

// Service はアイデア投稿に関するビジネスロジックを提供する。
type Service struct {
	postRepo  repository.PostRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(postRepo repository.PostRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{postRepo: postRepo, sanitizer: sanitizer}
}

// Create は新しいアイデア投稿を作成する。
// タイトルは必須。本文は保存前にサニタイズされる。
// 作成された投稿は一覧の先頭（created_at降順）に現れる。
func (s *Service) Create(ctx context.Context, userID, title, body string) (*model.Post, error) {
	title = strings.TrimSpace(s.sanitizer.SanitizeStrict(title))
	if title == "" {
		return nil, model.NewEmptyTitleError()
	}
	if len([]rune(title)) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}

	post := &model.Post{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Body:      s.sanitizer.Sanitize(body),
		CreatedAt: time.Now(),
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", userID),
	)
	return post, nil
}

// Get は指定IDの投稿を取得する。
func (s *Service) Get(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// List は投稿一覧を作成日時の降順で返す。
// queryが空でない場合はタイトルと本文への部分一致で絞り込む。
// 読み取りに失敗した場合は空のリストを返し、ERRORログを記録する。
// 一覧画面を読み取り障害で壊さないための仕様。
func (s *Service) List(ctx context.Context, query string) []model.PostWithAuthor {
	posts, err := s.postRepo.List(ctx, strings.TrimSpace(query), defaultListLimit)
	if err != nil {
		slog.Error("failed to list posts, returning empty list",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return []model.PostWithAuthor{}
	}
	if posts == nil {
		return []model.PostWithAuthor{}
	}
	return posts
}
