// Package application はアイデア投稿への応募を提供する。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
)

// ApplyResult は応募操作の結果を表す。
// 同一ユーザーの2回目以降の応募はエラーではなくAlreadyApplied=trueで返る。
type ApplyResult struct {
	Application    *model.Application
	AlreadyApplied bool
}

// Service は応募に関するビジネスロジックを提供する。
type Service struct {
	appRepo  repository.ApplicationRepository
	postRepo repository.PostRepository
}

// NewService はServiceを生成する。
func NewService(appRepo repository.ApplicationRepository, postRepo repository.PostRepository) *Service {
	return &Service{appRepo: appRepo, postRepo: postRepo}
}

// Apply は投稿への応募を記録する。冪等で、重複応募は黙って吸収される。
// 重複の判定はapplicationsテーブルのunique(post_id, applicant_id)制約による。
func (s *Service) Apply(ctx context.Context, postID, applicantID string) (*ApplyResult, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	app := &model.Application{
		ID:          uuid.New().String(),
		PostID:      postID,
		ApplicantID: applicantID,
		CreatedAt:   time.Now(),
	}

	created, err := s.appRepo.Create(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	if !created {
		slog.Info("duplicate application absorbed",
			slog.String("post_id", postID),
			slog.String("applicant_id", applicantID),
		)
		return &ApplyResult{AlreadyApplied: true}, nil
	}

	slog.Info("application created",
		slog.String("application_id", app.ID),
		slog.String("post_id", postID),
		slog.String("applicant_id", applicantID),
	)
	return &ApplyResult{Application: app}, nil
}

// ListByPost は投稿への応募一覧を応募者プロフィール付きで返す。
// 投稿者本人のみ閲覧できる。
func (s *Service) ListByPost(ctx context.Context, postID, requesterID string) ([]model.ApplicationWithApplicant, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if post.UserID != requesterID {
		return nil, model.NewForbiddenError()
	}

	apps, err := s.appRepo.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	if apps == nil {
		apps = []model.ApplicationWithApplicant{}
	}
	return apps, nil
}
