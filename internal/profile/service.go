package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
	"github.com/hitoshi/teammate/internal/security"
)

// maxUsernameLength はユーザー名の最大文字数。
const maxUsernameLength = 50

// EventPublisher はプロフィール変更イベントの発行インターフェース。
// 同一ユーザーの開いている画面に変更を即時反映させるために使用する。
type EventPublisher interface {
	PublishProfileUpdated(userID string)
}

// Service はプロフィールの取得・編集・アバター管理を提供する。
// Synchronizerと異なり、ユーザー自身の編集は設定済みフィールドの上書きを許可する。
type Service struct {
	profileRepo repository.ProfileRepository
	sanitizer   security.ContentSanitizerService
	verifier    AvatarVerifier
	avatars     *AvatarStore
	events      EventPublisher
}

// NewService はServiceを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	sanitizer security.ContentSanitizerService,
	verifier AvatarVerifier,
	avatars *AvatarStore,
	events EventPublisher,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		sanitizer:   sanitizer,
		verifier:    verifier,
		avatars:     avatars,
		events:      events,
	}
}

// Get はユーザーのプロフィールを取得する。
// 同期がまだ走っていない場合は空のプロフィールを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if profile == nil {
		return &model.Profile{ID: userID}, nil
	}
	return profile, nil
}

// Update はユーザー名とアバターURLを更新する。
// 空の入力フィールドは既存値を保持する（部分更新）。
// アバターURLはSSRFガードと画像タイプの検証を通過する必要がある。
func (s *Service) Update(ctx context.Context, userID, username, avatarURL string) (*model.Profile, error) {
	username = strings.TrimSpace(s.sanitizer.SanitizeStrict(username))
	if len([]rune(username)) > maxUsernameLength {
		username = string([]rune(username)[:maxUsernameLength])
	}

	if avatarURL != "" {
		// 自前のアップロード済みアバターへのパスは外部検証の対象外
		if !strings.HasPrefix(avatarURL, AvatarPathPrefix) {
			if err := s.verifier.VerifyImageURL(ctx, avatarURL); err != nil {
				return nil, model.NewInvalidAvatarURLError(err.Error())
			}
		}
	}

	existing, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile := &model.Profile{ID: userID}
	now := time.Now()
	if existing != nil {
		*profile = *existing
	} else {
		profile.CreatedAt = now
	}

	if username != "" {
		profile.Username = username
	}
	if avatarURL != "" {
		profile.AvatarURL = avatarURL
	}
	profile.UpdatedAt = now

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	s.publishUpdated(userID)

	slog.Info("profile updated",
		slog.String("user_id", userID),
		slog.String("username", profile.Username),
	)
	return profile, nil
}

// UploadAvatar はアップロードされた画像をアバターとして保存する。
// 保存後、プロフィールのavatar_urlを公開パスに更新する。
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*model.Profile, error) {
	publicPath, err := s.avatars.Save(userID, r)
	if err != nil {
		return nil, err
	}

	existing, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile := &model.Profile{ID: userID}
	now := time.Now()
	if existing != nil {
		*profile = *existing
	} else {
		profile.CreatedAt = now
	}
	profile.AvatarURL = publicPath
	profile.UpdatedAt = now

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	s.publishUpdated(userID)

	slog.Info("avatar uploaded",
		slog.String("user_id", userID),
		slog.String("path", publicPath),
	)
	return profile, nil
}

func (s *Service) publishUpdated(userID string) {
	if s.events != nil {
		s.events.PublishProfileUpdated(userID)
	}
}
