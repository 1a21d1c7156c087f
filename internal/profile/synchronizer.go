// Package profile はユーザープロフィールの同期と編集を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
)

// Synchronizer はセッション確立のたびにプロフィール行の存在を保証する。
//
// マージ規則（fill-missing-only）:
//   - 既存プロフィールの空でないフィールドは決して上書きしない
//   - usernameが空の場合のみ、プロバイダーのログイン名またはメールの
//     ローカル部から導出した値で埋める
//   - avatar_urlが空の場合のみ、プロバイダー提供のアバターURLで埋める
//
// 同一入力での再実行は追加の書き込みを行わない（冪等）。
type Synchronizer struct {
	profileRepo repository.ProfileRepository
}

// NewSynchronizer はSynchronizerを生成する。
func NewSynchronizer(profileRepo repository.ProfileRepository) *Synchronizer {
	return &Synchronizer{profileRepo: profileRepo}
}

// Sync はプロフィール行を保証し、空フィールドをデフォルト値で埋める。
// identityはパスワード認証の場合nil。
// 既存プロフィールの取得がnot-found以外で失敗した場合は、
// 部分的な状態での上書きを避けるためWARNログのみで書き込みを行わない。
func (s *Synchronizer) Sync(ctx context.Context, user *model.User, identity *model.Identity) error {
	existing, err := s.profileRepo.FindByID(ctx, user.ID)
	if err != nil {
		slog.Warn("profile lookup failed, skipping sync to avoid overwriting unknown state",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	merged := mergeProfile(existing, user, identity)

	// 全フィールドが既に埋まっている場合は書き込み不要
	if existing != nil && merged.Username == existing.Username && merged.AvatarURL == existing.AvatarURL {
		return nil
	}

	now := time.Now()
	if existing == nil {
		merged.CreatedAt = now
	} else {
		merged.CreatedAt = existing.CreatedAt
	}
	merged.UpdatedAt = now

	if err := s.profileRepo.Upsert(ctx, merged); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	slog.Info("profile synchronized",
		slog.String("user_id", user.ID),
		slog.String("username", merged.Username),
	)
	return nil
}

// mergeProfile は既存プロフィールとプロバイダー情報からfill-missing-onlyでマージする。
func mergeProfile(existing *model.Profile, user *model.User, identity *model.Identity) *model.Profile {
	merged := &model.Profile{ID: user.ID}
	if existing != nil {
		merged.Username = existing.Username
		merged.AvatarURL = existing.AvatarURL
	}

	if merged.Username == "" {
		merged.Username = defaultUsername(user, identity)
	}
	if merged.AvatarURL == "" && identity != nil {
		merged.AvatarURL = identity.AvatarURL
	}

	return merged
}

// defaultUsername はプロバイダーのログイン名、メールのローカル部、
// ユーザーID先頭8文字の順でデフォルトのユーザー名を導出する。
func defaultUsername(user *model.User, identity *model.Identity) string {
	if identity != nil && identity.Login != "" {
		return identity.Login
	}
	if at := strings.Index(user.Email, "@"); at > 0 {
		return user.Email[:at]
	}
	if len(user.ID) >= 8 {
		return "user-" + user.ID[:8]
	}
	return "user-" + user.ID
}
