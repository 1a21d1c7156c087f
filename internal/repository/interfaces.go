// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/teammate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// ConfirmEmail は指定ユーザーのemail_confirmed_atを設定する。
	ConfirmEmail(ctx context.Context, userID string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// FindByUserID は指定ユーザーのidentityを検索する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EmailConfirmationRepository はメール確認トークンの永続化インターフェース。
type EmailConfirmationRepository interface {
	// Create は確認トークンを作成する。
	Create(ctx context.Context, confirmation *model.EmailConfirmation) error
	// FindByToken は指定トークンの確認レコードを取得する。期限切れの場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.EmailConfirmation, error)
	// DeleteByUserID は指定ユーザーの全確認トークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Upsert はプロフィールをIDキーで冪等にUPSERTする。
	// 既存行が存在する場合はusername/avatar_url/updated_atを渡された値で上書きする。
	// fill-missing-onlyのマージは呼び出し側（Synchronizer）で計算済みであること。
	Upsert(ctx context.Context, profile *model.Profile) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List は投稿一覧を作成日時の降順で返す。
	// queryが空でない場合、タイトルまたは本文への部分一致で絞り込む。
	// 投稿者プロフィールはLEFT JOINで結合される。
	List(ctx context.Context, query string, limit int) ([]model.PostWithAuthor, error)
}

// ApplicationRepository は応募データの永続化インターフェース。
type ApplicationRepository interface {
	// Create は応募を冪等に作成する。
	// (post_id, applicant_id) が既に存在する場合は挿入せずcreated=falseを返す。
	Create(ctx context.Context, application *model.Application) (created bool, err error)

	// ListByPostID は指定投稿への応募一覧を応募者プロフィール付きで返す。
	ListByPostID(ctx context.Context, postID string) ([]model.ApplicationWithApplicant, error)
}
