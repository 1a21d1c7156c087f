// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはメール/パスワード認証ユーザーのみ保持する（OAuthユーザーは空）。
// EmailConfirmedAtがnilの場合、メールアドレスは未確認。
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsEmailConfirmed はメールアドレスが確認済みかを返す。
func (u *User) IsEmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Identity は外部IdPとの紐付け情報を表す。
// LoginとAvatarURLはプロバイダー提供のメタデータで、
// プロフィール初期値の導出（Profile Synchronizer）に使用される。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	Login          string
	AvatarURL      string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// EmailConfirmation はメールアドレス確認用のワンタイムトークンを表す。
// パスワードサインアップ時に発行され、確認完了または期限切れで消滅する。
type EmailConfirmation struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Profile はアプリケーション独自のユーザープロフィールを表す。
// IDはUser.IDと同一。セッション確立時にSynchronizerが遅延作成する。
// 不変条件: 一度空でないUsername/AvatarURLが入った後は、
// Synchronizerはそれを上書きしない（空フィールドのみ埋める）。
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}
