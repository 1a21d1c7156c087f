// Package model はドメインモデルを定義する。
package model

import "time"

// Post はコラボレーター募集のアイデア投稿を表す。
// 認証済みユーザーが作成し、作成後は不変（編集・削除フローは提供しない）。
// Bodyはサニタイズ済みHTML。
type Post struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
}

// PostWithAuthor は投稿と投稿者プロフィールを結合したモデル。
// profilesテーブルとLEFT JOINして取得されるため、
// プロフィール未作成の投稿者の場合はAuthorUsername/AuthorAvatarURLが空になる。
type PostWithAuthor struct {
	Post
	AuthorUsername  string
	AuthorAvatarURL string
}

// Application はユーザーが投稿に興味を示した応募レコードを表す。
// (PostID, ApplicantID) の組につき高々1件。
type Application struct {
	ID          string
	PostID      string
	ApplicantID string
	CreatedAt   time.Time
}

// ApplicationWithApplicant は応募と応募者プロフィールを結合したモデル。
// 投稿者向けの応募者一覧で使用される。
type ApplicationWithApplicant struct {
	Application
	ApplicantUsername  string
	ApplicantAvatarURL string
}
