// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed   = "EMAIL_NOT_CONFIRMED"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeWeakPassword        = "WEAK_PASSWORD"
	ErrCodeInvalidConfirmToken = "INVALID_CONFIRM_TOKEN"
	ErrCodePostNotFound        = "POST_NOT_FOUND"
	ErrCodeEmptyTitle          = "EMPTY_TITLE"
	ErrCodeInvalidAvatar       = "INVALID_AVATAR"
	ErrCodeAvatarTooLarge      = "AVATAR_TOO_LARGE"
	ErrCodeInvalidAvatarURL    = "INVALID_AVATAR_URL"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeForbidden           = "FORBIDDEN"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザー列挙攻撃を防ぐため、ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailNotConfirmedError はメール未確認エラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "メールアドレスが確認されていません。",
		Category: "auth",
		Action:   "登録時に送信された確認メールのリンクをクリックしてください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewInvalidConfirmTokenError は確認トークン無効エラーを生成する。
func NewInvalidConfirmTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfirmToken,
		Message:  "確認リンクが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "再度サインアップして新しい確認メールを受け取ってください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewEmptyTitleError はタイトル未入力エラーを生成する。
func NewEmptyTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTitle,
		Message:  "タイトルを入力してください。",
		Category: "validation",
		Action:   "アイデアのタイトルを入力して再度投稿してください。",
	}
}

// NewInvalidAvatarError はアバター形式不正エラーを生成する。
func NewInvalidAvatarError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatar,
		Message:  "アバターは画像ファイルである必要があります。",
		Category: "validation",
		Action:   "JPG、PNG、GIFのいずれかの形式でアップロードしてください。",
	}
}

// NewAvatarTooLargeError はアバターサイズ超過エラーを生成する。
func NewAvatarTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeAvatarTooLarge,
		Message:  fmt.Sprintf("アバターのサイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "より小さい画像ファイルをアップロードしてください。",
	}
}

// NewInvalidAvatarURLError はアバターURL不正エラーを生成する。
// SSRFガードによるブロックを含む。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("無効なアバターURLです: %s", reason),
		Category: "validation",
		Action:   "公開されているhttps://のURLを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分の投稿に対してのみ実行できます。",
	}
}
