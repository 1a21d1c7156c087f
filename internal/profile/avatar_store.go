package profile

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hitoshi/teammate/internal/model"
)

// AvatarPathPrefix はアップロード済みアバターの公開URLパス。
const AvatarPathPrefix = "/avatars/"

// allowedImageTypes は許可されるアバター画像のMIMEタイプと拡張子。
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// AvatarStore はアップロードされたアバター画像をローカルディスクに保存する。
// ファイル名はユーザーIDから決まるため、再アップロードは前の画像を置き換える。
type AvatarStore struct {
	dir     string
	maxSize int64
}

// NewAvatarStore はAvatarStoreを生成する。
func NewAvatarStore(dir string, maxSize int64) *AvatarStore {
	return &AvatarStore{dir: dir, maxSize: maxSize}
}

// Save はアバター画像を検証して保存し、公開URLパスを返す。
// サイズ上限を超える場合はAVATAR_TOO_LARGE、
// 許可されない画像タイプの場合はINVALID_AVATARエラーを返す。
// 画像タイプはContent-Typeヘッダーではなくファイル内容から判定する。
func (s *AvatarStore) Save(userID string, r io.Reader) (string, error) {
	// maxSize+1まで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read avatar data: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", model.NewAvatarTooLargeError(s.maxSize)
	}
	if len(data) == 0 {
		return "", model.NewInvalidAvatarError()
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", model.NewInvalidAvatarError()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	filename := userID + ext
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write avatar file: %w", err)
	}

	// 拡張子が変わった再アップロードで古いファイルが残らないようにする
	for _, otherExt := range allowedImageTypes {
		if otherExt == ext {
			continue
		}
		os.Remove(filepath.Join(s.dir, userID+otherExt))
	}

	return AvatarPathPrefix + filename, nil
}

// Dir は保存先ディレクトリを返す。静的ファイル配信の設定に使用する。
func (s *AvatarStore) Dir() string {
	return s.dir
}
