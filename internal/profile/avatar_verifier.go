package profile

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/teammate/internal/security"
)

// AvatarVerifier は外部アバターURLの検証インターフェース。
type AvatarVerifier interface {
	// VerifyImageURL はURLが安全かつ画像を指していることを検証する。
	VerifyImageURL(ctx context.Context, rawURL string) error
}

// RemoteAvatarVerifier はSSRF防止付きHTTPクライアントで
// 外部アバターURLの実在と画像タイプを検証する。
type RemoteAvatarVerifier struct {
	guard  security.SSRFGuardService
	client *http.Client
}

// NewRemoteAvatarVerifier はRemoteAvatarVerifierを生成する。
// maxSizeは取得を許可するレスポンスサイズの上限。
func NewRemoteAvatarVerifier(guard security.SSRFGuardService, timeout time.Duration, maxSize int64) *RemoteAvatarVerifier {
	return &RemoteAvatarVerifier{
		guard:  guard,
		client: guard.NewSafeClient(timeout, maxSize),
	}
}

// VerifyImageURL はURLの静的検証の後、HEADリクエストでContent-Typeを確認する。
// 静的検証で弾かれなかったURLもDNS解決後のIP検証でブロックされうる。
func (v *RemoteAvatarVerifier) VerifyImageURL(ctx context.Context, rawURL string) error {
	if err := v.guard.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("unsafe avatar URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach avatar URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatar URL returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("avatar URL is not an image: %s", contentType)
	}

	return nil
}

var _ AvatarVerifier = (*RemoteAvatarVerifier)(nil)
