// Package auth はOAuth/パスワード認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength はパスワードの最低文字数。
const minPasswordLength = 8

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Login          string
	AvatarURL      string
	Provider       string // "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（GitHub, Google等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ProfileSynchronizer はセッション確立時のプロフィール同期インターフェース。
// identityはパスワード認証の場合nil。
// 同期の失敗はセッションに影響させないため、呼び出し側はエラーをログのみで処理する。
type ProfileSynchronizer interface {
	Sync(ctx context.Context, user *model.User, identity *model.Identity) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge   int           // セッション有効期間（秒）
	ConfirmTokenTTL time.Duration // メール確認トークンの有効期間
	BaseURL         string        // 確認リンクの生成に使用
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	confirmRepo repository.EmailConfirmationRepository
	profileSync ProfileSynchronizer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	confirmRepo repository.EmailConfirmationRepository,
	profileSync ProfileSynchronizer,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		confirmRepo: confirmRepo,
		profileSync: profileSync,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
// OAuthユーザーのメールアドレスはプロバイダー側で検証済みのため確認済みとして扱う。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var user *model.User

	if identity != nil {
		// 3a. 既存ユーザー: identityからユーザーを取得
		user, err = s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("identity references missing user: %s", identity.UserID)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
		now := time.Now()
		confirmedAt := now

		user = &model.User{
			ID:               uuid.New().String(),
			Email:            userInfo.Email,
			Name:             userInfo.Name,
			EmailConfirmedAt: &confirmedAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		identity = &model.Identity{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			Login:          userInfo.Login,
			AvatarURL:      userInfo.AvatarURL,
			CreatedAt:      now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 5. プロフィール同期（失敗してもセッションには影響させない）
	s.syncProfile(ctx, user, identity)

	return session, nil
}

// SignUpWithPassword はメール/パスワードでユーザーを登録する。
// メール確認が完了するまでセッションは発行しない。
// 確認リンクはログに出力される（メール送信基盤は本システムのスコープ外）。
func (s *Service) SignUpWithPassword(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewInvalidCredentialsError()
	}
	if len(password) < minPasswordLength {
		return nil, model.NewWeakPasswordError(minPasswordLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	confirmation := &model.EmailConfirmation{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.ConfirmTokenTTL),
		CreatedAt: now,
	}
	if err := s.confirmRepo.Create(ctx, confirmation); err != nil {
		return nil, fmt.Errorf("failed to create email confirmation: %w", err)
	}

	slog.Info("user signed up, confirmation required",
		slog.String("user_id", user.ID),
		slog.String("email", email),
		slog.String("confirm_url", fmt.Sprintf("%s/auth/confirm?token=%s", strings.TrimSuffix(s.config.BaseURL, "/"), token)),
	)

	return user, nil
}

// LoginWithPassword はメール/パスワードでログインし、セッションを発行する。
// ユーザー不在とパスワード不一致は同一のエラーを返す（ユーザー列挙対策）。
// メール未確認のユーザーはログインできない。
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.IsEmailConfirmed() {
		return nil, model.NewEmailNotConfirmedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in with password", slog.String("user_id", user.ID))

	// プロフィール同期（identityなし: メールのローカル部からデフォルトを導出）
	s.syncProfile(ctx, user, nil)

	return session, nil
}

// ConfirmEmail は確認トークンを検証し、メールアドレスを確認済みにする。
// 使用済みトークンは全て削除される。
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return model.NewInvalidConfirmTokenError()
	}

	confirmation, err := s.confirmRepo.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find confirmation: %w", err)
	}
	if confirmation == nil {
		return model.NewInvalidConfirmTokenError()
	}

	if err := s.userRepo.ConfirmEmail(ctx, confirmation.UserID); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	if err := s.confirmRepo.DeleteByUserID(ctx, confirmation.UserID); err != nil {
		// トークン削除の失敗は確認自体を妨げない（期限切れで自然消滅する）
		slog.Warn("failed to delete used confirmation tokens",
			slog.String("user_id", confirmation.UserID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("email confirmed", slog.String("user_id", confirmation.UserID))
	return nil
}

// Logout はセッションを破棄する。
// ストアからの削除に失敗してもエラーを返さずログのみ記録する。
// ローカルのサインアウト（Cookie削除）をネットワーク障害で妨げないため。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Error("failed to delete session, signing out locally anyway",
			slog.String("error", err.Error()),
		)
		return nil
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// LinkedProvider はユーザーに紐づく外部IdPのプロバイダー名を返す。
// メール/パスワードのみで登録されたユーザーの場合は空文字列を返す。
func (s *Service) LinkedProvider(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	identity, err := s.identRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return "", nil
	}

	return identity.Provider, nil
}

// syncProfile はプロフィール同期を実行する。
// あらゆる失敗はログのみで処理し、セッション確立には影響させない。
func (s *Service) syncProfile(ctx context.Context, user *model.User, identity *model.Identity) {
	if s.profileSync == nil {
		return
	}
	if err := s.profileSync.Sync(ctx, user, identity); err != nil {
		slog.Warn("profile sync failed, session unaffected",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateToken は暗号的に安全なランダムトークンを生成する。
// セッションIDとメール確認トークンの両方で使用する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
