package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/teammate/internal/model"
	"github.com/hitoshi/teammate/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
	confirmEmailFn       func(ctx context.Context, userID string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) ConfirmEmail(ctx context.Context, userID string) error {
	if m.confirmEmailFn != nil {
		return m.confirmEmailFn(ctx, userID)
	}
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	findByUserIDFn   func(ctx context.Context, userID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) FindByUserID(ctx context.Context, userID string) (*model.Identity, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockConfirmRepo struct {
	createFn         func(ctx context.Context, confirmation *model.EmailConfirmation) error
	findByTokenFn    func(ctx context.Context, token string) (*model.EmailConfirmation, error)
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockConfirmRepo) Create(ctx context.Context, confirmation *model.EmailConfirmation) error {
	if m.createFn != nil {
		return m.createFn(ctx, confirmation)
	}
	return nil
}

func (m *mockConfirmRepo) FindByToken(ctx context.Context, token string) (*model.EmailConfirmation, error) {
	if m.findByTokenFn != nil {
		return m.findByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockConfirmRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

type mockProfileSync struct {
	syncFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockProfileSync) Sync(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.syncFn != nil {
		return m.syncFn(ctx, user, identity)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ repository.EmailConfirmationRepository = (*mockConfirmRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ ProfileSynchronizer = (*mockProfileSync)(nil)

func newTestService(
	provider OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	confirmRepo repository.EmailConfirmationRepository,
	sync ProfileSynchronizer,
) *Service {
	return NewService(provider, userRepo, identRepo, sessionRepo, confirmRepo, sync, ServiceConfig{
		SessionMaxAge:   86400,
		ConfirmTokenTTL: 24 * time.Hour,
		BaseURL:         "http://localhost:8080",
	})
}

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://github.com/login/oauth/authorize?state=" + state
		},
	}
	svc := newTestService(provider, nil, nil, nil, nil, nil)

	url := svc.GetLoginURL("test-state")

	expected := "https://github.com/login/oauth/authorize?state=test-state"
	if url != expected {
		t.Errorf("GetLoginURL() = %q, want %q", url, expected)
	}
}

func TestHandleCallback_NewUser_CreatesUserAndIdentityAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdIdentity *model.Identity
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "github-user-123",
				Email:          "test@example.com",
				Name:           "Test User",
				Login:          "testuser",
				AvatarURL:      "https://avatars.githubusercontent.com/u/123",
				Provider:       "github",
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			// ユーザーが見つからない（新規ユーザー）
			return nil, nil
		},
	}

	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(provider, userRepo, identityRepo, sessionRepo, nil, nil)

	session, err := svc.HandleCallback(ctx, "auth-code-123")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if session.ID == "" {
		t.Error("expected non-empty session ID")
	}

	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "test@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "test@example.com")
	}
	// OAuthユーザーは作成時点でメール確認済み
	if !createdUser.IsEmailConfirmed() {
		t.Error("oauth user should be email-confirmed at creation")
	}

	if createdIdentity == nil {
		t.Fatal("expected identity to be created")
	}
	if createdIdentity.Provider != "github" {
		t.Errorf("identity provider = %q, want %q", createdIdentity.Provider, "github")
	}
	if createdIdentity.Login != "testuser" {
		t.Errorf("identity login = %q, want %q", createdIdentity.Login, "testuser")
	}
	if createdIdentity.AvatarURL != "https://avatars.githubusercontent.com/u/123" {
		t.Errorf("identity avatarURL = %q", createdIdentity.AvatarURL)
	}

	if createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if createdSession.UserID != createdUser.ID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, createdUser.ID)
	}
	if createdSession.ExpiresAt.Before(time.Now()) {
		t.Error("session should not be expired")
	}
}

func TestHandleCallback_ExistingUser_LogsInWithoutCreatingUser(t *testing.T) {
	ctx := context.Background()

	existingUserID := "existing-user-id-456"
	userCreated := false

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "github-user-789",
				Email:          "existing@example.com",
				Name:           "Existing User",
				Provider:       "github",
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: existingUserID, Email: "existing@example.com"}, nil
		},
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			userCreated = true
			return nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{
				ID:             "identity-id-1",
				UserID:         existingUserID,
				Provider:       "github",
				ProviderUserID: "github-user-789",
			}, nil
		},
	}

	svc := newTestService(provider, userRepo, identityRepo, &mockSessionRepo{}, nil, nil)

	session, err := svc.HandleCallback(ctx, "auth-code-456")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session.UserID != existingUserID {
		t.Errorf("session userID = %q, want %q", session.UserID, existingUserID)
	}
	if userCreated {
		t.Error("existing user should not be re-created")
	}
}

func TestHandleCallback_ExchangeFails_ReturnsError(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("token exchange failed")
		},
	}

	svc := newTestService(provider, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, nil, nil)

	_, err := svc.HandleCallback(ctx, "bad-code")
	if err == nil {
		t.Fatal("expected error for failed token exchange")
	}
}

func TestHandleCallback_ProfileSyncFailure_DoesNotAffectSession(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "github-user-1",
				Email:          "sync@example.com",
				Provider:       "github",
			}, nil
		},
	}

	sync := &mockProfileSync{
		syncFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			return errors.New("profile store unavailable")
		},
	}

	svc := newTestService(provider, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, nil, sync)

	session, err := svc.HandleCallback(ctx, "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v, sync failure must not fail login", err)
	}
	if session == nil {
		t.Fatal("expected session despite profile sync failure")
	}
}

func TestSignUpWithPassword_CreatesUnconfirmedUserAndToken(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdConfirmation *model.EmailConfirmation
	sessionCreated := false

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	confirmRepo := &mockConfirmRepo{
		createFn: func(ctx context.Context, confirmation *model.EmailConfirmation) error {
			createdConfirmation = confirmation
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionCreated = true
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, sessionRepo, confirmRepo, nil)

	user, err := svc.SignUpWithPassword(ctx, "new@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUpWithPassword() error = %v", err)
	}

	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "new@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "new@example.com")
	}
	// メール確認前はログイン不可
	if user.IsEmailConfirmed() {
		t.Error("new password user must start unconfirmed")
	}
	// パスワードは平文で保存しない
	if createdUser.PasswordHash == "password123" || createdUser.PasswordHash == "" {
		t.Error("password must be stored as bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(createdUser.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}

	if createdConfirmation == nil {
		t.Fatal("expected confirmation token to be created")
	}
	if createdConfirmation.UserID != createdUser.ID {
		t.Errorf("confirmation userID = %q, want %q", createdConfirmation.UserID, createdUser.ID)
	}
	if !createdConfirmation.ExpiresAt.After(time.Now()) {
		t.Error("confirmation token should not be expired at creation")
	}

	// サインアップではセッションを発行しない
	if sessionCreated {
		t.Error("signup must not create a session before email confirmation")
	}
}

func TestSignUpWithPassword_ShortPassword_ReturnsWeakPasswordError(t *testing.T) {
	svc := newTestService(nil, &mockUserRepo{}, nil, nil, &mockConfirmRepo{}, nil)

	_, err := svc.SignUpWithPassword(context.Background(), "new@example.com", "short")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeWeakPassword {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeWeakPassword)
	}
}

func TestSignUpWithPassword_DuplicateEmail_ReturnsEmailTakenError(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "u1", Email: email}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, nil, &mockConfirmRepo{}, nil)

	_, err := svc.SignUpWithPassword(context.Background(), "taken@example.com", "password123")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeEmailTaken)
	}
}

func TestLoginWithPassword_ValidCredentials_CreatesSession(t *testing.T) {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	confirmedAt := time.Now()

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:               "user-1",
				Email:            email,
				PasswordHash:     string(hash),
				EmailConfirmedAt: &confirmedAt,
			}, nil
		},
	}

	var syncedUser *model.User
	syncCalledWithIdentity := false
	sync := &mockProfileSync{
		syncFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			syncedUser = user
			syncCalledWithIdentity = identity != nil
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, &mockSessionRepo{}, nil, sync)

	session, err := svc.LoginWithPassword(ctx, "user@example.com", "password123")
	if err != nil {
		t.Fatalf("LoginWithPassword() error = %v", err)
	}

	if session.UserID != "user-1" {
		t.Errorf("session userID = %q, want %q", session.UserID, "user-1")
	}
	if syncedUser == nil {
		t.Fatal("expected profile sync on login")
	}
	// パスワードログインにはidentityが無い
	if syncCalledWithIdentity {
		t.Error("password login must sync without an identity")
	}
}

func TestLoginWithPassword_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	confirmedAt := time.Now()

	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:               "user-1",
				PasswordHash:     string(hash),
				EmailConfirmedAt: &confirmedAt,
			}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, &mockSessionRepo{}, nil, nil)

	_, err := svc.LoginWithPassword(context.Background(), "user@example.com", "wrong-password")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestLoginWithPassword_UnknownEmail_ReturnsSameErrorAsWrongPassword(t *testing.T) {
	// ユーザー不在とパスワード不一致で応答を区別しない
	svc := newTestService(nil, &mockUserRepo{}, nil, &mockSessionRepo{}, nil, nil)

	_, err := svc.LoginWithPassword(context.Background(), "nobody@example.com", "whatever-password")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestLoginWithPassword_OAuthOnlyUser_ReturnsInvalidCredentials(t *testing.T) {
	confirmedAt := time.Now()
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			// OAuth経由で作成されたユーザー: password_hashが空
			return &model.User{ID: "user-1", EmailConfirmedAt: &confirmedAt}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, &mockSessionRepo{}, nil, nil)

	_, err := svc.LoginWithPassword(context.Background(), "oauth@example.com", "password123")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestLoginWithPassword_UnconfirmedEmail_ReturnsEmailNotConfirmed(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, &mockSessionRepo{}, nil, nil)

	_, err := svc.LoginWithPassword(context.Background(), "user@example.com", "password123")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeEmailNotConfirmed {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeEmailNotConfirmed)
	}
}

func TestConfirmEmail_ValidToken_ConfirmsAndDeletesTokens(t *testing.T) {
	ctx := context.Background()

	confirmedUserID := ""
	deletedUserID := ""

	userRepo := &mockUserRepo{
		confirmEmailFn: func(ctx context.Context, userID string) error {
			confirmedUserID = userID
			return nil
		},
	}
	confirmRepo := &mockConfirmRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.EmailConfirmation, error) {
			return &model.EmailConfirmation{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			deletedUserID = userID
			return nil
		},
	}

	svc := newTestService(nil, userRepo, nil, nil, confirmRepo, nil)

	if err := svc.ConfirmEmail(ctx, "valid-token"); err != nil {
		t.Fatalf("ConfirmEmail() error = %v", err)
	}
	if confirmedUserID != "user-1" {
		t.Errorf("confirmed userID = %q, want %q", confirmedUserID, "user-1")
	}
	if deletedUserID != "user-1" {
		t.Errorf("deleted tokens for userID = %q, want %q", deletedUserID, "user-1")
	}
}

func TestConfirmEmail_UnknownToken_ReturnsInvalidTokenError(t *testing.T) {
	svc := newTestService(nil, &mockUserRepo{}, nil, nil, &mockConfirmRepo{}, nil)

	err := svc.ConfirmEmail(context.Background(), "unknown-token")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidConfirmToken {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidConfirmToken)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	deletedID := ""
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := newTestService(nil, nil, nil, sessionRepo, nil, nil)

	if err := svc.Logout(context.Background(), "session-abc"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedID != "session-abc" {
		t.Errorf("deleted session ID = %q, want %q", deletedID, "session-abc")
	}
}

func TestLogout_StoreFailure_StillSucceeds(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestService(nil, nil, nil, sessionRepo, nil, nil)

	// ストア障害でもローカルのサインアウトは成功扱い
	if err := svc.Logout(context.Background(), "session-abc"); err != nil {
		t.Errorf("Logout() error = %v, want nil on store failure", err)
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com"}, nil
		},
	}
	svc := newTestService(nil, userRepo, nil, sessionRepo, nil, nil)

	user, err := svc.GetCurrentUser(context.Background(), "session-abc")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", user.ID, "user-1")
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	// 期限切れセッションはリポジトリがnilを返す
	svc := newTestService(nil, &mockUserRepo{}, nil, &mockSessionRepo{}, nil, nil)

	_, err := svc.GetCurrentUser(context.Background(), "expired-session")
	if err == nil {
		t.Fatal("expected error for expired session")
	}
	if !strings.Contains(err.Error(), "session") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLinkedProvider_OAuthUser_ReturnsProvider(t *testing.T) {
	identRepo := &mockIdentityRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Identity, error) {
			return &model.Identity{UserID: userID, Provider: "github", ProviderUserID: "12345"}, nil
		},
	}
	svc := newTestService(nil, &mockUserRepo{}, identRepo, &mockSessionRepo{}, nil, nil)

	provider, err := svc.LinkedProvider(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LinkedProvider() error = %v", err)
	}
	if provider != "github" {
		t.Errorf("provider = %q, want %q", provider, "github")
	}
}

func TestLinkedProvider_PasswordOnlyUser_ReturnsEmpty(t *testing.T) {
	// メール/パスワードのみのユーザーはIdentityを持たない
	svc := newTestService(nil, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, nil, nil)

	provider, err := svc.LinkedProvider(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LinkedProvider() error = %v", err)
	}
	if provider != "" {
		t.Errorf("provider = %q, want empty", provider)
	}
}
