package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/teammate/internal/model"
)

// --- モック定義 ---

type mockProfileService struct {
	getFn          func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn       func(ctx context.Context, userID, username, avatarURL string) (*model.Profile, error)
	uploadAvatarFn func(ctx context.Context, userID string, r io.Reader) (*model.Profile, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return &model.Profile{ID: userID}, nil
}

func (m *mockProfileService) Update(ctx context.Context, userID, username, avatarURL string) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, username, avatarURL)
	}
	return &model.Profile{ID: userID, Username: username, AvatarURL: avatarURL}, nil
}

func (m *mockProfileService) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*model.Profile, error) {
	if m.uploadAvatarFn != nil {
		return m.uploadAvatarFn(ctx, userID, r)
	}
	return &model.Profile{ID: userID, AvatarURL: "/avatars/" + userID + ".png"}, nil
}

var _ ProfileServiceInterface = (*mockProfileService)(nil)

// multipartAvatarRequest はavatarフィールドを含むマルチパートリクエストを組み立てるヘルパー。
func multipartAvatarRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// --- 取得のテスト ---

func TestProfileHandler_GetProfile_ReturnsProfile(t *testing.T) {
	svc := &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{ID: userID, Username: "alice", AvatarURL: "https://example.com/a.png"}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if profile.Username != "alice" {
		t.Errorf("username = %q, want %q", profile.Username, "alice")
	}
}

func TestProfileHandler_GetProfile_NeverCreated_ReturnsEmptyProfile(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = withUserID(req, "user-fresh")
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if profile.ID != "user-fresh" {
		t.Errorf("id = %q, want %q", profile.ID, "user-fresh")
	}
	if profile.Username != "" {
		t.Errorf("username = %q, want empty", profile.Username)
	}
}

func TestProfileHandler_GetProfile_NoUserID_Returns401(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- 更新のテスト ---

func TestProfileHandler_UpdateProfile_Returns200(t *testing.T) {
	svc := &mockProfileService{
		updateFn: func(ctx context.Context, userID, username, avatarURL string) (*model.Profile, error) {
			if username != "newname" {
				t.Errorf("username = %q, want %q", username, "newname")
			}
			return &model.Profile{ID: userID, Username: username, AvatarURL: avatarURL}, nil
		},
	}
	h := NewProfileHandler(svc)

	payload := bytes.NewBufferString(`{"username":"newname","avatar_url":"https://example.com/new.png"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/profile", payload)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if profile.Username != "newname" {
		t.Errorf("username = %q, want %q", profile.Username, "newname")
	}
}

func TestProfileHandler_UpdateProfile_UnsafeAvatarURL_Returns400(t *testing.T) {
	svc := &mockProfileService{
		updateFn: func(ctx context.Context, userID, username, avatarURL string) (*model.Profile, error) {
			return nil, model.NewInvalidAvatarURLError("スキームが不正です")
		},
	}
	h := NewProfileHandler(svc)

	payload := bytes.NewBufferString(`{"avatar_url":"http://169.254.169.254/meta"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/profile", payload)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INVALID_AVATAR_URL" {
		t.Errorf("code = %q, want %q", body.Code, "INVALID_AVATAR_URL")
	}
}

func TestProfileHandler_UpdateProfile_InvalidBody_Returns400(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := httptest.NewRequest(http.MethodPut, "/api/profile", bytes.NewBufferString("broken"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- アバターアップロードのテスト ---

func TestProfileHandler_UploadAvatar_Returns200(t *testing.T) {
	uploaded := false
	svc := &mockProfileService{
		uploadAvatarFn: func(ctx context.Context, userID string, r io.Reader) (*model.Profile, error) {
			uploaded = true
			data, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("failed to read upload: %v", err)
			}
			if len(data) == 0 {
				t.Error("uploaded content should not be empty")
			}
			return &model.Profile{ID: userID, AvatarURL: "/avatars/" + userID + ".png"}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := multipartAvatarRequest(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UploadAvatar(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !uploaded {
		t.Error("UploadAvatar should have been called")
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if profile.AvatarURL != "/avatars/user-1.png" {
		t.Errorf("avatar_url = %q, want %q", profile.AvatarURL, "/avatars/user-1.png")
	}
}

func TestProfileHandler_UploadAvatar_TooLarge_Returns400(t *testing.T) {
	svc := &mockProfileService{
		uploadAvatarFn: func(ctx context.Context, userID string, r io.Reader) (*model.Profile, error) {
			return nil, model.NewAvatarTooLargeError(5 << 20)
		},
	}
	h := NewProfileHandler(svc)

	req := multipartAvatarRequest(t, []byte("oversized"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UploadAvatar(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "AVATAR_TOO_LARGE" {
		t.Errorf("code = %q, want %q", body.Code, "AVATAR_TOO_LARGE")
	}
}

func TestProfileHandler_UploadAvatar_MissingField_Returns400(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UploadAvatar(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
